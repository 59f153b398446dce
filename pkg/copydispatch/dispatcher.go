// Package copydispatch routes a resolved job snapshot to the copy backend
// for its (source type, target type) pair.
//
// The matrix covers {local, smb, cloud} x {local, smb, cloud}. SMB shares
// are reached through their mount point, so smb routes share the local
// filesystem implementation. Routes without an implementation fail with a
// typed UnsupportedRouteError so callers can distinguish "not built" from a
// backend transport failure.
package copydispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lakeferry/lakeferry/pkg/cloudstore"
	"github.com/lakeferry/lakeferry/pkg/jobstore"
)

// Backend type names as stored on job records.
const (
	TypeLocal = "local"
	TypeSMB   = "smb"
	TypeCloud = "cloud"
)

// UnsupportedRouteError marks a (source, target) pair with no backend.
type UnsupportedRouteError struct {
	Source string
	Target string
}

func (e *UnsupportedRouteError) Error() string {
	return fmt.Sprintf("copy from %s to %s not implemented", e.Source, e.Target)
}

// IsUnsupportedRoute reports whether err is an unsupported-route failure.
func IsUnsupportedRoute(err error) bool {
	var u *UnsupportedRouteError
	return errors.As(err, &u)
}

// DataSources resolves cloud credentials by registration id.
type DataSources interface {
	DataSourceByID(id string) (*jobstore.DataSource, error)
}

// Result carries the file lists reported back into run history.
type Result struct {
	// CopiedFiles are destination paths/URLs of files written.
	CopiedFiles []string

	// SourceFiles are the source paths/URLs that matched the mask.
	SourceFiles []string
}

type route struct {
	source string
	target string
}

type copyFunc func(ctx context.Context, d *Dispatcher, job *jobstore.Job) (*Result, error)

// Dispatcher executes copies for resolved job snapshots.
type Dispatcher struct {
	sources     DataSources
	authTimeout time.Duration
	routes      map[route]copyFunc
}

// New builds a dispatcher. authTimeout bounds cloud connect+list probes;
// zero uses cloudstore.DefaultAuthTimeout.
func New(sources DataSources, authTimeout time.Duration) *Dispatcher {
	d := &Dispatcher{sources: sources, authTimeout: authTimeout}
	d.routes = map[route]copyFunc{
		{TypeLocal, TypeLocal}: copyFS,
		{TypeLocal, TypeSMB}:   copyFS,
		{TypeSMB, TypeLocal}:   copyFS,
		{TypeSMB, TypeSMB}:     copyFS,
		{TypeLocal, TypeCloud}: copyUpload,
		{TypeSMB, TypeCloud}:   copyUpload,
		{TypeCloud, TypeLocal}: copyDownload,
		{TypeCloud, TypeSMB}:   copyDownload,
		{TypeCloud, TypeCloud}: copyCloudToCloud,
	}
	return d
}

// Dispatch copies the files selected by the job's source mask. The job must
// already have its placeholders resolved.
func (d *Dispatcher) Dispatch(ctx context.Context, job *jobstore.Job) (*Result, error) {
	fn, ok := d.routes[route{job.SourceType, job.TargetType}]
	if !ok {
		return nil, &UnsupportedRouteError{Source: job.SourceType, Target: job.TargetType}
	}
	return fn(ctx, d, job)
}

// cloudClient builds a cloudstore client for the given data-source id and
// verifies authentication against the effective bucket.
func (d *Dispatcher) cloudClient(ctx context.Context, dataSourceID, container string) (*cloudstore.Client, string, error) {
	if dataSourceID == "" {
		return nil, "", fmt.Errorf("cloud endpoint requires a data source id")
	}
	ds, err := d.sources.DataSourceByID(dataSourceID)
	if err != nil {
		return nil, "", err
	}
	client, err := cloudstore.New(ctx, ds.Config, d.authTimeout)
	if err != nil {
		return nil, "", err
	}
	bucket := client.Bucket(container)
	if bucket == "" {
		return nil, "", fmt.Errorf("data source %s: no bucket configured and no container on job", dataSourceID)
	}
	if err := client.Verify(ctx, bucket); err != nil {
		return nil, "", err
	}
	return client, bucket, nil
}

func mask(job *jobstore.Job) string {
	if job.SourceFileMask == "" {
		return "*"
	}
	return job.SourceFileMask
}
