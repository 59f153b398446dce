package copydispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lakeferry/lakeferry/pkg/cloudstore"
	"github.com/lakeferry/lakeferry/pkg/jobstore"
)

func cloudKey(dir, filename string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return filename
	}
	return dir + "/" + filename
}

// copyUpload handles local/smb -> cloud.
func copyUpload(ctx context.Context, d *Dispatcher, job *jobstore.Job) (*Result, error) {
	m := mask(job)
	sourceFiles, err := listLocalFiles(job.Source, m)
	if err != nil {
		return nil, err
	}
	if len(sourceFiles) == 0 {
		return nil, fmt.Errorf("no files matching %q found in folder %q", m, job.Source)
	}

	client, bucket, err := d.cloudClient(ctx, job.TargetDataSourceID, job.TargetContainer)
	if err != nil {
		return nil, err
	}

	copied := make([]string, 0, len(sourceFiles))
	for _, src := range sourceFiles {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", src, err)
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("stat %s: %w", src, err)
		}
		key := cloudKey(job.Target, filepath.Base(src))
		err = client.Put(ctx, bucket, key, f, info.Size())
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		copied = append(copied, cloudstore.URL(bucket, key))
	}
	return &Result{CopiedFiles: copied, SourceFiles: sourceFiles}, nil
}

// copyDownload handles cloud -> local/smb.
func copyDownload(ctx context.Context, d *Dispatcher, job *jobstore.Job) (*Result, error) {
	m := mask(job)
	client, bucket, err := d.cloudClient(ctx, job.SourceDataSourceID, job.SourceContainer)
	if err != nil {
		return nil, err
	}

	keys, err := client.ListFiles(ctx, bucket, job.Source, m)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no files matching %q found in cloud directory %q", m, job.Source)
	}
	if err := os.MkdirAll(job.Target, 0755); err != nil {
		return nil, fmt.Errorf("create target folder: %w", err)
	}

	copied := make([]string, 0, len(keys))
	sourceFiles := make([]string, 0, len(keys))
	for _, key := range keys {
		body, err := client.Get(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(job.Target, path.Base(key))
		err = writeLocal(dst, body)
		_ = body.Close()
		if err != nil {
			return nil, err
		}
		copied = append(copied, dst)
		sourceFiles = append(sourceFiles, cloudstore.URL(bucket, key))
	}
	return &Result{CopiedFiles: copied, SourceFiles: sourceFiles}, nil
}

// copyCloudToCloud moves objects between buckets. Within one data source
// the copy happens server-side; across accounts objects stream through the
// dispatcher.
func copyCloudToCloud(ctx context.Context, d *Dispatcher, job *jobstore.Job) (*Result, error) {
	m := mask(job)
	src, srcBucket, err := d.cloudClient(ctx, job.SourceDataSourceID, job.SourceContainer)
	if err != nil {
		return nil, err
	}
	sameAccount := job.TargetDataSourceID == job.SourceDataSourceID
	dst, dstBucket := src, src.Bucket(job.TargetContainer)
	if !sameAccount {
		dst, dstBucket, err = d.cloudClient(ctx, job.TargetDataSourceID, job.TargetContainer)
		if err != nil {
			return nil, err
		}
	}

	keys, err := src.ListFiles(ctx, srcBucket, job.Source, m)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no files matching %q found in cloud directory %q", m, job.Source)
	}

	copied := make([]string, 0, len(keys))
	sourceFiles := make([]string, 0, len(keys))
	for _, key := range keys {
		dstKey := cloudKey(job.Target, path.Base(key))
		if sameAccount {
			if err := src.Copy(ctx, srcBucket, key, dstBucket, dstKey); err != nil {
				return nil, err
			}
		} else {
			body, err := src.Get(ctx, srcBucket, key)
			if err != nil {
				return nil, err
			}
			err = dst.Put(ctx, dstBucket, dstKey, body, 0)
			_ = body.Close()
			if err != nil {
				return nil, err
			}
		}
		copied = append(copied, cloudstore.URL(dstBucket, dstKey))
		sourceFiles = append(sourceFiles, cloudstore.URL(srcBucket, key))
	}
	return &Result{CopiedFiles: copied, SourceFiles: sourceFiles}, nil
}

func writeLocal(dst string, body io.Reader) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return out.Close()
}
