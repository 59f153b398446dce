// Package cloudstore talks to S3-compatible object storage on behalf of the
// copy dispatcher.
//
// Clients are built from data-source registrations (explicit key/secret,
// optional custom endpoint for S3-compatible stores). Authentication is
// verified up front with a bounded connect+list probe so a wedged endpoint
// surfaces as a typed timeout instead of hanging a run.
package cloudstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/time/rate"

	"github.com/lakeferry/lakeferry/pkg/jobstore"
)

// DefaultAuthTimeout bounds the connect+list probe.
const DefaultAuthTimeout = 15 * time.Second

// DefaultAWSRegion is the fallback region when none is configured.
const DefaultAWSRegion = "us-east-1"

// defaultRequestRate caps outbound requests per client to stay under
// provider throttling thresholds during large copies.
const defaultRequestRate = 50

// Client wraps an S3 client for one data source.
type Client struct {
	s3            *s3.Client
	defaultBucket string
	authTimeout   time.Duration
	limiter       *rate.Limiter
}

// New builds a client from a data-source config. Credentials come from the
// registration only; there is no ambient credential chain fallback here.
func New(ctx context.Context, cfg jobstore.DataSourceConfig, authTimeout time.Duration) (*Client, error) {
	if authTimeout <= 0 {
		authTimeout = DefaultAuthTimeout
	}
	region := cfg.Region
	if region == "" && cfg.Endpoint == "" {
		region = DefaultAWSRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3:            client,
		defaultBucket: cfg.Bucket,
		authTimeout:   authTimeout,
		limiter:       rate.NewLimiter(rate.Limit(defaultRequestRate), defaultRequestRate),
	}, nil
}

// Bucket resolves the effective bucket: the job's container when set,
// otherwise the data source's default.
func (c *Client) Bucket(container string) string {
	if container != "" {
		return container
	}
	return c.defaultBucket
}

// Verify probes the bucket with a bounded single-key list. A deadline hit
// is an AuthTimeoutError; a credential rejection is an AuthError.
func (c *Client) Verify(ctx context.Context, bucket string) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	if err := c.limiter.Wait(probeCtx); err != nil {
		if isDeadline(err) {
			return &AuthTimeoutError{Bucket: bucket, Timeout: c.authTimeout}
		}
		return err
	}
	_, err := c.s3.ListObjectsV2(probeCtx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		if isDeadline(err) || probeCtx.Err() == context.DeadlineExceeded {
			return &AuthTimeoutError{Bucket: bucket, Timeout: c.authTimeout}
		}
		if isCredentialRejection(err) {
			return &AuthError{Bucket: bucket, Err: err}
		}
		return &OpError{Op: "Verify", Bucket: bucket, Err: err}
	}
	return nil
}

// ListFiles returns the keys directly under dir whose basename matches
// mask. An empty mask matches everything.
func (c *Client) ListFiles(ctx context.Context, bucket, dir, mask string) ([]string, error) {
	prefix := strings.TrimPrefix(dir, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if mask == "" {
		mask = "*"
	}

	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out, err := c.s3.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, &OpError{Op: "List", Bucket: bucket, Err: err}
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			// Only direct children of dir, matching the original flat-copy
			// semantics of the filesystem backends.
			rest := strings.TrimPrefix(key, prefix)
			if strings.Contains(rest, "/") {
				continue
			}
			ok, err := doublestar.Match(mask, path.Base(key))
			if err != nil {
				return nil, fmt.Errorf("invalid file mask %q: %w", mask, err)
			}
			if ok {
				keys = append(keys, key)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return keys, nil
}

// Get opens an object for reading. The caller must close the reader.
func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &OpError{Op: "Get", Bucket: bucket, Key: key, Err: err}
	}
	return out.Body, nil
}

// Put uploads an object.
func (c *Client) Put(ctx context.Context, bucket, key string, body io.Reader, contentLength int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentLength > 0 {
		input.ContentLength = aws.Int64(contentLength)
	}
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return &OpError{Op: "Put", Bucket: bucket, Key: key, Err: err}
	}
	return nil
}

// Copy performs a server-side copy within the account this client is
// authenticated against. Cross-account moves must stream through Get/Put.
func (c *Client) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.s3.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcBucket + "/" + srcKey),
	})
	if err != nil {
		return &OpError{Op: "Copy", Bucket: dstBucket, Key: dstKey, Err: err}
	}
	return nil
}

// URL renders the canonical object URL used in run records.
func URL(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, strings.TrimPrefix(key, "/"))
}
