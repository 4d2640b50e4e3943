package backtest

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Publisher exports a completed run.
type Publisher interface {
	Publish(ctx context.Context, run *Run) error
}

// NopPublisher discards runs.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, *Run) error { return nil }

// Uploader is the part of manager.Uploader the S3 publisher uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Publisher uploads each run's metrics CSV to <prefix>/<run id>.csv.
type S3Publisher struct {
	uploader Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Publisher creates a publisher on top of an uploader
func NewS3Publisher(uploader Uploader, bucket, prefix string, log zerolog.Logger) *S3Publisher {
	return &S3Publisher{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "s3_publisher").Logger(),
	}
}

// NewPublisher returns an S3Publisher using the default AWS credential chain,
// or a NopPublisher when bucket is empty.
func NewPublisher(ctx context.Context, bucket, prefix, region string, log zerolog.Logger) (Publisher, error) {
	if bucket == "" {
		return NopPublisher{}, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	uploader := manager.NewUploader(s3.NewFromConfig(cfg))
	return NewS3Publisher(uploader, bucket, prefix, log), nil
}

// Key returns the object key for a run.
func (p *S3Publisher) Key(run *Run) string {
	return path.Join(p.prefix, run.ID+".csv")
}

// Publish uploads the run's report as CSV.
func (p *S3Publisher) Publish(ctx context.Context, run *Run) error {
	if run.Report == nil {
		return fmt.Errorf("run %s has no report", run.ID)
	}

	var buf bytes.Buffer
	if err := run.Report.WriteCSV(&buf); err != nil {
		return fmt.Errorf("failed to render report %s: %w", run.ID, err)
	}

	key := p.Key(run)
	out, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
		Metadata: map[string]string{
			"backtest-name": run.Definition.Name,
			"objective":     string(run.Definition.Objective),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s: %w", key, p.bucket, err)
	}

	p.log.Info().
		Str("run_id", run.ID).
		Str("location", out.Location).
		Msg("Report published")
	return nil
}
