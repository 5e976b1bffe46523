package publish

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/config"
)

// GeoJSONContentType is the media type set on uploaded results.
const GeoJSONContentType = "application/geo+json"

// PutObjectAPI is the part of *s3.Client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from config. Credentials come from the
// default AWS chain. A custom endpoint enables S3-compatible stores.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "publish: load aws config")
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Key returns the object key for a city's result: {prefix}/{STATE}/{city}.geojson.
func Key(prefix, state, city string) string {
	return path.Join(strings.Trim(prefix, "/"), state, city+".geojson")
}

// S3Uploader uploads result files to one bucket.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Uploader creates an uploader.
func NewS3Uploader(client PutObjectAPI, bucket, prefix string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, prefix: prefix}
}

// Upload puts the file at localPath under the city's key and returns the key.
func (u *S3Uploader) Upload(ctx context.Context, state, city, localPath string) (string, error) {
	if u.bucket == "" {
		return "", eris.New("publish: s3 bucket is not configured")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", eris.Wrapf(err, "publish: open %s", localPath)
	}
	defer f.Close() //nolint:errcheck

	key := Key(u.prefix, state, city)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(GeoJSONContentType),
	})
	if err != nil {
		return "", eris.Wrapf(err, "publish: put s3://%s/%s", u.bucket, key)
	}
	zap.L().Info("publish: uploaded result",
		zap.String("bucket", u.bucket),
		zap.String("key", key),
	)
	return key, nil
}
