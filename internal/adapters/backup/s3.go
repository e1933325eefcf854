package backup

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tofu-suite/tofu/internal/infrastructure/config"
	"github.com/tofu-suite/tofu/internal/ports"
)

// S3API is the part of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store writes backups as objects under a key prefix.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Store wraps an existing client.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// OpenS3 builds a client from the backup configuration. Static keys are used
// when set; otherwise the default AWS credential chain applies. A custom
// endpoint switches to path-style addressing for MinIO and friends.
func OpenS3(ctx context.Context, cfg config.BackupConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Store(client, cfg.Bucket, cfg.Prefix), nil
}

var _ ports.BackupRepository = (*S3Store)(nil)

func (s *S3Store) Put(ctx context.Context, name string, data []byte) (ports.BackupInfo, error) {
	key := s.prefix + name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return ports.BackupInfo{}, fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return ports.BackupInfo{
		Name:      name,
		Location:  fmt.Sprintf("s3://%s/%s", s.bucket, key),
		Size:      int64(len(data)),
		CreatedAt: s.now(),
	}, nil
}

func (s *S3Store) List(ctx context.Context) ([]ports.BackupInfo, error) {
	var (
		infos []ports.BackupInfo
		token *string
	)
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, Extension) {
				continue
			}
			infos = append(infos, ports.BackupInfo{
				Name:      strings.TrimPrefix(key, s.prefix),
				Location:  fmt.Sprintf("s3://%s/%s", s.bucket, key),
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
