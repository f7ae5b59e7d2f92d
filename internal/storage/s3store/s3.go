package s3store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kgellert/trimer-client/internal/config"
	"github.com/kgellert/trimer-client/internal/storage"
)

// API is the subset of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Storage keeps every cached response as one JSON object under
// <prefix><cache>/<sha256(url)>.
type Storage struct {
	api    API
	bucket string
	prefix string
}

func New(api API, bucket, prefix string) *Storage {
	return &Storage{api: api, bucket: bucket, prefix: prefix}
}

// NewClient builds an S3 client for cfg. A custom endpoint switches to
// path-style addressing for S3-compatible servers.
func NewClient(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	const op = "storage.s3.NewClient"

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: load aws config: %w", op, err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s *Storage) cachePrefix(cache string) string {
	return s.prefix + cache + "/"
}

func (s *Storage) key(cache, url string) string {
	sum := sha256.Sum256([]byte(url))
	return s.cachePrefix(cache) + hex.EncodeToString(sum[:])
}

func (s *Storage) Put(ctx context.Context, cache string, e storage.Entry) error {
	const op = "storage.s3.Put"

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(cache, e.URL)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"cache-name": cache,
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Match(ctx context.Context, cache, url string) (storage.Entry, error) {
	const op = "storage.s3.Match"

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cache, url)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return storage.Entry{}, storage.ErrNotFound
		}
		return storage.Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("%s: read: %w", op, err)
	}

	var e storage.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return storage.Entry{}, fmt.Errorf("%s: decode: %w", op, err)
	}
	return e, nil
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	const op = "storage.s3.Keys"

	var names []string
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), s.prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (s *Storage) Delete(ctx context.Context, caches ...string) error {
	const op = "storage.s3.Delete"

	for _, cache := range caches {
		p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(s.cachePrefix(cache)),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("%s: list %s: %w", op, cache, err)
			}
			if len(page.Contents) == 0 {
				continue
			}

			ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}
			_, err = s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("%s: delete %s: %w", op, cache, err)
			}
		}
	}
	return nil
}

func (s *Storage) Close() error { return nil }
