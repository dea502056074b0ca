package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	logx "imgbot/pkg/logx"
)

type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string // optional, for S3-compatible stores; enables path-style addressing
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // objects are served at PublicBaseURL + "/" + key
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores images in a bucket under random keys.
type S3 struct {
	client  objectPutter
	bucket  string
	baseURL string
	timeout time.Duration
	log     logx.Logger
}

func NewS3(ctx context.Context, cfg S3Config, timeout time.Duration, log logx.Logger) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.PublicBaseURL) == "" {
		return nil, errors.New("s3 public_base_url is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
			o.BaseEndpoint = aws.String(ep)
			o.UsePathStyle = true
		}
	})
	return newS3(client, cfg, timeout, log), nil
}

func newS3(client objectPutter, cfg S3Config, timeout time.Duration, log logx.Logger) *S3 {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		timeout: timeout,
		log:     log,
	}
}

func (u *S3) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", upstream("empty image")
	}
	ctype := http.DetectContentType(data)
	key := uuid.NewString() + extension(ctype)

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(ctype),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object: %v", ErrUpstream, err)
	}
	u.log.Debug("s3 object stored", logx.String("key", key), logx.String("content_type", ctype), logx.Int("bytes", len(data)))
	return u.baseURL + "/" + key, nil
}

func extension(ctype string) string {
	switch ctype {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, _ := mime.ExtensionsByType(ctype); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
