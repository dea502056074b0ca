// Package upload hands image bytes to an external host and returns a public URL.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "imgbot/pkg/logx"
)

// ErrUpstream wraps every failure of the hosting service, including
// transport errors, non-200 answers and unparsable bodies.
var ErrUpstream = errors.New("upload: upstream failure")

// Uploader stores one image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

const (
	ProviderFreeImage = "freeimage"
	ProviderS3        = "s3"
)

type Config struct {
	Provider  string
	Timeout   time.Duration
	FreeImage FreeImageConfig
	S3        S3Config
}

// New builds the configured provider.
func New(ctx context.Context, cfg Config, log logx.Logger) (Uploader, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p {
	case "", ProviderFreeImage:
		return NewFreeImage(cfg.FreeImage, cfg.Timeout, log.With(logx.String("provider", ProviderFreeImage))), nil
	case ProviderS3:
		return NewS3(ctx, cfg.S3, cfg.Timeout, log.With(logx.String("provider", ProviderS3)))
	default:
		return nil, fmt.Errorf("unknown upload provider %q", cfg.Provider)
	}
}

func upstream(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUpstream, fmt.Sprintf(format, args...))
}
