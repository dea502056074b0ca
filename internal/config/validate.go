package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report json paths ("telegram.admin_id") instead of Go field names
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			d, err := time.ParseDuration(strings.TrimSpace(fl.Field().String()))
			return err == nil && d >= 0
		})
		v.RegisterStructValidation(validateUpload, UploadConfig{})
		validate = v
	})
	return validate
}

// validateUpload requires the settings of the selected provider only.
func validateUpload(sl validator.StructLevel) {
	u := sl.Current().Interface().(UploadConfig)
	switch u.Provider {
	case "freeimage":
		if strings.TrimSpace(u.FreeImage.APIKey) == "" {
			sl.ReportError(u.FreeImage.APIKey, "freeimage.api_key", "APIKey", "required", "")
		}
	case "s3":
		if strings.TrimSpace(u.S3.Bucket) == "" {
			sl.ReportError(u.S3.Bucket, "s3.bucket", "Bucket", "required", "")
		}
		if strings.TrimSpace(u.S3.Region) == "" {
			sl.ReportError(u.S3.Region, "s3.region", "Region", "required", "")
		}
		if strings.TrimSpace(u.S3.PublicBaseURL) == "" {
			sl.ReportError(u.S3.PublicBaseURL, "s3.public_base_url", "PublicBaseURL", "required", "")
		}
	}
}

// Validate checks cfg and returns every violation in one error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	err := validatorInstance().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	// strip the root type name: "Config.telegram.token" -> "telegram.token"
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "duration":
		return fmt.Sprintf("%s: invalid duration %q", path, fe.Value())
	case "timezone":
		return fmt.Sprintf("%s: unknown timezone %q", path, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", path, fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s fails %s=%s", path, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s fails %s", path, fe.Tag())
	}
}
