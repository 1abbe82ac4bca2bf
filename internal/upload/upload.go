// Package upload stores item photos with an external provider and returns
// their public URLs.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pantrypal-api/internal/logging"
)

// ErrUploadDisabled is returned when no provider is configured.
var ErrUploadDisabled = errors.New("image upload is not configured")

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Provider names.
const (
	ProviderNone       = "none"
	ProviderS3         = "s3"
	ProviderCloudinary = "cloudinary"
)

// Config selects and configures a provider.
type Config struct {
	Provider string

	S3 S3Config

	CloudinaryCloudName    string
	CloudinaryUploadPreset string
	CloudinaryFolder       string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryBaseURL      string
}

// New builds the configured uploader. A missing provider only warns
// outside production; in production it is an error.
func New(ctx context.Context, cfg Config, production bool, log logging.Logger) (Uploader, error) {
	log = logging.For(log, "upload")

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	var missing []string
	switch provider {
	case ProviderS3:
		if cfg.S3.Bucket == "" {
			missing = append(missing, "UPLOAD_S3_BUCKET")
		}
		if cfg.S3.Region == "" {
			missing = append(missing, "UPLOAD_S3_REGION")
		}
		if len(missing) == 0 {
			u, err := NewS3Uploader(ctx, cfg.S3)
			if err != nil {
				return nil, err
			}
			log.Info("image uploads enabled", "provider", provider, "bucket", cfg.S3.Bucket)
			return u, nil
		}
	case ProviderCloudinary:
		if cfg.CloudinaryCloudName == "" {
			missing = append(missing, "CLOUDINARY_CLOUD_NAME")
		}
		if cfg.CloudinaryUploadPreset == "" {
			missing = append(missing, "CLOUDINARY_UPLOAD_PRESET")
		}
		if len(missing) == 0 {
			u, err := NewCloudinaryUploader(CloudinaryConfig{
				CloudName:    cfg.CloudinaryCloudName,
				UploadPreset: cfg.CloudinaryUploadPreset,
				Folder:       cfg.CloudinaryFolder,
				APIKey:       cfg.CloudinaryAPIKey,
				APISecret:    cfg.CloudinaryAPISecret,
				BaseURL:      cfg.CloudinaryBaseURL,
			})
			if err != nil {
				return nil, err
			}
			log.Info("image uploads enabled", "provider", provider, "signed", u.signed())
			return u, nil
		}
	case "", ProviderNone:
		missing = append(missing, "UPLOAD_PROVIDER")
	default:
		return nil, fmt.Errorf("unknown upload provider %q", cfg.Provider)
	}

	if production {
		return nil, fmt.Errorf("image upload misconfigured, missing %s", strings.Join(missing, ", "))
	}
	log.Warn("image uploads disabled", "missing", strings.Join(missing, ", "))
	return NopUploader{}, nil
}

// NopUploader rejects every upload with ErrUploadDisabled.
type NopUploader struct{}

func (NopUploader) Upload(context.Context, string, []byte, string) (string, error) {
	return "", ErrUploadDisabled
}
