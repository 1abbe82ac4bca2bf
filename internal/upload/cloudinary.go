package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryConfig configures uploads through an upload preset. With an
// API key and secret the upload is signed, otherwise the preset must allow
// unsigned uploads.
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	Folder       string
	APIKey       string
	APISecret    string
	// BaseURL overrides the upload API host.
	BaseURL string
}

// CloudinaryUploader stores images with the Cloudinary upload API.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
	cfg CloudinaryConfig
}

// NewCloudinaryUploader creates an uploader for cfg.
func NewCloudinaryUploader(cfg CloudinaryConfig) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("configuring cloudinary: %w", err)
	}
	if cfg.BaseURL != "" {
		cld.Config.API.UploadPrefix = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &CloudinaryUploader{cld: cld, cfg: cfg}, nil
}

func (u *CloudinaryUploader) signed() bool {
	return u.cfg.APIKey != "" && u.cfg.APISecret != ""
}

// Upload stores data under key (without its extension) and returns the
// secure URL.
func (u *CloudinaryUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	params := uploader.UploadParams{
		PublicID:     strings.TrimSuffix(key, path.Ext(key)),
		Folder:       u.cfg.Folder,
		ResourceType: "image",
	}

	var (
		res *uploader.UploadResult
		err error
	)
	if u.signed() {
		params.UploadPreset = u.cfg.UploadPreset
		res, err = u.cld.Upload.Upload(ctx, bytes.NewReader(data), params)
	} else {
		res, err = u.cld.Upload.UnsignedUpload(ctx, bytes.NewReader(data), u.cfg.UploadPreset, params)
	}
	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if res == nil {
		return "", errors.New("cloudinary upload failed: empty response")
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("cloudinary upload failed: no URL returned")
	}
	return res.SecureURL, nil
}
