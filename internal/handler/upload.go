package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pantrypal-api/internal/imaging"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/middleware"
	"pantrypal-api/internal/upload"
	"pantrypal-api/pkg/apierror"
	"pantrypal-api/pkg/response"
	"pantrypal-api/pkg/uid"
)

const (
	imageField = "image"

	// maxUploadBytes leaves room for multipart framing around the image.
	maxUploadBytes = imaging.MaxInputBytes + 1<<20
	maxMemory      = 8 << 20
)

// UploadHandler stores item photos.
type UploadHandler struct {
	uploader upload.Uploader
	log      logging.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(uploader upload.Uploader, log logging.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, log: logging.For(log, "upload_handler")}
}

// UploadedImage is the body of a successful upload.
type UploadedImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Image handles POST /api/v1/uploads/image with a multipart "image" field.
func (h *UploadHandler) Image(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetTokenDataFromContext(r.Context())
	if token == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, apierror.TooLarge("Image is too large"))
			return
		}
		response.Error(w, apierror.BadRequest("Expected a multipart form with an image field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile(imageField)
	if err != nil {
		response.Error(w, apierror.ValidationError("", apierror.FieldError{Field: imageField, Message: "is required"}))
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		if !errors.Is(err, imaging.ErrUnsupportedFormat) && !errors.Is(err, imaging.ErrTooLarge) {
			response.Error(w, apierror.BadRequest("Could not read image"))
			return
		}
		writeError(w, r, h.log, err)
		return
	}

	url, err := h.store(r.Context(), token.UserID, photo)
	if err != nil {
		if errors.Is(err, upload.ErrUploadDisabled) {
			writeError(w, r, h.log, err)
			return
		}
		h.log.Error("image upload failed", "user_id", token.UserID, "error", err)
		response.Error(w, apierror.BadGateway("Image upload failed"))
		return
	}
	response.Created(w, UploadedImage{URL: url, Width: photo.Width, Height: photo.Height})
}

func (h *UploadHandler) store(ctx context.Context, userID string, photo *imaging.Photo) (string, error) {
	key := fmt.Sprintf("items/%s/%s.jpg", userID, uid.New())
	url, err := h.uploader.Upload(ctx, key, photo.Data, photo.MIME)
	if err != nil {
		return "", err
	}
	h.log.Info("image uploaded", "user_id", userID, "key", key, "bytes", len(photo.Data))
	return url, nil
}
