package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"pantrypal-api/internal/barcode"
	"pantrypal-api/internal/imaging"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/middleware"
	"pantrypal-api/internal/pantry"
	"pantrypal-api/internal/repository"
	"pantrypal-api/internal/service"
	"pantrypal-api/internal/upload"
	"pantrypal-api/pkg/apierror"
	"pantrypal-api/pkg/response"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation details.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apierror.TooLarge("")
		case errors.Is(err, io.EOF):
			return apierror.BadRequest("Request body is required")
		default:
			return apierror.BadRequest("Invalid JSON body")
		}
	}
	return validateStruct(dst)
}

// validateStruct turns validator failures into a field-level API error.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierror.BadRequest("Invalid request")
	}
	details := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apierror.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return apierror.ValidationError("", details...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "numeric":
		return "must contain digits only"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "is invalid"
	}
}

// writeError maps domain errors to API errors. Unknown errors are logged
// and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	response.Error(w, toAPIError(r, log, err))
}

func toAPIError(r *http.Request, log logging.Logger, err error) *apierror.Error {
	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, pantry.ErrAuthRequired):
		return apierror.Unauthorized("")
	case errors.Is(err, repository.ErrItemNotFound):
		return apierror.NotFound("Item not found")
	case errors.Is(err, repository.ErrUserNotFound):
		return apierror.NotFound("User not found")
	case errors.Is(err, repository.ErrEmailTaken):
		return apierror.Conflict("Email is already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apierror.Unauthorized("Invalid email or password")
	case errors.Is(err, service.ErrWeakPassword):
		return apierror.ValidationError("", apierror.FieldError{Field: "password", Message: err.Error()})
	case errors.Is(err, service.ErrInvalidEmail):
		return apierror.ValidationError("", apierror.FieldError{Field: "email", Message: "is required"})
	case errors.Is(err, service.ErrInvalidResetToken):
		return apierror.BadRequest("Invalid or expired reset token")
	case errors.Is(err, service.ErrNameRequired):
		return apierror.ValidationError("", apierror.FieldError{Field: "name", Message: "is required"})
	case errors.Is(err, service.ErrInvalidDate):
		return apierror.ValidationError("", apierror.FieldError{Field: dateField(err), Message: service.ErrInvalidDate.Error()})
	case errors.Is(err, barcode.ErrInvalidBarcode):
		return apierror.BadRequest("Barcode must be 8 to 14 digits")
	case errors.Is(err, barcode.ErrProductNotFound):
		return apierror.NotFound("Product not found")
	case errors.Is(err, upload.ErrUploadDisabled):
		return apierror.ServiceUnavailable("Image uploads are not configured")
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return apierror.UnsupportedMediaType("Only JPEG and PNG images are accepted")
	case errors.Is(err, imaging.ErrTooLarge):
		return apierror.TooLarge("Image is too large")
	}

	log.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	)
	return apierror.InternalError("")
}

// dateField names the form field a date error came from.
func dateField(err error) string {
	if strings.HasPrefix(err.Error(), "purchase date") {
		return "purchaseDate"
	}
	return "expirationDate"
}
