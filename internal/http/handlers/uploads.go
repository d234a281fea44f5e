package handlers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kitchen-order-service/internal/utils"
	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const maxPhotoSide = 1200

type fileReadErrorKind string

const (
	fileReadErrMissing     fileReadErrorKind = "missing"
	fileReadErrReadFailed  fileReadErrorKind = "read_failed"
	fileReadErrTooLarge    fileReadErrorKind = "too_large"
	fileReadErrInvalidType fileReadErrorKind = "invalid_type"
)

type fileReadError struct {
	Kind    fileReadErrorKind
	Message string
	Err     error
}

func readFileBytes(r *http.Request, field string, maxBytes int64) ([]byte, *fileReadError) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, &fileReadError{Kind: fileReadErrMissing, Message: "File is required", Err: err}
	}
	defer file.Close()

	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	data, readErr := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if readErr != nil {
		return nil, &fileReadError{Kind: fileReadErrReadFailed, Message: "Failed to read file", Err: readErr}
	}
	if int64(len(data)) > maxBytes {
		return nil, &fileReadError{Kind: fileReadErrTooLarge, Message: fmt.Sprintf("File size must be less than %dMB.", maxBytes/(1024*1024))}
	}

	ct := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if ct == "" {
		ct = utils.DetectContentType(data)
	}
	if !utils.ValidateImageContentType(ct) {
		return nil, &fileReadError{Kind: fileReadErrInvalidType, Message: "Invalid file type. Please upload an image file."}
	}
	return data, nil
}

func randomSuffix8() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// AdminFoodItemUploadImage normalizes an uploaded photo to JPEG, stores it,
// and points the food item at the new URL. The previous photo is deleted
// best effort.
func (h *Handler) AdminFoodItemUploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Store == nil {
		response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured")
		return
	}

	foodItemID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var previousURL pgtype.Text
	if err := h.DB.QueryRow(ctx, `select image_url from food_items where id = $1`, foodItemID).Scan(&previousURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Food item not found")
			return
		}
		h.Logger.Error("food item lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload image")
		return
	}

	data, ferr := readFileBytes(r, "file", h.Config.MaxFileSizeBytes)
	if ferr != nil {
		switch ferr.Kind {
		case fileReadErrMissing:
			response.Error(w, http.StatusBadRequest, "FILE_REQUIRED", "File is required")
		case fileReadErrTooLarge, fileReadErrInvalidType:
			response.Error(w, http.StatusBadRequest, "INVALID_FILE", ferr.Message)
		default:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload image")
		}
		return
	}

	jpegBytes, err := utils.EncodeJpegFitInside(data, maxPhotoSide, 88)
	if err != nil {
		h.Logger.Error("image encode failed", zapError(err), zap.Int64("foodItemId", foodItemID))
		response.Error(w, http.StatusBadRequest, "INVALID_FILE", "Failed to process image")
		return
	}

	key := fmt.Sprintf("food-items/%d/photo-%d-%s.jpg", foodItemID, time.Now().UnixMilli(), randomSuffix8())
	url, err := h.Store.PutObject(ctx, key, jpegBytes, "image/jpeg")
	if err != nil {
		h.Logger.Error("image upload failed", zapError(err), zap.Int64("foodItemId", foodItemID))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload image")
		return
	}

	if _, err := h.DB.Exec(ctx, `update food_items set image_url = $2, updated_at = now() where id = $1`, foodItemID, url); err != nil {
		h.Logger.Error("image url update failed", zapError(err), zap.Int64("foodItemId", foodItemID))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload image")
		return
	}

	if prev := textPtr(previousURL); prev != nil && *prev != url {
		if err := h.Store.DeleteURL(ctx, *prev); err != nil {
			h.Logger.Warn("previous image delete failed", zapError(err), zap.Int64("foodItemId", foodItemID))
		}
	}

	response.Success(w, map[string]any{"url": url})
}

// AdminFoodItemDeleteImage clears a food item's photo and removes the
// stored object.
func (h *Handler) AdminFoodItemDeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	foodItemID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var imageURL pgtype.Text
	if err := h.DB.QueryRow(ctx, `select image_url from food_items where id = $1`, foodItemID).Scan(&imageURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Food item not found")
			return
		}
		h.Logger.Error("food item lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete image")
		return
	}

	if _, err := h.DB.Exec(ctx, `update food_items set image_url = null, updated_at = now() where id = $1`, foodItemID); err != nil {
		h.Logger.Error("image clear failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete image")
		return
	}

	if url := textPtr(imageURL); url != nil && h.Store != nil {
		if err := h.Store.DeleteURL(ctx, *url); err != nil {
			h.Logger.Warn("image object delete failed", zapError(err), zap.Int64("foodItemId", foodItemID))
		}
	}

	response.Success(w, map[string]any{"deleted": true})
}
