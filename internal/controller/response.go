package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/logger"
)

const maxBodyBytes = 1 << 20

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code and a {success:false, message} body.
// Unclassified errors are logged and reported as 500 without detail.
func WriteError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	var ve *appErrors.ValidationError
	var nf *appErrors.NotFoundError
	switch {
	case errors.As(err, &ve):
		status, msg = http.StatusBadRequest, ve.Error()
	case errors.As(err, &nf):
		status, msg = http.StatusNotFound, nf.Error()
	case errors.Is(err, appErrors.ErrAlreadySubscribed),
		errors.Is(err, appErrors.ErrNoRecipients):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, appErrors.ErrBroadcastInProgress):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusServiceUnavailable, "request cancelled"
	}

	if status >= http.StatusInternalServerError && log != nil {
		logger.WithRequest(r.Context(), log).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"message": msg,
	})
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return appErrors.NewValidation("", "invalid request body")
	}
	return nil
}

// PageParams reads page and page_size (or limit) from the query string.
// Out-of-range values are clamped by the services.
func PageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize == 0 {
		pageSize, _ = strconv.Atoi(q.Get("limit"))
	}
	return page, pageSize
}
