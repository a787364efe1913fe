// internal/handler/admin_handler.go
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/controller"
	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/model"
	"github.com/unclebandit/ngo-backoffice/internal/service"
)

// AdminHandler holds the read-side admin endpoints.
type AdminHandler struct {
	Newsletter     *service.NewsletterService
	Donations      *service.DonationService
	Collaborations *service.CollaborationService
	Logger         *zap.Logger
}

// GetMessageHandler returns one ledger row with its delivery stats.
func (h *AdminHandler) GetMessageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		controller.WriteError(w, r, h.Logger, appErrors.NewValidation("id", "must be an integer"))
		return
	}

	details, err := h.Newsletter.GetMessage(r.Context(), id)
	if err != nil {
		controller.WriteError(w, r, h.Logger, err)
		return
	}

	controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    details,
	})
}

// ListDonationsHandler returns a filtered, paginated list of donations.
// from and to accept RFC 3339 timestamps or YYYY-MM-DD dates.
func (h *AdminHandler) ListDonationsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.DonationFilter{
		Status: strings.TrimSpace(q.Get("status")),
		Search: strings.TrimSpace(q.Get("search")),
	}

	var err error
	if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
		controller.WriteError(w, r, h.Logger, appErrors.NewValidation("from", "must be a date"))
		return
	}
	if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
		controller.WriteError(w, r, h.Logger, appErrors.NewValidation("to", "must be a date"))
		return
	}

	page, pageSize := controller.PageParams(r)
	donations, pagination, err := h.Donations.List(r.Context(), filter, page, pageSize)
	if err != nil {
		controller.WriteError(w, r, h.Logger, err)
		return
	}

	controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       donations,
		"pagination": pagination,
	})
}

// ListCollaborationsHandler returns a filtered, paginated list of collaboration requests.
func (h *AdminHandler) ListCollaborationsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.CollaborationFilter{
		Status: strings.TrimSpace(q.Get("status")),
		Type:   strings.TrimSpace(q.Get("type")),
		Search: strings.TrimSpace(q.Get("search")),
	}

	page, pageSize := controller.PageParams(r)
	requests, pagination, err := h.Collaborations.List(r.Context(), filter, page, pageSize)
	if err != nil {
		controller.WriteError(w, r, h.Logger, err)
		return
	}

	controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       requests,
		"pagination": pagination,
	})
}

func parseTimeParam(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
