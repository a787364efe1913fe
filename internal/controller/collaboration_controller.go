// internal/controller/collaboration_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/auth"
	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/service"
)

type CollaborationController struct {
	Service *service.CollaborationService
	Logger  *zap.Logger
}

func (c *CollaborationController) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Organization      string `json:"organization"`
		ContactName       string `json:"contact_name"`
		Email             string `json:"email"`
		Phone             string `json:"phone"`
		CollaborationType string `json:"collaboration_type"`
		Message           string `json:"message"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	req, err := c.Service.Submit(r.Context(), service.CollaborationInput{
		Organization:      body.Organization,
		ContactName:       body.ContactName,
		Email:             body.Email,
		Phone:             body.Phone,
		CollaborationType: body.CollaborationType,
		Message:           body.Message,
	})
	if err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Collaboration request received",
		"data":    req,
	})
}

// UpdateStatus handles PATCH /admin/collaborations/{id}/status.
func (c *CollaborationController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, c.Logger, appErrors.NewValidation("id", "must be an integer"))
		return
	}

	var body struct {
		Status     string `json:"status"`
		AdminNotes string `json:"admin_notes"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	actor, _ := auth.FromContext(r.Context())
	req, err := c.Service.UpdateStatus(r.Context(), id, body.Status, body.AdminNotes, actor)
	if err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    req,
	})
}
