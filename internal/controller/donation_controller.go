// internal/controller/donation_controller.go
package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/service"
)

type DonationController struct {
	Service *service.DonationService
	Logger  *zap.Logger
}

func (c *DonationController) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DonorName string  `json:"donor_name"`
		Email     string  `json:"email"`
		Amount    float64 `json:"amount"`
		Currency  string  `json:"currency"`
		Message   string  `json:"message"`
		Anonymous bool    `json:"anonymous"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	donation, err := c.Service.Record(r.Context(), service.DonationInput{
		DonorName: body.DonorName,
		Email:     body.Email,
		Amount:    body.Amount,
		Currency:  body.Currency,
		Message:   body.Message,
		Anonymous: body.Anonymous,
	})
	if err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Thank you for your donation",
		"data":    donation,
	})
}
