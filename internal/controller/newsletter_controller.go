// internal/controller/newsletter_controller.go
package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/auth"
	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
	"github.com/unclebandit/ngo-backoffice/internal/service"
)

// Broadcaster runs a broadcast synchronously.
type Broadcaster interface {
	Broadcast(ctx context.Context, req service.BroadcastRequest) (*service.BroadcastResult, error)
}

// BroadcastEnqueuer queues a broadcast for a worker.
type BroadcastEnqueuer interface {
	Enqueue(ctx context.Context, req service.BroadcastRequest, requestedBy string) error
}

type NewsletterController struct {
	Service     *service.NewsletterService
	Broadcaster Broadcaster
	Jobs        BroadcastEnqueuer // nil disables ?async=true
	Logger      *zap.Logger
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type sendMessageRequest struct {
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
}

func (c *NewsletterController) Subscribe(w http.ResponseWriter, r *http.Request) {
	var body subscribeRequest
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	sub, err := c.Service.Subscribe(r.Context(), body.Email)
	if err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Successfully subscribed to newsletter",
		"data": map[string]interface{}{
			"email":         sub.Email,
			"subscribed_at": sub.SubscribedAt,
		},
	})
}

func (c *NewsletterController) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	res, err := c.Service.Unsubscribe(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	status, success, message := http.StatusOK, true, "Successfully unsubscribed from newsletter"
	switch {
	case !res.Known:
		status, success, message = http.StatusNotFound, false, "Invalid unsubscribe token"
	case !res.Unsubscribed:
		status, success, message = http.StatusBadRequest, false, "Email is already unsubscribed"
	}

	if wantsHTML(r) {
		writeUnsubscribeResult(w, status, message, res.Email)
		return
	}
	body := map[string]interface{}{
		"success": success,
		"message": message,
	}
	if res.Known {
		body["data"] = map[string]string{"email": res.Email}
	}
	WriteJSON(w, status, body)
}

// UnsubscribePage serves the link placed in every newsletter. GET never
// changes state; the page posts back to the same URL to confirm.
func (c *NewsletterController) UnsubscribePage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		WriteError(w, r, c.Logger, appErrors.NewValidation("token", "is required"))
		return
	}
	writeUnsubscribeConfirm(w, r.URL.Path)
}

// SendMessage runs a broadcast. The status code is 200 when every delivery
// succeeded, 207 on partial success and 500 when nothing was delivered.
func (c *NewsletterController) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageRequest
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}
	req := service.BroadcastRequest{
		Subject:     body.Subject,
		Body:        body.Message,
		MessageType: body.MessageType,
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		c.enqueue(w, r, req)
		return
	}

	result, err := c.Broadcaster.Broadcast(r.Context(), req)
	if err != nil && result == nil {
		WriteError(w, r, c.Logger, err)
		return
	}
	if err != nil && (appErrors.IsLedger(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		status := http.StatusInternalServerError
		if !appErrors.IsLedger(err) {
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, map[string]interface{}{
			"success": false,
			"message": result.Message,
			"data":    result,
		})
		return
	}

	status := http.StatusOK
	switch result.Status {
	case service.BroadcastPartial:
		status = http.StatusMultiStatus
	case service.BroadcastFailed:
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, map[string]interface{}{
		"success": result.Success,
		"message": result.Message,
		"data":    result,
	})
}

func (c *NewsletterController) enqueue(w http.ResponseWriter, r *http.Request, req service.BroadcastRequest) {
	if c.Jobs == nil {
		WriteError(w, r, c.Logger, appErrors.NewValidation("async", "is not available"))
		return
	}
	actor := ""
	if p, ok := auth.FromContext(r.Context()); ok {
		actor = p.ActorName()
	}
	if err := c.Jobs.Enqueue(r.Context(), req, actor); err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Broadcast queued",
	})
}

func (c *NewsletterController) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.Service.Stats(r.Context())
	if err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    stats,
	})
}

func (c *NewsletterController) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := c.Service.ListSubscribers(r.Context())
	if err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    subs,
		"count":   len(subs),
	})
}

func (c *NewsletterController) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.DeleteSubscriber(r.Context(), chi.URLParam(r, "email")); err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Subscriber deleted",
	})
}

func (c *NewsletterController) ListMessages(w http.ResponseWriter, r *http.Request) {
	page, pageSize := PageParams(r)

	messages, pagination, err := c.Service.ListMessages(r.Context(), page, pageSize)
	if err != nil {
		WriteError(w, r, c.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       messages,
		"pagination": pagination,
	})
}
