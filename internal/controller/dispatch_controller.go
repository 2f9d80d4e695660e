package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/unclebandit/contractor-followups/internal/channel"
	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/service"
)

// DispatchRunner runs one dispatch cycle.
type DispatchRunner interface {
	Run(ctx context.Context) (*service.DispatchResult, error)
}

// DispatchController serves the cron trigger. Routes are expected behind
// middleware.BearerSecret.
type DispatchController struct {
	Dispatcher DispatchRunner
	Sender     channel.Sender
	Production bool
	Logger     *zap.Logger
}

func (c *DispatchController) Send(w http.ResponseWriter, r *http.Request) {
	result, err := c.Dispatcher.Run(r.Context())
	if errors.Is(err, appErrors.ErrDispatchInProgress) {
		WriteJSON(w, http.StatusOK, map[string]any{"message": "Dispatch already in progress", "sent": 0})
		return
	}
	if err != nil {
		c.Logger.Error("dispatch cycle failed", zap.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if result.Due == 0 {
		WriteJSON(w, http.StatusOK, map[string]any{"message": "No messages to send", "sent": 0})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Messages processed",
		"sent":    result.Sent,
		"failed":  result.Failed,
		"results": result.Results,
	})
}

// Test sends a single message straight through the channel. Disabled in production.
func (c *DispatchController) Test(w http.ResponseWriter, r *http.Request) {
	if c.Production {
		WriteJSON(w, http.StatusForbidden, map[string]string{"error": "Not available in production"})
		return
	}

	var body struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if strings.TrimSpace(body.To) == "" || strings.TrimSpace(body.Message) == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: to, message"})
		return
	}

	res := c.Sender.Send(r.Context(), body.To, body.Message)
	c.Logger.Info("test message sent", zap.String("to", body.To), zap.Bool("success", res.Success))
	WriteJSON(w, http.StatusOK, res)
}
