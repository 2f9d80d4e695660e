// internal/handler/message_handler.go
package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/contractor-followups/internal/controller"
	"github.com/unclebandit/contractor-followups/internal/model"
	"github.com/unclebandit/contractor-followups/internal/service"
)

// TimelineService returns a parent's follow-ups with status counts.
type TimelineService interface {
	Timeline(ctx context.Context, ref model.ParentRef) (*service.Timeline, error)
}

// MessageHandler serves read-only views of follow-up messages.
type MessageHandler struct {
	Service TimelineService
	Logger  *zap.Logger
}

func NewMessageHandler(svc TimelineService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{Service: svc, Logger: logger}
}

// GetTimelineHandler returns GET /{kind}s/{id}/messages.
func (h *MessageHandler) GetTimelineHandler(kind model.ParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := controller.ParseID(r)
		if err != nil {
			controller.WriteError(w, err)
			return
		}

		ref := model.ParentRef{Kind: kind, ID: id}
		timeline, err := h.Service.Timeline(r.Context(), ref)
		if err != nil {
			if controller.StatusFor(err) == http.StatusInternalServerError {
				h.Logger.Error("failed to load follow-up timeline", zap.String("parent", ref.String()), zap.Error(err))
			}
			controller.WriteError(w, err)
			return
		}

		controller.WriteJSON(w, http.StatusOK, timeline)
	}
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
