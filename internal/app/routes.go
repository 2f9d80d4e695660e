package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/contractor-followups/internal/controller"
	"github.com/unclebandit/contractor-followups/internal/handler"
	"github.com/unclebandit/contractor-followups/internal/middleware"
	"github.com/unclebandit/contractor-followups/internal/model"
)

type Handlers struct {
	Dispatch   *controller.DispatchController
	FollowUps  *controller.FollowUpController
	Messages   *handler.MessageHandler
	CronSecret string
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Metrics)

	r.Get("/health", handler.HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Cron trigger
	r.Route("/api/messages", func(r chi.Router) {
		r.Use(middleware.BearerSecret(h.CronSecret))
		r.Post("/send", h.Dispatch.Send)
		r.Post("/test", h.Dispatch.Test)
	})

	r.Post("/leads", h.FollowUps.CreateLead)
	r.Post("/quotes", h.FollowUps.CreateQuote)
	r.Post("/quotes/{id}/duplicate", h.FollowUps.DuplicateQuote)
	r.Post("/sequences/preview", h.FollowUps.PreviewSequence)

	for _, kind := range []model.ParentKind{model.ParentLead, model.ParentQuote, model.ParentProject} {
		base := "/" + string(kind) + "s/{id}"
		r.Patch(base+"/status", h.FollowUps.UpdateStatus(kind))
		r.Delete(base, h.FollowUps.Delete(kind))
		r.Get(base+"/messages", h.Messages.GetTimelineHandler(kind))
	}

	return r
}
