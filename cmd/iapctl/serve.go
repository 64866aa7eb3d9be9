package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/iapkit/pkg/config"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/httpserver"
	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/purchase"
	"github.com/dmitrymomot/iapkit/pkg/ratelimiter"
	"github.com/dmitrymomot/iapkit/pkg/requestid"
)

const streamBuffer = 32

func newServeCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the controller over HTTP",
		Long: `serve runs one controller behind an HTTP API. Purchases are started with
POST /purchases/{packID}; their progress is streamed on GET /events as
server-sent events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var hcfg httpserver.Config
			if err := config.Load(&hcfg); err != nil {
				return err
			}
			var lcfg ratelimiter.Config
			if err := config.Load(&lcfg); err != nil {
				return err
			}
			store := ratelimiter.NewMemoryStore()
			defer store.Close()
			limiter, err := ratelimiter.NewBucket(store, lcfg)
			if err != nil {
				return err
			}

			s, err := buildStack(cmd.Context(), f, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.Close()

			stream := events.NewStream(s.notifier, streamBuffer)
			defer stream.Close()

			srv := httpserver.New(hcfg, httpserver.WithLogger(s.log))
			return srv.Run(cmd.Context(), newAPI(s, stream, limiter))
		},
	}
}

type api struct {
	s      *stack
	stream *events.Stream
}

func newAPI(s *stack, stream *events.Stream, limiter *ratelimiter.Bucket) http.Handler {
	a := &api{s: s, stream: stream}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Get("/healthz", httpserver.HealthHandler(s.log))
	r.Get("/readyz", httpserver.HealthHandler(s.log, append(s.checks, httpserver.Check{
		Name: "catalog",
		Func: func(ctx context.Context) error {
			if !s.ctrl.PackagesReady() {
				return fmt.Errorf("sdk state %s", s.ctrl.SDKState())
			}
			return nil
		},
	})...))

	r.Get("/packs", a.packs)
	r.Route("/purchases", func(r chi.Router) {
		r.Use(ratelimiter.Middleware(limiter, ratelimiter.RemoteHost, s.log))
		r.Post("/retry", a.retry)
		r.Get("/granted", a.granted)
		r.Post("/{packID}", a.purchase)
	})
	r.Get("/events", a.events)
	r.Get("/events/signals", a.signals)
	if s.paddle != nil {
		r.Method(http.MethodPost, "/webhooks/paddle", s.paddle.WebhookHandler())
	}
	return r
}

func (a *api) packs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state": a.s.ctrl.SDKState().String(),
		"packs": a.s.ctrl.Packs(),
	})
}

func (a *api) purchase(w http.ResponseWriter, r *http.Request) {
	packID := chi.URLParam(r, "packID")
	if !a.s.ctrl.ContainsPack(packID) {
		writeError(w, http.StatusNotFound, purchase.CodePackNotFound.MessageKey())
		return
	}
	a.accepted(w, r, a.s.ctrl.InitiatePurchaseFlow(packID))
}

func (a *api) retry(w http.ResponseWriter, r *http.Request) {
	a.accepted(w, r, a.s.ctrl.RetryPurchaseFlow())
}

func (a *api) accepted(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"flowState": a.s.ctrl.FlowState().String()})
	case errors.Is(err, purchase.ErrPurchaseInProgress), errors.Is(err, purchase.ErrNothingToRetry):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, purchase.ErrControllerClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		a.s.log.ErrorContext(r.Context(), "purchase request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *api) granted(w http.ResponseWriter, r *http.Request) {
	entries, err := a.s.ctrl.ClearProductsGrantedSilently(r.Context())
	if err != nil {
		a.s.log.ErrorContext(r.Context(), "drain silent grants", logger.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// events streams controller events until the client goes away.
func (a *api) events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// the stream outlives the server write timeout
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		a.s.log.WarnContext(r.Context(), "clear write deadline", logger.Error(err))
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	sub := a.stream.Subscribe(r.Context())
	defer sub.Close()
	for e := range sub.Events() {
		data, err := json.Marshal(e)
		if err != nil {
			a.s.log.WarnContext(r.Context(), "encode event", logger.Event(string(e.Name)), logger.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Name, data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// signals patches datastar signals with the controller state after every
// event, for UIs bound with data-signals.
func (a *api) signals(w http.ResponseWriter, r *http.Request) {
	sub := a.stream.Subscribe(r.Context())
	defer sub.Close()

	sse := datastar.NewSSE(w, r)
	if err := sse.MarshalAndPatchSignals(a.snapshot("")); err != nil {
		return
	}
	for e := range sub.Events() {
		if err := sse.MarshalAndPatchSignals(a.snapshot(e.Name)); err != nil {
			a.s.log.DebugContext(r.Context(), "signals stream closed", logger.Error(err))
			return
		}
	}
}

func (a *api) snapshot(last events.Name) map[string]any {
	return map[string]any{"iap": map[string]any{
		"sdkState":   a.s.ctrl.SDKState().String(),
		"flowState":  a.s.ctrl.FlowState().String(),
		"inProgress": a.s.ctrl.IsPurchaseFlowInProgress(),
		"canRetry":   a.s.ctrl.CanRetry(),
		"lastEvent":  string(last),
	}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("write response", logger.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
