package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/iapkit/pkg/grant"
	"github.com/dmitrymomot/iapkit/pkg/httpserver"
	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/purchase"
	"github.com/dmitrymomot/iapkit/pkg/ratelimiter"
	"github.com/dmitrymomot/iapkit/pkg/requestid"
)

const maxBody = 64 << 10

type stubConfig struct {
	Env                string        `env:"APP_ENV" envDefault:"development"`
	SigningSecret      string        `env:"GRANTSTUB_SIGNING_SECRET"`
	SignatureTolerance time.Duration `env:"GRANTSTUB_SIGNATURE_TOLERANCE" envDefault:"5m"`
	// Products maps store product ids to the coins they grant.
	Products map[string]int `env:"GRANTSTUB_PRODUCTS" envDefault:"coins_100:100,coins_550:550,coins_1200:1200,no_ads:0" envSeparator:"," envKeyValSeparator:":"`
	RedisURL string         `env:"REDIS_URL"`
	OrderTTL time.Duration  `env:"GRANTSTUB_ORDER_TTL" envDefault:"720h"`
}

type server struct {
	cfg     stubConfig
	orders  orderStore
	limiter *ratelimiter.Bucket
	log     *slog.Logger
}

func newServer(cfg stubConfig, orders orderStore, limiter *ratelimiter.Bucket, log *slog.Logger) *server {
	return &server{cfg: cfg, orders: orders, limiter: limiter, log: log}
}

func (s *server) routes(checks ...httpserver.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Get("/healthz", httpserver.HealthHandler(s.log))
	r.Get("/readyz", httpserver.HealthHandler(s.log, checks...))
	r.Post("/purchase", s.purchase)
	return r
}

type grantResponse struct {
	OrderID     string         `json:"orderId"`
	ProductID   string         `json:"productId"`
	Restore     bool           `json:"restore,omitempty"`
	Consumables map[string]int `json:"consumables"`
}

func (s *server) purchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}

	if s.cfg.SigningSecret != "" && !grant.Verify(s.cfg.SigningSecret, body,
		r.Header.Get(grant.HeaderSignature), r.Header.Get(grant.HeaderTimestamp), s.cfg.SignatureTolerance) {
		s.log.WarnContext(ctx, "grant signature rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_signature"})
		return
	}

	var req grant.Request
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}
	log := s.log.With(logger.UserID(req.UserID), logger.ProductID(req.ProductID), logger.TransactionID(req.TransactionID))

	if s.limiter != nil && req.UserID != "" {
		res, err := s.limiter.Allow(ctx, req.UserID)
		if err == nil && !res.Allowed() {
			log.WarnContext(ctx, "grant throttled")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": ratelimiter.CodeRateLimited})
			return
		}
	}

	coins, known := s.cfg.Products[req.ProductID]
	switch {
	case !known:
		log.InfoContext(ctx, "grant rejected, unknown product")
		writeJSON(w, http.StatusOK, map[string]string{"error": string(purchase.CodePackNotFound)})
		return
	case req.Receipt == "" || req.TransactionID == "":
		log.InfoContext(ctx, "grant rejected, no receipt")
		writeJSON(w, http.StatusOK, map[string]string{"error": string(purchase.CodeNoPurchaseFound)})
		return
	}

	orderID := uuid.NewString()
	fresh, err := s.orders.Claim(ctx, req.TransactionID, orderID)
	if err != nil {
		log.ErrorContext(ctx, "claim order", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	if !fresh {
		log.InfoContext(ctx, "grant rejected, duplicate order")
		writeJSON(w, http.StatusOK, map[string]string{"error": string(purchase.CodeDuplicateOrder)})
		return
	}

	log.InfoContext(ctx, "granted", slog.String("order_id", orderID), slog.Int("coins", coins))
	writeJSON(w, http.StatusOK, grantResponse{
		OrderID:     orderID,
		ProductID:   req.ProductID,
		Restore:     req.Restore,
		Consumables: map[string]int{"coins": coins},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
