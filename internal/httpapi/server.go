// Package httpapi exposes the pricing service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealer-pricing/internal/config"
	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/service"
	"dealer-pricing/internal/storage"
)

// PricingService is the subset of the service layer the API needs.
type PricingService interface {
	SuggestForProfile(ctx context.Context, tenantID uuid.UUID, profile pricing.VehicleProfile, asOf time.Time) (pricing.Suggestion, error)
	SuggestForVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID, asOf time.Time) (pricing.Suggestion, storage.VehicleRecord, error)
	PersistSuggestion(ctx context.Context, s pricing.Suggestion) (storage.SuggestionRecord, error)
	LatestSuggestion(ctx context.Context, tenantID, vehicleID uuid.UUID) (storage.SuggestionRecord, error)
	ApplySuggestedPrice(ctx context.Context, tenantID, vehicleID uuid.UUID, price decimal.Decimal) error
	GetRules(ctx context.Context, tenantID uuid.UUID) (pricing.PricingRules, error)
	UpdateRules(ctx context.Context, tenantID uuid.UUID, rules pricing.PricingRules) (pricing.PricingRules, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the fiber app.
type Server struct {
	app      *fiber.App
	svc      PricingService
	health   Pinger
	validate *validator.Validate
	addr     string
	logger   zerolog.Logger
}

// New builds the server and registers routes. health may be nil.
func New(cfg config.HTTPConfig, svc PricingService, health Pinger, logger zerolog.Logger) *Server {
	s := &Server{
		svc:      svc,
		health:   health,
		validate: validator.New(),
		addr:     cfg.ListenAddr,
		logger:   logger.With().Str("component", "http").Logger(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "dealer-pricing",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(requestLogger(s.logger))

	s.app.Get("/healthz", s.healthz)

	api := s.app.Group("/api/v1")
	tenants := api.Group("/tenants/:tenant")
	tenants.Post("/suggestions", s.suggestProfile)
	tenants.Get("/vehicles/:vehicle/suggestion", s.suggestVehicle)
	tenants.Get("/vehicles/:vehicle/suggestions/latest", s.latestSuggestion)
	tenants.Post("/vehicles/:vehicle/apply-price", s.applyPrice)
	tenants.Get("/pricing-rules", s.getRules)
	tenants.Put("/pricing-rules", s.putRules)

	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("http server listening")
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return ctx.Err()
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	var (
		fe *fiber.Error
		ve *pricing.ValidationError
	)
	switch {
	case errors.As(err, &ve):
		status = fiber.StatusUnprocessableEntity
		body.Field = ve.Field
	case errors.Is(err, errBadRequest):
		status = fiber.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, storage.ErrNotConfigured):
		status = fiber.StatusServiceUnavailable
	case errors.As(err, &fe):
		status = fe.Code
	case errors.Is(err, service.ErrInvalidPrice):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrVehicleNotInStock):
		status = fiber.StatusConflict
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		if errors.Is(err, pricing.ErrInvariantViolation) {
			body.Error = "internal pricing error"
		}
	}
	return c.Status(status).JSON(body)
}
