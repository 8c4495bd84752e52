package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/version"
)

var (
	errBadRequest     = errors.New("bad request")
	errInvalidPayload = errors.New("invalid payload")
)

type suggestRequest struct {
	Vehicle pricing.VehicleProfile `json:"vehicle"`
	AsOf    *time.Time             `json:"as_of"`
	Persist bool                   `json:"persist"`
}

type suggestionResponse struct {
	SuggestionID *uuid.UUID         `json:"suggestion_id,omitempty"`
	Suggestion   pricing.Suggestion `json:"suggestion"`
}

type applyPriceRequest struct {
	Price string `json:"price" validate:"required,numeric"`
}

type applyPriceResponse struct {
	VehicleID   uuid.UUID       `json:"vehicle_id"`
	AskingPrice decimal.Decimal `json:"asking_price"`
}

func (s *Server) healthz(c *fiber.Ctx) error {
	if s.health != nil {
		if err := s.health.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ok", "version": version.Version})
}

func (s *Server) suggestProfile(c *fiber.Ctx) error {
	tenantID, err := uuidParam(c, "tenant")
	if err != nil {
		return err
	}
	var req suggestRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	var asOf time.Time
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	sug, err := s.svc.SuggestForProfile(c.UserContext(), tenantID, req.Vehicle, asOf)
	if err != nil {
		return err
	}
	return s.respondSuggestion(c, sug, req.Persist)
}

func (s *Server) suggestVehicle(c *fiber.Ctx) error {
	tenantID, err := uuidParam(c, "tenant")
	if err != nil {
		return err
	}
	vehicleID, err := uuidParam(c, "vehicle")
	if err != nil {
		return err
	}
	asOf, err := asOfQuery(c)
	if err != nil {
		return err
	}

	sug, _, err := s.svc.SuggestForVehicle(c.UserContext(), tenantID, vehicleID, asOf)
	if err != nil {
		return err
	}
	return s.respondSuggestion(c, sug, c.QueryBool("persist"))
}

func (s *Server) latestSuggestion(c *fiber.Ctx) error {
	tenantID, err := uuidParam(c, "tenant")
	if err != nil {
		return err
	}
	vehicleID, err := uuidParam(c, "vehicle")
	if err != nil {
		return err
	}

	rec, err := s.svc.LatestSuggestion(c.UserContext(), tenantID, vehicleID)
	if err != nil {
		return err
	}
	return c.JSON(suggestionResponse{SuggestionID: &rec.ID, Suggestion: rec.Suggestion})
}

func (s *Server) respondSuggestion(c *fiber.Ctx, sug pricing.Suggestion, persist bool) error {
	resp := suggestionResponse{Suggestion: sug}
	if persist {
		rec, err := s.svc.PersistSuggestion(c.UserContext(), sug)
		if err != nil {
			return err
		}
		resp.SuggestionID = &rec.ID
	}
	return c.JSON(resp)
}

func (s *Server) applyPrice(c *fiber.Ctx) error {
	tenantID, err := uuidParam(c, "tenant")
	if err != nil {
		return err
	}
	vehicleID, err := uuidParam(c, "vehicle")
	if err != nil {
		return err
	}
	var req applyPriceRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("%s: price failed %s check", errInvalidPayload, verrs[0].Tag()))
		}
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("%s: %v", errInvalidPayload, err))
	}

	if err := s.svc.ApplySuggestedPrice(c.UserContext(), tenantID, vehicleID, price); err != nil {
		return err
	}
	return c.JSON(applyPriceResponse{VehicleID: vehicleID, AskingPrice: price.Round(0)})
}

func (s *Server) getRules(c *fiber.Ctx) error {
	tenantID, err := uuidParam(c, "tenant")
	if err != nil {
		return err
	}
	rules, err := s.svc.GetRules(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(rules)
}

func (s *Server) putRules(c *fiber.Ctx) error {
	tenantID, err := uuidParam(c, "tenant")
	if err != nil {
		return err
	}
	var rules pricing.PricingRules
	if err := c.BodyParser(&rules); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	saved, err := s.svc.UpdateRules(c.UserContext(), tenantID, rules)
	if err != nil {
		return err
	}
	return c.JSON(saved)
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", errBadRequest, name)
	}
	return id, nil
}

func asOfQuery(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of must be RFC3339", errBadRequest)
	}
	return t, nil
}
