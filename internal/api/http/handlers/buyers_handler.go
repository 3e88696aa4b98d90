package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lead-intake-service/internal/api/dto"
	"github.com/spec-kit/lead-intake-service/internal/auth"
	"github.com/spec-kit/lead-intake-service/internal/domain"
	"github.com/spec-kit/lead-intake-service/internal/schema"
	"github.com/spec-kit/lead-intake-service/internal/service"
	apperrors "github.com/spec-kit/lead-intake-service/pkg/errorutil"
)

// BuyersHandler exposes buyer lead endpoints.
type BuyersHandler struct {
	leads *service.LeadService
}

// NewBuyersHandler constructs handler.
func NewBuyersHandler(leadService *service.LeadService) *BuyersHandler {
	return &BuyersHandler{leads: leadService}
}

// CreateBuyer POST /buyers.
func (h *BuyersHandler) CreateBuyer(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req schema.BuyerInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	buyer, err := h.leads.CreateLead(c.Context(), principal.Email, req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": buyer})
}

// ListBuyers GET /buyers.
func (h *BuyersHandler) ListBuyers(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter, page, pageSize := parseBuyerQuery(c)
	buyers, total, err := h.leads.ListLeads(c.Context(), filter)
	if err != nil {
		return err
	}
	if buyers == nil {
		buyers = []domain.Buyer{}
	}
	return c.JSON(fiber.Map{"data": dto.BuyerListResponse{
		Items:      buyers,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}})
}

// GetBuyer GET /buyers/:id returns the buyer with its last five history entries.
func (h *BuyersHandler) GetBuyer(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	buyer, history, err := h.leads.GetLead(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BuyerDetailResponse{
		Buyer:   buyer,
		History: dto.NewHistoryEntries(history),
	}})
}

// UpdateBuyer PUT /buyers/:id.
func (h *BuyersHandler) UpdateBuyer(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateBuyerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UpdatedAt.IsZero() {
		return apperrors.NewValidationError("updatedAt is required for concurrency control", nil)
	}

	buyer, err := h.leads.UpdateLead(c.Context(), principal.Email, c.Params("id"), req.UpdatedAt, req.LeadUpdateInput)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": buyer})
}

// DeleteBuyer DELETE /buyers/:id.
func (h *BuyersHandler) DeleteBuyer(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.leads.DeleteLead(c.Context(), principal.Email, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListHistory GET /buyers/:id/history.
func (h *BuyersHandler) ListHistory(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit := parseInt(c.Query("limit"), 5)
	history, err := h.leads.ListHistory(c.Context(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryEntries(history)})
}

func parseBuyerQuery(c *fiber.Ctx) (service.LeadFilter, int, int) {
	filter := service.LeadFilter{}
	if search := c.Query("search"); search != "" {
		filter.Search = &search
	}
	if city := c.Query("city"); city != "" {
		val := domain.City(city)
		filter.City = &val
	}
	if propertyType := c.Query("propertyType"); propertyType != "" {
		val := domain.PropertyType(propertyType)
		filter.PropertyType = &val
	}
	if status := c.Query("status"); status != "" {
		val := domain.BuyerStatus(status)
		filter.Status = &val
	}
	if timeline := c.Query("timeline"); timeline != "" {
		val := domain.Timeline(timeline)
		filter.Timeline = &val
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, page, pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
