package handlers

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coachdesk/coachdesk-backend/internal/services"
)

type deliveryRunner interface {
	RunDailyDelivery(ctx context.Context, date time.Time) (*services.DeliveryRunSummary, error)
}

// DeliveryHandler exposes the cron entry point for the daily delivery run.
// The route sits outside the JWT middleware; the shared secret in the query
// string is the only gate, matching how the hosting scheduler calls it.
type DeliveryHandler struct {
	runner     deliveryRunner
	cronSecret string
}

func NewDeliveryHandler(runner deliveryRunner, cronSecret string) *DeliveryHandler {
	return &DeliveryHandler{
		runner:     runner,
		cronSecret: cronSecret,
	}
}

func (h *DeliveryHandler) RunDailyDelivery(c *fiber.Ctx) error {
	secret := c.Query("secret")
	if h.cronSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.cronSecret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid cron secret",
		})
	}

	today := services.TruncateToDay(time.Now().UTC())
	summary, err := h.runner.RunDailyDelivery(c.Context(), today)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Delivery run failed",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"run_id":    summary.RunID,
		"date":      summary.Date,
		"processed": summary.Processed,
		"delivered": summary.Delivered,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
	})
}
