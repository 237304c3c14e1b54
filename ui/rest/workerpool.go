package rest

import (
	"github.com/AzielCF/az-collab/pkg/msgworker"
	"github.com/gofiber/fiber/v2"
)

// GetWorkerPoolStats returns real-time statistics of the room worker pool.
func GetWorkerPoolStats(c *fiber.Ctx) error {
	return c.JSON(msgworker.GetGlobalStats())
}
