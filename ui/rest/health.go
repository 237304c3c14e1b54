package rest

import (
	"context"
	"time"

	"github.com/AzielCF/az-collab/pkg/msgworker"
	"github.com/AzielCF/az-collab/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// Pinger is satisfied by the valkey client.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	Valkey      Pinger
	Connections func() map[string]int
}

type HealthStatus struct {
	Valkey      string              `json:"valkey"`
	WorkerPool  msgworker.PoolStats `json:"worker_pool"`
	Connections map[string]int      `json:"connections,omitempty"`
	CheckedAt   time.Time           `json:"checked_at"`
}

// InitRestHealth mounts /health/status. valkey may be nil when the roster is
// kept in memory.
func InitRestHealth(app fiber.Router, valkey Pinger, connections func() map[string]int) Health {
	handler := Health{Valkey: valkey, Connections: connections}

	group := app.Group("/health")
	group.Get("/status", handler.GetStatus)
	app.Get("/worker-pool/stats", GetWorkerPoolStats)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	status := HealthStatus{
		Valkey:     "disabled",
		WorkerPool: msgworker.GetGlobalStats(),
		CheckedAt:  time.Now().UTC(),
	}
	if h.Connections != nil {
		status.Connections = h.Connections()
	}

	if h.Valkey != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.Valkey.Ping(ctx); err != nil {
			status.Valkey = "unreachable"
			return c.Status(503).JSON(utils.ResponseData{
				Status:  503,
				Code:    "SERVICE_UNAVAILABLE",
				Message: err.Error(),
				Results: status,
			})
		}
		status.Valkey = "connected"
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: status,
	})
}
