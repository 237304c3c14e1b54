package rest

import (
	"context"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/pkg/utils"
	"github.com/AzielCF/az-collab/validations"
	"github.com/gofiber/fiber/v2"
)

// RosterReader exposes the authoritative roster kept by the websocket hub.
type RosterReader interface {
	Members(ctx context.Context, room envelope.Room) ([]string, error)
}

type Rooms struct {
	Roster RosterReader
}

type RoomPresenceResponse struct {
	ResourceType string   `json:"resourceType"`
	ResourceID   string   `json:"resourceId"`
	UserIDs      []string `json:"userIds"`
}

func InitRestRooms(app fiber.Router, roster RosterReader) Rooms {
	rest := Rooms{Roster: roster}
	app.Get("/rooms/:resourceType/:resourceId/presence", rest.GetPresence)
	return rest
}

func (h *Rooms) GetPresence(c *fiber.Ctx) error {
	room := envelope.NewRoom(c.Params("resourceType"), c.Params("resourceId"))
	if err := validations.ValidateRoom(c.UserContext(), room); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
	}

	members, err := h.Roster.Members(c.UserContext(), room)
	if err != nil {
		return c.Status(500).JSON(utils.ResponseData{
			Status:  500,
			Code:    "INTERNAL_SERVER_ERROR",
			Message: err.Error(),
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Room presence fetched",
		Results: RoomPresenceResponse{
			ResourceType: room.ResourceType,
			ResourceID:   room.ResourceID,
			UserIDs:      members,
		},
	})
}
