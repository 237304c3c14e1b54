package websocket

import (
	"context"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/validations"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 64 * 1024
)

// RegisterRoutes mounts the room socket on /ws/rooms/:resourceType/:resourceId.
func RegisterRoutes(app fiber.Router, hub *Hub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws/rooms/:resourceType/:resourceId", func(c *fiber.Ctx) error {
		room := envelope.NewRoom(c.Params("resourceType"), c.Params("resourceId"))
		userID := c.Query("user_id")
		if err := validations.ValidateRoom(c.UserContext(), room); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		if err := validations.ValidateUserID(c.UserContext(), userID); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		c.Locals("room", room)
		c.Locals("user_id", userID)
		return c.Next()
	}, websocket.New(func(conn *websocket.Conn) {
		room, _ := conn.Locals("room").(envelope.Room)
		userID, _ := conn.Locals("user_id").(string)
		serve(hub, conn, room, userID)
	}))
}

func serve(hub *Hub, conn *websocket.Conn, room envelope.Room, userID string) {
	client := hub.Connect(conn, room, userID)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		hub.Disconnect(client)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go keepAlive(ctx, client)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("user_id", userID).Warn("[HUB] Read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			logrus.WithField("type", messageType).Debug("[HUB] Ignoring non-text frame")
			continue
		}
		hub.HandleFrame(client, message)
	}
}

func keepAlive(ctx context.Context, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
