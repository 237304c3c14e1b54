package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/roster"
	"github.com/AzielCF/az-collab/collab/repository"
	coreconfig "github.com/AzielCF/az-collab/core/config"
	coreDB "github.com/AzielCF/az-collab/core/database"
	"github.com/AzielCF/az-collab/infrastructure/valkey"
	"github.com/AzielCF/az-collab/pkg/msgworker"
	"github.com/AzielCF/az-collab/pkg/utils"
	"github.com/AzielCF/az-collab/ui/rest"
	"github.com/AzielCF/az-collab/ui/rest/middleware"
	"github.com/AzielCF/az-collab/ui/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the room server",
	Long:  `Accepts room connections on /ws/rooms/:resourceType/:resourceId and serves the identity directory over http.`,
	Run:   serveRooms,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveRooms(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global
	ctx := context.Background()

	serverID := utils.GetPersistentServerID(cfg.App.ServerID, cfg.App.StorageDir)
	logrus.WithField("server_id", serverID).Info("[APP] Starting room server")

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[DB] Failed to open database: %v", err)
	}
	identityRepo := repository.NewGormIdentityRepository(db)
	if err := identityRepo.InitSchema(ctx); err != nil {
		logrus.Fatalf("[DB] Failed to migrate identities: %v", err)
	}
	directory, err := repository.NewCachedDirectory(identityRepo, 0)
	if err != nil {
		logrus.Fatalf("[DIRECTORY] %v", err)
	}

	var store roster.Store = repository.NewMemoryRosterStore()
	var pinger rest.Pinger
	vkClient, err := valkey.NewFromConfig(cfg)
	if err != nil {
		logrus.Fatalf("[VALKEY] Failed to connect: %v", err)
	}
	if vkClient != nil {
		store = repository.NewValkeyRosterStore(vkClient)
		pinger = vkClient
	}

	hub := websocket.NewHub(websocket.HubOptions{
		Store:     store,
		Pool:      msgworker.GetGlobalPool(),
		Directory: directory,
	})

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "az-collab",
		ServerHeader:            "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	root := app.Group(cfg.App.BasePath)
	websocket.RegisterRoutes(root, hub)

	apiGroup := root.Group("/api")
	apiGroup.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))
	rest.InitRestRooms(apiGroup, hub)
	rest.InitRestIdentity(apiGroup, identityRepo)
	rest.InitRestHealth(apiGroup, pinger, hub.ConnectionCount)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(utils.ResponseData{
			Status:  fiber.StatusNotFound,
			Code:    "NOT_FOUND",
			Message: "API endpoint not found: " + c.Path(),
		})
	})

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[APP] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[APP] Error during Fiber shutdown: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorf("[APP] Failed to start: %v", err)
	}

	msgworker.StopGlobalPool()
	if vkClient != nil {
		vkClient.Close()
	}
	coreDB.Close(db)
	logrus.Info("[APP] Application stopped cleanly.")
}
