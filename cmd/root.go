package cmd

import (
	"os"
	"strings"
	"time"

	coreconfig "github.com/AzielCF/az-collab/core/config"
	"github.com/AzielCF/az-collab/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-collab",
	Short: "Real-time presence, typing and notifications for shared resources",
	Long: `az-collab keeps the people looking at the same resource in sync:
who is here, who is typing, and who was mentioned. Run "serve" for the room
server and "join" to attach a terminal client to a room.`,
}

func init() {
	// Load environment variables first
	if err := utils.LoadConfig("."); err != nil {
		logrus.Warnf("[CONFIG] %v", err)
	}
	if _, err := coreconfig.LoadConfig(); err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Initialize flags first, before any subcommands are added
	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig applies viper values for every setting whose flag was not
// given explicitly.
func initEnvConfig() {
	cfg := coreconfig.Global
	flags := rootCmd.PersistentFlags()

	if v := viper.GetString("app_port"); v != "" && !flags.Changed("port") {
		cfg.App.Port = v
	}
	if viper.IsSet("app_debug") && !flags.Changed("debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}
	if v := viper.GetString("app_base_path"); v != "" && !flags.Changed("base-path") {
		cfg.App.BasePath = v
	}
	if v := viper.GetString("app_trusted_proxies"); v != "" && !flags.Changed("trusted-proxies") {
		cfg.App.TrustedProxies = strings.Split(v, ",")
	}

	if v := viper.GetString("db_driver"); v != "" && !flags.Changed("db-driver") {
		cfg.Database.Driver = v
	}
	if v := viper.GetString("db_name"); v != "" && !flags.Changed("db-name") {
		cfg.Database.Name = v
	}
	if viper.IsSet("valkey_enabled") && !flags.Changed("valkey") {
		cfg.Database.ValkeyEnabled = viper.GetBool("valkey_enabled")
	}
	if v := viper.GetString("valkey_address"); v != "" && !flags.Changed("valkey-address") {
		cfg.Database.ValkeyAddress = v
	}

	if v := viper.GetString("collab_server_url"); v != "" && !flags.Changed("server") {
		cfg.Client.ServerURL = v
	}
	if viper.IsSet("message_worker_pool_size") && !flags.Changed("message-workers") {
		cfg.WorkerPool.Size = viper.GetInt("message_worker_pool_size")
	}
	if viper.IsSet("message_worker_queue_size") && !flags.Changed("message-queue-size") {
		cfg.WorkerPool.QueueSize = viper.GetInt("message_worker_queue_size")
	}
}

func initFlags() {
	cfg := coreconfig.Global

	// Application flags
	rootCmd.PersistentFlags().StringVarP(
		&cfg.App.Port,
		"port", "p",
		cfg.App.Port,
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&cfg.App.Debug,
		"debug", "d",
		cfg.App.Debug,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&cfg.App.BasePath,
		"base-path", "",
		cfg.App.BasePath,
		`base path for subpath deployment --base-path <string> | example: --base-path="/collab"`,
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&cfg.App.TrustedProxies,
		"trusted-proxies", "",
		cfg.App.TrustedProxies,
		`trusted proxy IP ranges for reverse proxy deployments --trusted-proxies <string> | example: --trusted-proxies="10.0.0.0/8"`,
	)

	// Database flags
	rootCmd.PersistentFlags().StringVarP(
		&cfg.Database.Driver,
		"db-driver", "",
		cfg.Database.Driver,
		`identity database driver --db-driver <sqlite|postgres> | example: --db-driver=postgres`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&cfg.Database.Name,
		"db-name", "",
		cfg.Database.Name,
		`sqlite file or postgres database name --db-name <string> | example: --db-name="storages/collab.db"`,
	)
	rootCmd.PersistentFlags().BoolVarP(
		&cfg.Database.ValkeyEnabled,
		"valkey", "",
		cfg.Database.ValkeyEnabled,
		`keep room rosters in valkey instead of memory --valkey <true/false> | example: --valkey=true`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&cfg.Database.ValkeyAddress,
		"valkey-address", "",
		cfg.Database.ValkeyAddress,
		`valkey address --valkey-address <host:port> | example: --valkey-address="localhost:6379"`,
	)

	// Client flags
	rootCmd.PersistentFlags().StringVarP(
		&cfg.Client.ServerURL,
		"server", "s",
		cfg.Client.ServerURL,
		`collab server used by join --server <url> | example: --server="https://collab.example.com"`,
	)

	// Room Worker Pool flags
	rootCmd.PersistentFlags().IntVarP(
		&cfg.WorkerPool.Size,
		"message-workers", "",
		cfg.WorkerPool.Size,
		`number of room workers --message-workers <number> | example: --message-workers=16 (default: 8)`,
	)
	rootCmd.PersistentFlags().IntVarP(
		&cfg.WorkerPool.QueueSize,
		"message-queue-size", "",
		cfg.WorkerPool.QueueSize,
		`queue size per room worker --message-queue-size <number> | example: --message-queue-size=1500 (default: 1000)`,
	)
}

func initApp() {
	if coreconfig.Global.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
