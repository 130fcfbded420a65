package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/remontlab/leadbot/internal/api"
	"github.com/remontlab/leadbot/internal/bot"
	"github.com/remontlab/leadbot/internal/broadcast"
	"github.com/remontlab/leadbot/internal/flow"
	"github.com/remontlab/leadbot/internal/relay"
	"github.com/remontlab/leadbot/internal/store"
	"github.com/remontlab/leadbot/internal/telegram"
	"github.com/remontlab/leadbot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadBot state data
	DefaultStateDir = "/var/lib/leadbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadbot.db"
	// DefaultAPIAddr is the default admin API listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("LeadBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("LeadBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken    string
	GroupChatID int64
	DatabaseURL string
	StateDir    string
	APIAddr     string
	Debug       bool
}

// Flags holds command line flag values
type Flags struct {
	botToken    *string
	groupChatID *int64
	dbDSN       *string
	stateDir    *string
	apiAddr     *string
	debug       *bool
}

func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("LEADBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		GroupChatID: util.ParseInt64Env("TELEGRAM_NOTIFICATION_GROUP_ID", 0),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("LEADBOT_STATE_DIR"),
		APIAddr:     os.Getenv("API_ADDR"),
		Debug:       util.ParseBoolEnv("TELEGRAM_DEBUG", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"TELEGRAM_BOT_TOKEN_SET", config.BotToken != "",
		"TELEGRAM_NOTIFICATION_GROUP_ID", config.GroupChatID,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LEADBOT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		botToken:    flag.String("bot-token", config.BotToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		groupChatID: flag.Int64("group-chat-id", config.GroupChatID, "operators' forum group chat ID (overrides $TELEGRAM_NOTIFICATION_GROUP_ID)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "PostgreSQL DSN or SQLite file path (overrides $DATABASE_URL)"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for LeadBot data (overrides $LEADBOT_STATE_DIR)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "admin API listen address (overrides $API_ADDR)"),
		debug:       flag.Bool("debug", config.Debug, "enable Telegram Bot API debug logging (overrides $TELEGRAM_DEBUG)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"botTokenSet", *flags.botToken != "",
		"groupChatID", *flags.groupChatID,
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"apiAddr", *flags.apiAddr,
		"debug", *flags.debug)

	return flags
}

// ensureDirectoriesExist creates the state directory when using a
// file-based SQLite database.
func ensureDirectoriesExist(flags Flags) error {
	if store.IsPostgresDSN(*flags.dbDSN) {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}
	slog.Debug("state directory ready", "state_dir", stateDir)
	return nil
}

func buildStoreOptions(flags Flags) []store.Option {
	if store.IsPostgresDSN(*flags.dbDSN) {
		return []store.Option{store.WithPostgresDSN(*flags.dbDSN)}
	}
	return []store.Option{store.WithSQLiteDSN(*flags.dbDSN)}
}

// run wires the modules together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(buildStoreOptions(flags)...)
	if err != nil {
		return err
	}
	defer st.Close()

	clientOpts := []telegram.Option{telegram.WithToken(*flags.botToken)}
	if *flags.debug {
		clientOpts = append(clientOpts, telegram.WithDebug())
	}
	client, err := telegram.NewClient(clientOpts...)
	if err != nil {
		return err
	}

	opRelay := relay.NewRelay(st, client, *flags.groupChatID)
	var notifier flow.Notifier
	if opRelay.Enabled() {
		notifier = opRelay
	} else {
		slog.Warn("no operators' group configured, submissions will not be relayed")
	}
	sink := flow.NewSink(st, notifier)
	driver := flow.NewDriver(st, client, sink)
	broadcaster := broadcast.NewBroadcaster(st, client)
	defer broadcaster.Stop()

	dispatcher := bot.New(bot.Config{
		Store:       st,
		Messaging:   client,
		Driver:      driver,
		Sink:        sink,
		Relay:       opRelay,
		Broadcaster: broadcaster,
		GroupChatID: *flags.groupChatID,
	})
	client.SetUpdateHandler(dispatcher.HandleUpdate)

	if err := dispatcher.SetupCommands(ctx); err != nil {
		slog.Warn("failed to publish bot command menu", "error", err)
	}
	if err := broadcaster.Start(ctx); err != nil {
		slog.Warn("failed to schedule auto-message broadcast", "error", err)
	}

	apiServer, err := api.NewServer(
		api.WithAddr(*flags.apiAddr),
		api.WithStore(st),
		api.WithBroadcaster(broadcaster),
		api.WithPublisher(dispatcher),
	)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	apiErr := make(chan error, 1)
	go func() {
		err := apiServer.Run(runCtx)
		apiErr <- err
		if err != nil {
			cancel()
		}
	}()

	slog.Info("LeadBot started", "group_chat_id", *flags.groupChatID, "api_addr", *flags.apiAddr)
	client.Start(runCtx)

	return <-apiErr
}
