package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/accerat/MondayBot/internal/chat"
	"github.com/accerat/MondayBot/internal/httpapi"
	"github.com/accerat/MondayBot/internal/mapstore"
	"github.com/accerat/MondayBot/internal/syncengine"
	"github.com/accerat/MondayBot/internal/syncrules"
	"github.com/accerat/MondayBot/internal/tracker"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}
	configureLogging()

	port := intEnv("MONDAYBOT_PORT", 3000)
	addr := os.Getenv("MONDAYBOT_ADDR")
	if addr == "" {
		addr = ":" + strconv.Itoa(port)
	}

	backend, err := buildStateBackendFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize mapping backend: %v", err)
	}
	store, err := mapstore.NewStore(backend)
	if err != nil {
		log.Fatalf("failed to load mapping store: %v", err)
	}

	rulesPath := strings.TrimSpace(os.Getenv("MONDAYBOT_RULES_FILE"))
	rulesCfg, err := syncrules.LoadConfig(rulesPath)
	if err != nil {
		log.Fatalf("failed to load sync rules %q: %v", rulesPath, err)
	}
	rules := syncrules.NewProvider(rulesCfg)
	rulesWatcher, err := syncrules.WatchConfig(rulesPath, rules)
	if err != nil {
		log.Printf("rule file watching disabled: %v", err)
	}

	trackerClient := tracker.NewClient(tracker.ClientOptions{
		BaseURL:    os.Getenv("MONDAY_API_URL"),
		Token:      os.Getenv("MONDAY_API_TOKEN"),
		APIVersion: os.Getenv("MONDAY_API_VERSION"),
		MaxRetries: intEnv("MONDAYBOT_MAX_RETRIES", 0),
	})
	chatClient := chat.NewClient(chat.ClientOptions{
		BaseURL:  os.Getenv("DISCORD_API_URL"),
		BotToken: os.Getenv("DISCORD_BOT_TOKEN"),
	})

	resolver := syncengine.NewResolver(store, chatClient, syncengine.ResolverConfig{
		GuildID:    os.Getenv("DISCORD_GUILD_ID"),
		CategoryID: os.Getenv("DISCORD_CATEGORY_ID"),
	})
	callTimeout := durationEnv("MONDAYBOT_CALL_TIMEOUT", 0)
	dispatcher := syncengine.NewDispatcher(trackerClient, chatClient, resolver, rules, syncengine.DispatcherOptions{
		CallTimeout: callTimeout,
	})
	router := syncengine.NewRouter(trackerClient, syncengine.RouterOptions{CallTimeout: callTimeout})

	gateway := chat.NewGateway(chat.GatewayOptions{
		URL:      os.Getenv("DISCORD_GATEWAY_URL"),
		BotToken: os.Getenv("DISCORD_BOT_TOKEN"),
	})
	reporter := syncengine.NewStatusReporter(store, gateway, port, trackerClient.Configured())
	mentions := syncengine.NewMentionProcessor(store, router, chatClient, syncengine.MentionOptions{
		Status:      reporter,
		CallTimeout: callTimeout,
	})

	server, err := httpapi.NewServer(dispatcher, reporter, httpapi.ServerConfig{
		MaxBodyBytes: int64Env("MONDAYBOT_MAX_BODY_BYTES", 0),
	})
	if err != nil {
		log.Fatalf("failed to build webhook server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway.SetHandler(mentions.HandleMention)
	go func() {
		if err := gateway.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("gateway stopped: %v", err)
		}
	}()

	httpServer := &http.Server{Addr: addr, Handler: server}
	go func() {
		log.Printf("mondaybot listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if rulesWatcher != nil {
		rulesWatcher.Close()
	}
	if err := store.Close(); err != nil {
		log.Printf("mapping store close: %v", err)
	}
}

func configureLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(os.Getenv("MONDAYBOT_LOG_LEVEL"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func buildStateBackendFromEnv() (mapstore.StateBackend, error) {
	dsn := strings.TrimSpace(os.Getenv("MONDAYBOT_MAPPING_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("MONDAYBOT_MAPPING_FILE"))
	}
	if dsn == "" {
		dsn = "thread_mappings.json"
	}
	return mapstore.BuildStateBackendFromDSN(dsn)
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func int64Env(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}
