package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"tradepost/internal/app/messaging"
	domainmessage "tradepost/internal/domain/message"
	domainuser "tradepost/internal/domain/user"
	"tradepost/internal/infra/broker/kafka"
	"tradepost/internal/infra/config"
	mongodb "tradepost/internal/infra/db/mongo"
	ginserver "tradepost/internal/infra/http/gin"
	"tradepost/internal/infra/obs"
	redispresence "tradepost/internal/infra/presence/redis"
	"tradepost/internal/infra/storage/memory"
	"tradepost/internal/infra/storage/scylla"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	store, directory, ready, err := buildStorage(cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err, "store_mode", cfg.StoreMode)
		os.Exit(1)
	}

	var presence messaging.Presence
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		presence = redispresence.NewProbe(client, cfg.PresenceKeyPrefix, logger)
		logger.Info("presence probe enabled", "addr", cfg.RedisAddr)
	}

	var events messaging.Events
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close failed", "error", err)
			}
		}()
		events = kafka.NewEventPublisher(producer, cfg.KafkaTopic)
		logger.Info("event publication enabled", "topic", cfg.KafkaTopic)
	}

	service := messaging.NewService(store, directory, presence, events, logger)

	handlers := ginserver.Handlers{
		Messaging: ginserver.MessagingHandler{Service: service, Logger: logger},
		IdentityMiddleware: ginserver.IdentityMiddleware{
			Resolver: ginserver.GatewayIdentity{},
		}.Handle,
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: ready,
	}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store_mode", cfg.StoreMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

func buildStorage(cfg config.Config, logger *slog.Logger) (domainmessage.Store, domainuser.Directory, func() error, error) {
	switch cfg.StoreMode {
	case config.StoreMemory:
		directory := memory.NewUserDirectory()
		if path := getenv("USERS_FIXTURES", ""); path != "" {
			if err := loadUserFixtures(directory, path); err != nil {
				logger.Warn("user fixtures load failed", "error", err, "path", path)
			}
		}
		return memory.NewMessageStore(), directory, func() error { return nil }, nil

	case config.StoreMongo:
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, nil, err
		}
		ready := func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		return mongodb.NewMessageRepository(client.DB), mongodb.NewUserDirectory(client.DB), ready, nil

	case config.StoreScylla:
		session, err := scylla.NewSession(cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		// the user directory lives in the platform's Mongo either way
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			session.Close()
			return nil, nil, nil, err
		}
		ready := func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		return scylla.NewMessageStore(session, logger), mongodb.NewUserDirectory(client.DB), ready, nil
	}
	return nil, nil, nil, errors.New("unknown store mode")
}

func loadUserFixtures(directory *memory.UserDirectory, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var profiles []domainuser.PublicProfile
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return err
	}
	for _, profile := range profiles {
		directory.Put(profile)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
