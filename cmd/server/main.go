package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/api"
	"chat-relay/auth"
	"chat-relay/broker"
	ws "chat-relay/gateways/websocket"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so defers (database close, worker shutdown)
// always execute before the process exits.
func run() error {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLogger(config.LogLevel)

	maskRune, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Storage (BadgerDB) and search index (bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = blugeWriter.Close()
	}()

	// 3. Moderation
	words, err := moderation.LoadWords()
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("%d censored words loaded", len(words)))
	moderator, err := moderation.NewModerator(words, maskRune)
	if err != nil {
		return err
	}

	// 4. Core wiring: store, broker, notifier, gateway
	monitor := observability.NewMonitor(log)
	repository := repositories.NewMessageRepository(db, log)
	eventBroker := broker.NewBroker(log, monitor, config.BufferSize, config.SinkTimeout)
	notifier := services.NewNotifier(eventBroker)
	index := search.NewIndex(blugeWriter, log)
	chatService := services.NewChatService(
		log, repository, notifier, moderator, index, monitor, config.MaxContentLength)

	// The index follows the store through the same fan-out as any subscriber.
	for _, kind := range index.Kinds() {
		eventBroker.Subscribe(kind, index)
	}

	// 5. Supervised workers
	sup := workers.NewSupervisor(log)
	sup.Add(eventBroker)
	sup.Add(workers.NewReporterWorker(log, monitor, config.MetricInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 6. HTTP + websocket transport
	authenticator := auth.NewAuthenticator(config.JWTSecret, config.JWTIssuer, config.AuthTokenDuration)
	router := gin.New()
	router.Use(gin.Recovery())
	api.RegisterDebug(router, monitor)

	authenticated := router.Group("/", auth.Middleware(authenticator))
	api.NewHandler(log, chatService).Register(authenticated.Group("/api"))

	wsHandler := ws.NewHandler(log, eventBroker, monitor, ws.Options{
		BufferSize:     config.ConnectionBufferSize,
		PingInterval:   config.PingInterval,
		PongWait:       config.PongWait,
		WriteWait:      config.WriteWait,
		MaxMessageSize: config.MaxMessageSize,
	})
	authenticated.GET("/ws", wsHandler.Handle)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
