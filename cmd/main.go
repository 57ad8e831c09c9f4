package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"hearthchat/auth"
	"hearthchat/contract"
	"hearthchat/directory"
	"hearthchat/domain"
	hearthchaterrors "hearthchat/errors"
	"hearthchat/infrastructure/ws"
	"hearthchat/internal"
	"hearthchat/observability"
	"hearthchat/repositories"
	"hearthchat/runtime"
	"hearthchat/runtime/workers"
	"hearthchat/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// seedDemoRoom makes sure room 1 exists for the demo fixtures, so a
// fresh local run is immediately usable.
func seedDemoRoom(rooms repositories.IRoomRepository) error {
	_, err := rooms.FindByID(1)
	if err == nil {
		return nil
	}
	if !errors.Is(err, hearthchaterrors.ErrRoomNotFound) {
		return err
	}
	_, err = rooms.Create(domain.Room{
		FamilyID:  1,
		Name:      "Family",
		CreatedBy: 1,
		Members:   []domain.MemberID{1, 2},
	})
	return err
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return err
	}
	defer func() { _ = messageRepository.Close() }()
	roomRepository, err := repositories.NewRoomRepository(db)
	if err != nil {
		return err
	}
	defer func() { _ = roomRepository.Close() }()
	reactionRepository := repositories.NewReactionRepository(db)

	// 3. External directory
	var dir contract.IDirectory
	if config.DirectoryBaseURL == "" {
		log.Warn("DIRECTORY_BASE_URL not set, using in-memory directory with demo fixtures")
		memory := directory.NewMemory()
		memory.SeedDemo()
		dir = memory
		if err := seedDemoRoom(roomRepository); err != nil {
			return err
		}
	} else {
		dir = directory.NewClient(config.DirectoryBaseURL, config.DirectoryToken, config.DirectoryTimeout, log)
	}

	// 4. Setup Supervision & Orchestration
	stats := observability.NewStats()
	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	notifier := runtime.NewNotifier(log)
	store := services.NewMessageStore(messageRepository, roomRepository, reactionRepository, dir, log)

	orchestrator := runtime.NewOrchestrator(
		log, sup, registry, notifier, dir, store, stats,
		config.BufferSize, config.SinkTimeout,
	)

	guard := services.NewAccessGuard(roomRepository, dir, log)
	chat := services.NewChatService(orchestrator, guard)
	resolver := auth.NewResolver([]byte(config.TokenSecret), dir, log)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the Engine
	orchestrator.Start(ctx, config.MetricInterval)

	if config.DebugPort != 0 {
		timeline := orchestrator.Timeline()
		internal.StartDebugServer(db, config.DebugPort, "/inspect", internal.MessageMapper, func() map[string]any {
			snapshot := stats.Snapshot()
			snapshot["timeline_observed"] = len(timeline.Messages())
			return snapshot
		})
		log.Info("Debug inspector started", "port", config.DebugPort)
	}

	// 7. HTTP Server Setup
	router := mux.NewRouter()
	handler := ws.NewHandler(resolver, chat, stats, config.ConnectionBufferSize, log)
	handler.Register(router)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
