/*
Package main is the entry point for the SkillSwap presence gateway.

It loads configuration, initializes the global logger, builds the presence Registry and
the upgrade Gateway, serves HTTP, and on SIGINT/SIGTERM shuts down in order: stop the
listener, drain live connections, then tear down the Registry.
*/
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

	"skillswap/internal/app/chat"
	"skillswap/internal/configs"
	"skillswap/internal/handler"
	"skillswap/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("ws_path", cfg.WSPath).
		Str("auth_mode", cfg.AuthMode).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("send_buffer_size", cfg.SendBufferSize).
		Dur("pong_wait", cfg.PongWait).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := chat.NewRegistry()
	gateway := handler.NewGateway(registry, cfg)

	router := handler.Router(&handler.AppDeps{
		Config:   cfg,
		Registry: registry,
		Gateway:  gateway,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info("Presence gateway listening", "addr", serverAddr, "ws_path", cfg.WSPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// Hijacked WebSocket connections are not covered by server.Shutdown.
	gateway.Shutdown()
	registry.Shutdown()

	logx.Info("Server gracefully stopped.")
}
