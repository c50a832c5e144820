package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"ask-kyra/internal/app"
	"ask-kyra/internal/config"
	"ask-kyra/internal/logging"
	"ask-kyra/internal/mcptools"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("cannot create config: %v", err)
	}
	// stdout carries the protocol, so logs go to stderr only
	zapLogger, err := logging.NewZap(cfg.LogLevel, "json")
	if err != nil {
		log.Fatalf("cannot create logger: %v", err)
	}
	logger := logging.New(zapLogger)
	defer logger.Sync()
	ctx = logging.ContextWithLogger(ctx, logger)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "cannot build services", zap.Error(err))
	}
	defer a.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ask-kyra-mcp",
		Version: "1.0.0",
	}, nil)
	mcptools.New(a.Desk).Register(server)

	logger.Info(ctx, "starting MCP server on stdin/stdout",
		zap.Strings("tools", []string{"kyra_query_history", "kyra_project_history", "kyra_daily_digest"}))
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		logger.Error(ctx, "MCP server failed", zap.Error(err))
	}
}
