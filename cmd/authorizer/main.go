package main

import (
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alovak/mini-authorizer/authorizer"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

func main() {
	// a missing .env is fine; the environment alone can configure the app
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Error("loading .env", "err", err)
		os.Exit(1)
	}

	config := authorizer.LoadConfig()

	logger := slog.New(slog.HandlerOptions{Level: logLevel(config.LogLevel)}.NewTextHandler(os.Stdout))
	slog.SetDefault(logger)

	app := authorizer.NewApp(logger, config)
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
