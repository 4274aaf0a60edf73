package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kush-Singh-26/devserver/internal/config"
	"github.com/Kush-Singh-26/devserver/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(stdout, "❌ Invalid configuration: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, server.WithOutput(stdout), server.WithLogger(logger))
	if err := srv.Run(ctx); err != nil {
		reportStartupError(stdout, cfg, err)
		return 1
	}
	return 0
}

func reportStartupError(w io.Writer, cfg config.Config, err error) {
	if server.IsAddrInUse(err) {
		_, _ = fmt.Fprintf(w, "❌ Port %d is already in use!\n", cfg.Port)
		_, _ = fmt.Fprintln(w, "💡 Tip: stop the other server or choose another port with -port")
		return
	}
	_, _ = fmt.Fprintf(w, "❌ Failed to start server: %v\n", err)
}
