package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querydesk/querydesk/internal/cli/querydeskctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := querydeskctl.Options{
		BaseURL: os.Getenv("QUERYDESK_API_URL"),
		APIKey:  os.Getenv("QUERYDESK_API_KEY"),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	if raw := os.Getenv("QUERYDESK_CTL_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "querydeskctl: invalid QUERYDESK_CTL_TIMEOUT %q: %v\n", raw, err)
			os.Exit(2)
		}
		opts.Timeout = timeout
	}

	if err := querydeskctl.Run(ctx, os.Args[1:], opts); err != nil {
		fmt.Fprintf(os.Stderr, "querydeskctl: %v\n", err)
		os.Exit(1)
	}
}
