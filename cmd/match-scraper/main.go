package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("match-scraper failed", "error", err)
		os.Exit(1)
	}
}
