// Command etch is an MCP stdio server for hashline-addressed file editing.
// It exposes read, edit and undo tools: read returns LINE#HASH-tagged content,
// edit applies an atomic batch of line edits validated against those tags, and
// undo reverts the most recent edit from the snapshot journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/etch/internal/config"
	"github.com/xonecas/etch/internal/journal"
	"github.com/xonecas/etch/internal/mcp"
	"github.com/xonecas/etch/internal/mcptools"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to TOML config file (default: <data dir>/etch.toml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "etch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(dataDir, "etch.toml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Stdout carries the protocol; all logging goes to stderr.
	level, _ := zerolog.ParseLevel(cfg.Log.LevelOrDefault())
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	root := cfg.Root
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
	}

	journalPath := cfg.Journal.Path
	if journalPath == "" {
		journalPath = filepath.Join(dataDir, "journal.db")
	}
	jrn, err := journal.Open(journalPath, cfg.Journal.KeepOrDefault())
	if err != nil {
		return err
	}
	defer jrn.Close()

	tracker := mcptools.NewFileReadTracker()

	server := mcp.NewServer("etch", version)
	server.RegisterTool(mcptools.NewReadTool(), mcptools.NewReadHandler(tracker, root).Handle)
	server.RegisterTool(mcptools.NewEditTool(), mcptools.NewEditHandler(tracker, jrn, root).Handle)
	server.RegisterTool(mcptools.NewUndoTool(), mcptools.NewUndoHandler(jrn, root).Handle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("root", root).Str("journal", journalPath).Msg("etch serving on stdio")
	return server.Serve(ctx, os.Stdin, os.Stdout)
}
