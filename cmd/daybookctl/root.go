package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/cache"
	"github.com/daybook/daybook/internal/config"
	"github.com/daybook/daybook/internal/repository"
)

const commandTimeout = 30 * time.Second

// app holds the connections shared by subcommands. They are opened lazily
// so that --help works without a database.
type app struct {
	cfg    *config.Config
	repo   *repository.Repository
	cache  *cache.Cache
	logger *slog.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "daybookctl",
		Short:        "Daybook administration",
		Long:         "Administrative tasks for a Daybook deployment: users, sessions and media cleanup.",
		SilenceUsage: true,
	}

	root.AddCommand(
		newUserCmd(a),
		newSessionCmd(a),
		newCleanupCmd(a),
	)
	return root
}

// connect loads configuration and opens the database and Redis clients.
// The returned func cancels the context and closes both clients.
func (a *app) connect(cmd *cobra.Command) (context.Context, func(), error) {
	a.out = cmd.OutOrStdout()
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	a.cfg = cfg

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("connect database (%s): %s",
			config.RedactURL(cfg.DatabaseURL), config.SanitizeError(err, cfg.DatabaseURL))
	}
	a.repo = repo

	c, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		cancel()
		a.close()
		return nil, nil, fmt.Errorf("connect redis (%s): %s",
			config.RedactURL(cfg.RedisURL), config.SanitizeError(err, cfg.RedisURL))
	}
	a.cache = c

	return ctx, func() {
		cancel()
		a.close()
	}, nil
}

func (a *app) close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.repo != nil {
		a.repo.Close()
	}
}
