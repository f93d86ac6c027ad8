// Package app opens a workspace for the CLI: database, migrations, config,
// logger and engine.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"habitline/internal/config"
	"habitline/internal/db"
	"habitline/internal/domain"
	"habitline/internal/engine"
	"habitline/internal/logging"
	"habitline/internal/migrate"
	"habitline/internal/repo"
)

type Options struct {
	JWTSecret string
	// LogLevel overrides config.logging.level when set.
	LogLevel string
	LogJSON  bool
}

// Workspace is an opened workspace. Close releases the database.
type Workspace struct {
	Dir    string
	Conn   *sql.DB
	Config *config.Config
	Engine engine.Engine
	Log    *logging.ZapLogger
}

// Open ensures the workspace exists, migrates the database and wires the
// engine. A missing habitline.yml means defaults.
func Open(ctx context.Context, dir string, opts Options) (*Workspace, error) {
	if _, err := db.EnsureWorkspace(dir); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if level == "" {
		level = "info"
	}
	log, err := logging.New(level, cfg.Logging.JSON || opts.LogJSON)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open database %s: %w", db.Path(dir), err)
	}
	applied, err := migrate.Up(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, m := range applied {
		log.Infow("applied migration", "name", m.Name, "version", m.Version)
	}
	e := engine.New(conn, cfg, opts.JWTSecret)
	e.Log = log.Named("engine")
	return &Workspace{Dir: dir, Conn: conn, Config: cfg, Engine: e, Log: log}, nil
}

func (w *Workspace) Close() error {
	_ = w.Log.Sync()
	return w.Conn.Close()
}

// ResolveUser finds a user by email or id.
func ResolveUser(ctx context.Context, r repo.Repo, ref string) (domain.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.User{}, errors.New("user not specified; use --user or HABITLINE_USER")
	}
	if strings.Contains(ref, "@") {
		u, err := r.GetUserByEmail(ctx, ref)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, fmt.Errorf("user %s: %w", ref, err)
		}
		return u, err
	}
	u, err := r.GetUser(ctx, ref)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, fmt.Errorf("user %s: %w", ref, err)
	}
	return u, err
}
