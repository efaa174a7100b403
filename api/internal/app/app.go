// Package app wires configuration into a ready analyzer shared by the server and the bot.
package app

import (
	"context"
	"database/sql"
	"os"

	"face-match/api/internal/analysis"
	"face-match/api/internal/config"
	"face-match/api/internal/credential"
	"face-match/api/internal/gemini"
	"face-match/api/internal/logger"
	"face-match/api/internal/pipeline"
	"face-match/api/internal/store"
)

type App struct {
	Analyzer *pipeline.Analyzer
	Messages analysis.Messages

	// Journal and DB are nil when no database is configured.
	Journal *store.AttemptRepo
	DB      *sql.DB
}

// New builds the pipeline. A configured but unreachable database is an error;
// an unconfigured one just leaves the journal off.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{Messages: analysis.DefaultMessages()}

	if cfg.MessagesFile != "" {
		m, err := analysis.LoadMessages(cfg.MessagesFile)
		if err != nil {
			return nil, err
		}
		a.Messages = m
	}

	resolver := credential.Default()
	if _, ok := resolver.Resolve(); !ok {
		// not fatal: every attempt will report the missing key to the user
		log.Warn(ctx, "api key status: not found", logger.Any("sources", resolver.Sources()))
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(log.Named("pipeline")),
		pipeline.WithResolver(resolver),
		pipeline.WithModelName(cfg.GeminiModel),
	}

	if dsn := store.ResolveDSN(cfg.DatabaseURL, os.Getenv); dsn != "" {
		db, err := store.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		repo := store.NewAttemptRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info(ctx, "db connected", logger.String("dsn", store.SafeDSNSummary(dsn)))
		a.DB, a.Journal = db, repo
		opts = append(opts, pipeline.WithJournal(repo))
	}

	a.Analyzer = pipeline.New(gemini.New(cfg.GeminiModel), opts...)
	return a, nil
}

// Ping checks the journal database, if any.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
