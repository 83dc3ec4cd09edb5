// Package app provides application initialization and dependency
// wiring. App is the container that builds the answer pipeline from
// configuration: database pool, Genkit with the configured AI
// provider, vector store, learned store, generator, indexer and the
// orchestration engine.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnidoc/omnidoc/internal/answer"
	"github.com/omnidoc/omnidoc/internal/config"
	"github.com/omnidoc/omnidoc/internal/generation"
	"github.com/omnidoc/omnidoc/internal/ingest"
	"github.com/omnidoc/omnidoc/internal/learned"
	"github.com/omnidoc/omnidoc/internal/retrieval"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Chunks    *retrieval.Store
	Learned   *learned.Store
	Generator *generation.Generator
	Indexer   *ingest.Indexer
	Engine    *answer.Engine

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
