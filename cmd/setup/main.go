// Command setup prepares a document for the app: it writes the header row
// into every empty writable tab and reports configured tabs that are missing.
package main

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"roomshare/internal/adapters/observability"
	"roomshare/internal/app"
	"roomshare/internal/domain"
	"roomshare/internal/shared"
	"roomshare/internal/storage"
)

// keeps us well under the Sheets per-minute write quota
const workers = 2

func main() {
	ctx := context.Background()
	cfg, err := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open table store failed")
	}
	defer func() { _ = closeStore() }()

	missing := checkTabs(ctx, store, storage.TabNames(cfg.Tabs))
	for _, t := range missing {
		log.Error().Str("tab", t).Msg("tab missing from document; create it before starting the API")
	}

	repos := app.NewRepositories(store, cfg.Tabs, nil, 0)
	failed := ensureHeaders(ctx, repos.Writable())

	if len(missing) > 0 || failed > 0 {
		log.Error().Int("missing", len(missing)).Int("failed", failed).Msg("setup incomplete")
		_ = closeStore()
		os.Exit(1)
	}
	log.Info().Msg("setup completed")
}

func checkTabs(ctx context.Context, store domain.TableStore, want []string) []string {
	have, err := store.Tabs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list tabs failed")
	}
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	var missing []string
	for _, t := range want {
		if !set[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

func ensureHeaders(ctx context.Context, owners []app.SchemaOwner) int {
	sem := semaphore.NewWeighted(workers)
	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, o := range owners {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}
		wg.Add(1)
		go func(o app.SchemaOwner) {
			defer wg.Done()
			defer sem.Release(1)

			if err := o.EnsureSchema(ctx); err != nil {
				if domain.IsTableNotFound(err) {
					// already reported by checkTabs
					return
				}
				failed.Add(1)
				log.Warn().Str("tab", o.Tab()).Err(err).Msg("ensure header failed")
				return
			}
			log.Info().Str("tab", o.Tab()).Msg("header ok")
		}(o)
	}
	wg.Wait()
	return int(failed.Load())
}
