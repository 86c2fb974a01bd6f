// Package storage picks the table backend named by STORE_BACKEND.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"roomshare/internal/adapters/sheets"
	"roomshare/internal/domain"
	"roomshare/internal/shared"
	"roomshare/internal/storage/memory"
	mysqlstore "roomshare/internal/storage/mysql"
)

// TabNames lists every configured tab.
func TabNames(t shared.Tabs) []string {
	return []string{t.Users, t.Properties, t.Favorites, t.Chat, t.Ratings, t.Supermarket, t.Convenience, t.Bank, t.Cafe}
}

// Open returns the configured store and a func releasing its resources.
func Open(ctx context.Context, cfg shared.Config) (domain.TableStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case shared.BackendSheets:
		conf, err := sheets.LoadCredentials(sheets.CredentialSource{JSON: cfg.CredentialsJSON, Path: cfg.CredentialsPath})
		if err != nil {
			return nil, nil, err
		}
		hc := sheets.NewHTTPClient(ctx, conf, cfg.RemoteTimeout)
		cl, err := sheets.New(cfg.SheetsBase, cfg.SpreadsheetID, hc, cfg.SheetsRPS)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("doc", cfg.SpreadsheetID).Str("account", conf.Email).Msg("using spreadsheet backend")
		return cl, noop, nil

	case shared.BackendMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sql.Open: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, cfg.RemoteTimeout)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			return nil, nil, &domain.RemoteStoreError{Op: "mysql.ping", Err: err}
		}
		st := mysqlstore.New(db)
		if err := st.Migrate(pctx, TabNames(cfg.Tabs)...); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info().Msg("using mysql backend")
		return st, db.Close, nil

	case shared.BackendMemory:
		log.Warn().Msg("using in-memory backend; data is lost on exit")
		return memory.New(TabNames(cfg.Tabs)...), noop, nil
	}
	return nil, nil, &domain.ConfigError{Field: "STORE_BACKEND", Err: fmt.Errorf("unknown backend %q", cfg.Backend)}
}
