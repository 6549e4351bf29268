/*
app.go - Dependency wiring shared by the server and the admin CLI

PURPOSE:
  Turns a config.Config into a ready store, check-in service, and vault
  ledger. Both binaries go through Open so they read and write the same
  data the same way (timezone, streak policy, database file).

SEE ALSO:
  - cmd/server/main.go
  - cmd/adm/main.go
*/
package app

import (
	"fmt"

	"github.com/warp/habit-vault/checkin"
	"github.com/warp/habit-vault/config"
	"github.com/warp/habit-vault/store/sqlite"
	"github.com/warp/habit-vault/vault"
	"go.uber.org/zap"
)

type App struct {
	Config  *config.Config
	Store   *sqlite.Store
	Service *checkin.Service
	Ledger  *vault.DefaultLedger
	Logger  *zap.Logger
}

// Open validates cfg and opens the SQLite store it points at.
func Open(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	svc := checkin.NewService(store, logger)
	svc.Location = loc
	svc.StreakOptions = cfg.StreakOptions()

	return &App{
		Config:  cfg,
		Store:   store,
		Service: svc,
		Ledger:  vault.NewLedger(store),
		Logger:  logger,
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
