package app

import (
	"errors"

	"dealer-pricing/internal/migrations"
)

// Migrate applies all pending migrations, or rolls back steps when up is false.
func (a *App) Migrate(up bool, steps int) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn not configured; cannot migrate")
	}
	runner, err := migrations.New(a.Config.Database.DSN, a.Logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	if up {
		err = runner.Up()
	} else {
		err = runner.Down(steps)
	}
	if err != nil {
		return err
	}

	version, dirty, err := runner.Version()
	if err != nil {
		return err
	}
	a.Logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}
