package pg

import (
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Migrate applies all pending goose migrations from dir. The ledger and
// audit-log immutability triggers live there, so a database that skipped
// migrations must not serve traffic.
func Migrate(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return goose.Up(db, dir)
}
