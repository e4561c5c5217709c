package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/interfacehive/credit-engine/internal/config"
	"github.com/interfacehive/credit-engine/pkg/logger"
	"github.com/interfacehive/credit-engine/pkg/pg"
)

func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
	}
	// main.go migrate --dir=./migrations
	// main.go audit
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	switch getCommand() {
	case "audit":
		if err := runLedgerAudit(pgConf); err != nil {
			logger.Error("audit: ledger audit failed", "error", err)
			os.Exit(1)
		}
	default:
		err = pg.Migrate(pgConf, getMigrationPath())
		if err != nil {
			logger.Error("migration: error running migrations", "error", err)
		}
	}
}

// runLedgerAudit cross-checks the ledger against its own bookkeeping rules.
// Every finding is a row the database constraints should have made impossible.
func runLedgerAudit(conf pg.Config) error {
	db, err := pg.Create(conf, false)
	if err != nil {
		return err
	}

	type finding struct {
		Check string
		Count int64
	}
	var findings []finding

	checks := []struct {
		name  string
		query string
	}{
		{
			"award with non-positive amount",
			`SELECT count(*) FROM credit_ledger_entries WHERE kind = 'award' AND amount <= 0`,
		},
		{
			"reversal with non-negative amount",
			`SELECT count(*) FROM credit_ledger_entries WHERE kind = 'reversal' AND amount >= 0`,
		},
		{
			"reversal without related entry",
			`SELECT count(*) FROM credit_ledger_entries WHERE kind = 'reversal' AND related_entry_id IS NULL`,
		},
		{
			"reversal pointing at non-award entry",
			`SELECT count(*) FROM credit_ledger_entries r
			 JOIN credit_ledger_entries o ON o.id = r.related_entry_id
			 WHERE r.kind = 'reversal' AND o.kind <> 'award'`,
		},
		{
			"reversal amount not negating its award",
			`SELECT count(*) FROM credit_ledger_entries r
			 JOIN credit_ledger_entries o ON o.id = r.related_entry_id
			 WHERE r.kind = 'reversal' AND r.amount <> -o.amount`,
		},
		{
			"award for a contribution that is not accepted",
			`SELECT count(*) FROM credit_ledger_entries e
			 JOIN contributions c ON c.id = e.contribution_id
			 WHERE e.kind = 'award' AND c.status <> 'accepted'`,
		},
	}

	for _, check := range checks {
		var count int64
		if err := db.Raw(check.query).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			findings = append(findings, finding{check.name, count})
		}
	}

	var recipients int64
	if err := db.Raw(`SELECT count(DISTINCT recipient_id) FROM credit_ledger_entries`).Scan(&recipients).Error; err != nil {
		return err
	}

	if len(findings) == 0 {
		logger.Info("audit: ledger is consistent", "recipients", recipients)
		return nil
	}

	for _, f := range findings {
		logger.Error("audit: inconsistency found", "check", f.Check, "rows", f.Count)
	}
	return errors.Errorf("ledger audit found %d failing checks", len(findings))
}

func getCommand() string {
	for _, v := range os.Args[1:] {
		if !strings.HasPrefix(v, "--") {
			return v
		}
	}
	return "migrate"
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open(".env"); err != nil {
		logger.Error("failed to open the passed env file, got error" + err.Error())
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed migrations dir, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return config.Get().MigrationsDir
}
