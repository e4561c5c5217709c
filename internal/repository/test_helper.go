package repository

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

// immutabilityTriggers mirrors the production migration: the ledger and the
// audit log reject UPDATE and DELETE at the database layer, so even raw SQL
// that bypasses the repositories fails loudly.
var immutabilityTriggers = []string{
	`CREATE TRIGGER ledger_entries_no_update BEFORE UPDATE ON credit_ledger_entries
	 BEGIN SELECT RAISE(ABORT, 'credit ledger entries are append-only'); END`,
	`CREATE TRIGGER ledger_entries_no_delete BEFORE DELETE ON credit_ledger_entries
	 BEGIN SELECT RAISE(ABORT, 'credit ledger entries are append-only'); END`,
	`CREATE TRIGGER moderation_logs_no_update BEFORE UPDATE ON moderation_logs
	 BEGIN SELECT RAISE(ABORT, 'moderation logs are append-only'); END`,
	`CREATE TRIGGER moderation_logs_no_delete BEFORE DELETE ON moderation_logs
	 BEGIN SELECT RAISE(ABORT, 'moderation logs are append-only'); END`,
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&UserEntity{}, &ProjectEntity{}, &ContributionEntity{}, &LedgerEntryEntity{}, &ModerationLogEntity{})
	require.NoError(t, err)

	for _, stmt := range immutabilityTriggers {
		require.NoError(t, db.Exec(stmt).Error)
	}

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return &testDB{
		DB:    pgDB,
		rawDB: db,
	}
}

func seedUser(t *testing.T, db *testDB, admin bool) *model.User {
	t.Helper()
	repo := NewUserRepository(db.DB)
	u, err := repo.Create(context.Background(), &model.User{
		Email:       uuid.NewString() + "@example.com",
		DisplayName: "user",
		IsAdmin:     admin,
		IsActive:    true,
	})
	require.NoError(t, err)
	return u
}

func seedProject(t *testing.T, db *testDB, host *model.User) *model.Project {
	t.Helper()
	repo := NewProjectRepository(db.DB)
	p, err := repo.Create(context.Background(), &model.Project{
		HostUserID: host.ID,
		Title:      "test project",
		Status:     model.ProjectStatusOpen,
	})
	require.NoError(t, err)
	return p
}

func seedContribution(t *testing.T, db *testDB, project *model.Project, contributor *model.User) *model.Contribution {
	t.Helper()
	repo := NewContributionRepository(db.DB)
	c, err := repo.Create(context.Background(), &model.Contribution{
		ProjectID:     project.ID,
		ContributorID: contributor.ID,
		Title:         "a submission",
		Body:          "work attached",
	})
	require.NoError(t, err)
	return c
}

func acceptContribution(t *testing.T, db *testDB, c *model.Contribution, decider uuid.UUID) {
	t.Helper()
	repo := NewContributionRepository(db.DB)
	ok, err := repo.TransitionFromPending(context.Background(), c.ID, model.ContributionStatusAccepted, decider, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)
}
