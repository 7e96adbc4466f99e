package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	"github.com/garyjia/hr-approval/migrations"
	"github.com/garyjia/hr-approval/pkg/database"
)

// newTestDB opens a migrated sqlite database in a temp dir
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations(migrations.FS))

	return db.DB
}

func seedUser(t *testing.T, users *UserRepository, name, email string, roles ...identity.Role) *entity.User {
	t.Helper()
	u := &entity.User{Name: name, Email: email, Roles: identity.NewRoleSet(roles...)}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}
