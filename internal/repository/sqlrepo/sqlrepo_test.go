package sqlrepo

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveyrun/internal/repository"
	"github.com/paulexconde/surveyrun/internal/repository/repotest"
)

func openSQLite(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", uuid.NewString())
	repo, err := Open(context.Background(), DriverSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestContractSQLite(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Repository { return openSQLite(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	repo := openSQLite(t)
	require.NoError(t, repo.Migrate(context.Background()))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	assert.Error(t, err)
}
