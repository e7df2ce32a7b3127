package assignments

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gasflow/ops-console/pkg/db"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (*repositoryImpl, *time.Time) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "assignments.db")), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.Run(context.Background(), sqlDB, db.DialectSQLite, migrate.EmbeddedDir, "up"))

	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	r := NewRepository(conn).(*repositoryImpl)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRecordOpensThenBumps(t *testing.T) {
	r, now := newTestRepo(t)
	ctx := context.Background()

	first, err := r.Record(ctx, Entry{OrderID: "ord-1", OrderNumber: "GAS-1", AgentID: "A1", AgentName: "Otieno", Err: errors.New("timeout")})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, "timeout", first.LastError)
	assert.True(t, first.IsOpen())

	*now = now.Add(time.Minute)
	second, err := r.Record(ctx, Entry{OrderID: "ord-1", AgentID: "A2", AgentName: "Wanjiku", Err: pkgerrors.New(pkgerrors.CodeDependency, "Order is locked")})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Attempts)
	assert.Equal(t, "A2", second.AgentID)
	assert.Equal(t, "Order is locked", second.LastError)

	open, err := r.ListOpen(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestResolveClosesEntry(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Record(ctx, Entry{OrderID: "ord-1", AgentID: "A1"})
	require.NoError(t, err)

	found, err := r.FindOpenByOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "A1", found.AgentID)

	resolved, err := r.Resolve(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, resolved)

	resolved, err = r.Resolve(ctx, "ord-1")
	require.NoError(t, err)
	assert.False(t, resolved, "second resolve is a no-op")

	_, err = r.FindOpenByOrder(ctx, "ord-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	// a later failure opens a fresh entry
	again, err := r.Record(ctx, Entry{OrderID: "ord-1", AgentID: "A1"})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Attempts)
}

func TestRecordValidatesInput(t *testing.T) {
	r, _ := newTestRepo(t)
	_, err := r.Record(context.Background(), Entry{AgentID: "A1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = r.Record(context.Background(), Entry{OrderID: "ord-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestWithTxRollsBack(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := r.base.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.WithTx(tx).Record(ctx, Entry{OrderID: "ord-9", AgentID: "A1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	open, err := r.ListOpen(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, open)
}
