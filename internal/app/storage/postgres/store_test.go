package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/lumino-network/light-client/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestSaveInsertsSnapshotRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO light_client_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))

	snap := storage.Snapshot{
		Address: "0xabc",
		TakenAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestDecodesNewestSnapshot(t *testing.T) {
	store, mock := newMockStore(t)

	state := `{"address":"0xabc","api_key":"key","payments":{},"pending":[],` +
		`"non_closing_proofs":{},"channels":[],"tokens":[],"notifiers":{},` +
		`"taken_at":"2026-01-02T03:04:05Z"}`
	mock.ExpectQuery("SELECT state").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow([]byte(state)))

	snap, ok, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "expected a snapshot")
	require.Equal(t, "0xabc", snap.Address)
	require.Equal(t, "key", snap.APIKey)
}

func TestLatestEmptyTable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT state").
		WillReturnRows(sqlmock.NewRows([]string{"state"}))

	_, ok, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.False(t, ok, "expected no snapshot")
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	snap := storage.Snapshot{
		Address:  "0x3111b2dde75a29fded5d817c9cb5075cd3a28fa7",
		APIKey:   "integration",
		Payments: nil,
		TakenAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Save(ctx, snap))

	got, ok, err := store.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.Address, got.Address)
	require.Equal(t, snap.APIKey, got.APIKey)
}
