package activity

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecorder_PersistsOnClose(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s, slog.Default())

	rec.Record(models.Activity{Type: "issue_created", Description: "created t", UserID: "u1"})
	rec.Record(models.Activity{Type: "issue_resolved", Description: "resolved t", UserID: "u2"})
	rec.Close()

	activities, err := s.ListActivities(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, activities, 2)

	types := []string{activities[0].Type, activities[1].Type}
	assert.Contains(t, types, "issue_created")
	assert.Contains(t, types, "issue_resolved")
}

func TestRecorder_CloseIdempotent(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s, nil)
	rec.Close()
	rec.Close()
}
