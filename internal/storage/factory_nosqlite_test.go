//go:build !sqlite

package storage

import (
	"errors"
	"testing"
)

func TestNewStoreSQLiteNeedsBuildTag(t *testing.T) {
	_, err := NewStore(KindSQLite, t.TempDir()+"/runs.db")
	if !errors.Is(err, ErrSQLiteUnavailable) {
		t.Fatalf("expected ErrSQLiteUnavailable, got %v", err)
	}
}
