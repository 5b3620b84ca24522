//go:build !sqlite

package storage

func openSQLite(string) (Store, error) {
	return nil, ErrSQLiteUnavailable
}
