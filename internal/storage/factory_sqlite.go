//go:build sqlite

package storage

func openSQLite(path string) (Store, error) {
	if path == "" {
		path = "metis.db"
	}
	return NewSQLiteStore(path), nil
}
