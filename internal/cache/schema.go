package cache

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS cache_entries (
			cache_key TEXT PRIMARY KEY,
			track_id TEXT NOT NULL,
			quality INTEGER NOT NULL,
			integrity TEXT NOT NULL,
			size INTEGER NOT NULL,
			format TEXT,
			stored_at INTEGER NOT NULL,
			used_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cache_entries_used_at ON cache_entries(used_at);
		CREATE INDEX IF NOT EXISTS idx_cache_entries_integrity ON cache_entries(integrity);
	`)
	if err != nil {
		return err
	}

	var version int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return errNewerSchema
	}
	if version < currentSchemaVersion {
		_, err = db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	}
	return err
}
