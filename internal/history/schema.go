package history

import (
	"database/sql"

	"codeberg.org/mutker/perfmond/internal/errors"
	"codeberg.org/mutker/perfmond/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       session_id  TEXT NOT NULL,
	       timestamp   INTEGER NOT NULL,
	       metric      TEXT NOT NULL,
	       value       REAL NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS idx_samples_session_ts
	       ON samples (session_id, timestamp);`

	insertSampleSQL = `
    INSERT INTO samples (session_id, timestamp, metric, value)
    VALUES (?, ?, ?, ?)`
)

// InitSchema creates the archive schema with the current version.
func InitSchema(db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, err.Error())
	}

	version, err := schemaVersion(tx)
	if err != nil {
		return err
	}
	if version < SchemaVersion {
		if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
			return errFactory.WithData(ErrSchemaInitFailed, err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	logger.Debug().Int("version", SchemaVersion).Msg("Archive schema initialized")

	return nil
}

func schemaVersion(tx *sql.Tx) (int, error) {
	var version int
	err := tx.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.New().Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}
