package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/perfmond/internal/errors"
	"codeberg.org/mutker/perfmond/internal/logger"
	"codeberg.org/mutker/perfmond/internal/metric"
	_ "github.com/mattn/go-sqlite3"
)

const defaultDirPerm = 0o755

// ArchiveConfig configures the persistent sample archive.
type ArchiveConfig struct {
	DBPath       string
	BatchSize    int
	BatchTimeout time.Duration
	Enabled      bool
}

func (c ArchiveConfig) Validate() error {
	if c.Enabled && c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}

	return nil
}

// Archive persists appended samples to sqlite for post-mortem analysis.
// Writes are buffered and flushed in batches by a background goroutine.
type Archive interface {
	Record(sessionID string, sample *metric.Sample) error
	PruneBefore(cutoff time.Time) error
	Close() error
}

type archivedRow struct {
	sessionID string
	sample    *metric.Sample
}

type sqliteArchive struct {
	db            *sql.DB
	cfg           ArchiveConfig
	mu            sync.Mutex
	buffer        []archivedRow
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

// No-op implementation used when archiving is disabled.
type noopArchive struct{}

// NewArchive opens (or creates) the archive database. When archiving is
// disabled it returns a no-op implementation.
func NewArchive(cfg ArchiveConfig) (Archive, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Sample archive disabled, using no-op archive")
		return &noopArchive{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("Sample archive initialized")

	a := &sqliteArchive{
		db:            db,
		cfg:           cfg,
		buffer:        make([]archivedRow, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 0 && cfg.BatchTimeout > 0 {
		a.flushTicker = time.NewTicker(cfg.BatchTimeout)
		go a.flusher()
	}

	return a, nil
}

func (a *sqliteArchive) Record(sessionID string, sample *metric.Sample) error {
	if sample == nil {
		return errors.New().New(errors.ErrInvalidSample)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = append(a.buffer, archivedRow{sessionID: sessionID, sample: sample})

	if len(a.buffer) >= a.cfg.BatchSize {
		return a.flush()
	}

	return nil
}

func (a *sqliteArchive) PruneBefore(cutoff time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.db.Exec(`DELETE FROM samples WHERE timestamp < ?`, cutoff.Unix()); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (a *sqliteArchive) Close() error {
	if a.flushTicker != nil {
		close(a.shutdownChan)
		a.flushTicker.Stop()
		<-a.flushDoneChan
	}

	// The final flush error must surface; a failed last batch is not a
	// graceful close.
	a.mu.Lock()
	flushErr := a.flush()
	a.mu.Unlock()
	if flushErr != nil {
		return flushErr
	}

	if _, err := a.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := a.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	logger.Info().Msg("Sample archive closed gracefully")

	return nil
}

func (a *sqliteArchive) flusher() {
	defer close(a.flushDoneChan)

	for {
		select {
		case <-a.flushTicker.C:
			a.mu.Lock()
			a.flush()
			a.mu.Unlock()
		case <-a.shutdownChan:
			// Close performs the final flush so its error can surface.
			return
		}
	}
}

func (a *sqliteArchive) flush() error {
	if len(a.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := a.db.Begin()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, row := range a.buffer {
		ts := row.sample.Timestamp().Unix()
		for kind, value := range row.sample.Values() {
			if _, err := stmt.Exec(row.sessionID, ts, string(kind), value); err != nil {
				logger.Error().Err(err).Msg("Failed to execute insert")
				if err := tx.Rollback(); err != nil {
					logger.Error().Err(err).Msg("Failed to roll back transaction")
				}
				return errFactory.Wrap(ErrTransactionFailed, err)
			}
		}
		for name, value := range row.sample.Custom() {
			if _, err := stmt.Exec(row.sessionID, ts, name, value); err != nil {
				logger.Error().Err(err).Msg("Failed to execute insert")
				if err := tx.Rollback(); err != nil {
					logger.Error().Err(err).Msg("Failed to roll back transaction")
				}
				return errFactory.Wrap(ErrTransactionFailed, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	logger.Debug().Int("records", len(a.buffer)).Msg("Flushed samples to archive")
	a.buffer = a.buffer[:0]

	return nil
}

func (*noopArchive) Record(_ string, _ *metric.Sample) error {
	return nil
}

func (*noopArchive) PruneBefore(_ time.Time) error {
	return nil
}

func (*noopArchive) Close() error {
	return nil
}
