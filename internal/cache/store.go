package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"reelgen/internal/config"
	"reelgen/internal/logging"
	"reelgen/internal/services"
)

// Entry is one cached stage artifact: a JSON payload plus an optional blob
// file for binary media.
type Entry struct {
	Fingerprint string
	Stage       string
	Payload     json.RawMessage
	BlobPath    string
	CreatedAt   time.Time
	SizeBytes   int64
}

// Producer computes an artifact on a cache miss. The returned blobSource, if
// non-empty, names a file the store copies into its blob directory.
type Producer func(ctx context.Context) (payload json.RawMessage, blobSource string, err error)

// Store manages the artifact index and blob directory.
type Store struct {
	db       *sql.DB
	root     string
	blobDir  string
	maxBytes int64
	maxAge   time.Duration
	logger   *slog.Logger
	group    singleflight.Group
	lock     *flock.Flock
	statfs   statfsFunc
	enabled  bool
}

// Open initializes the cache store under cfg.Paths.CacheDir. A disabled
// cache returns a store whose Get always misses and whose Put is a no-op.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	store := &Store{
		logger:  logging.NewComponentLogger(logger, "cache"),
		statfs:  realStatfs,
		enabled: cfg != nil && cfg.Cache.Enabled,
	}
	if !store.enabled {
		return store, nil
	}

	root := strings.TrimSpace(cfg.Paths.CacheDir)
	if root == "" {
		return nil, errors.New("cache: cache_dir not configured")
	}
	blobDir := filepath.Join(root, "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create blob dir: %w", err)
	}

	dbPath := filepath.Join(root, "index.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open index db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}

	store.db = db
	store.root = root
	store.blobDir = blobDir
	store.maxBytes = int64(cfg.Cache.MaxGiB) * 1024 * 1024 * 1024
	store.maxAge = time.Duration(cfg.Cache.MaxAgeDays) * 24 * time.Hour
	store.lock = flock.New(filepath.Join(root, "prune.lock"))
	return store, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    fingerprint TEXT PRIMARY KEY,
    stage       TEXT NOT NULL,
    payload     TEXT NOT NULL,
    blob_path   TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL,
    size_bytes  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);
`

// Close closes the underlying index database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enabled reports whether caching is active.
func (s *Store) Enabled() bool {
	return s != nil && s.enabled
}

// Get returns the cached entry for a fingerprint. A missing blob file
// invalidates the entry so callers never see a partial result.
func (s *Store) Get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	if !s.Enabled() {
		return Entry{}, false, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, stage, payload, blob_path, created_at, size_bytes FROM entries WHERE fingerprint = ?`,
		fingerprint)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, services.Wrap(services.ErrCache, "cache", "get", "query entry", err)
	}
	if entry.BlobPath != "" {
		if _, statErr := os.Stat(entry.BlobPath); statErr != nil {
			if invErr := s.Invalidate(ctx, fingerprint); invErr != nil {
				s.logger.Warn("failed to drop entry with missing blob", logging.Error(invErr))
			}
			return Entry{}, false, nil
		}
	}
	return entry, true, nil
}

// Put stores an entry, replacing any previous value for the fingerprint.
// Put is idempotent: storing the same fingerprint twice leaves one entry.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	if !s.Enabled() {
		return nil
	}
	if strings.TrimSpace(entry.Fingerprint) == "" {
		return services.Wrap(services.ErrValidation, "cache", "put", "empty fingerprint", nil)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (fingerprint, stage, payload, blob_path, created_at, size_bytes)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(fingerprint) DO UPDATE SET
             stage = excluded.stage,
             payload = excluded.payload,
             blob_path = excluded.blob_path,
             created_at = excluded.created_at,
             size_bytes = excluded.size_bytes`,
		entry.Fingerprint, entry.Stage, string(entry.Payload), entry.BlobPath,
		entry.CreatedAt.Format(time.RFC3339Nano), entry.SizeBytes)
	if err != nil {
		return services.Wrap(services.ErrCache, "cache", "put", "insert entry", err)
	}
	if err := s.prune(ctx); err != nil {
		s.logger.Warn("cache prune failed", logging.Error(err))
	}
	return nil
}

// Invalidate removes an entry and its blob.
func (s *Store) Invalidate(ctx context.Context, fingerprint string) error {
	if !s.Enabled() {
		return nil
	}
	var blobPath string
	row := s.db.QueryRowContext(ctx, `SELECT blob_path FROM entries WHERE fingerprint = ?`, fingerprint)
	if err := row.Scan(&blobPath); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrCache, "cache", "invalidate", "lookup entry", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE fingerprint = ?`, fingerprint); err != nil {
		return services.Wrap(services.ErrCache, "cache", "invalidate", "delete entry", err)
	}
	if blobPath != "" {
		if err := os.Remove(blobPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrCache, "cache", "invalidate", "remove blob", err)
		}
	}
	return nil
}

// Do is the compute-through path: it returns the cached entry for the
// fingerprint, or runs the producer exactly once even under concurrent
// callers for the same key. Producer failures are not committed, and a
// cancelled producer leaves no partial entry behind.
func (s *Store) Do(ctx context.Context, stage, fingerprint string, produce Producer) (Entry, bool, error) {
	if entry, ok, err := s.Get(ctx, fingerprint); err == nil && ok {
		return entry, true, nil
	} else if err != nil {
		s.logger.Warn("cache read failed; recomputing",
			logging.String(logging.FieldFingerprint, fingerprint),
			logging.Error(err))
	}

	result, err, _ := s.group.Do(fingerprint, func() (any, error) {
		// Re-check inside the flight: a concurrent caller may have
		// committed while we waited.
		if entry, ok, getErr := s.Get(ctx, fingerprint); getErr == nil && ok {
			return flightResult{entry: entry, cached: true}, nil
		}

		payload, blobSource, prodErr := produce(ctx)
		if prodErr != nil {
			return flightResult{}, prodErr
		}
		if ctx.Err() != nil {
			return flightResult{}, ctx.Err()
		}

		entry := Entry{
			Fingerprint: fingerprint,
			Stage:       stage,
			Payload:     payload,
			CreatedAt:   time.Now().UTC(),
		}
		if blobSource != "" {
			blobPath, size, copyErr := s.adoptBlob(fingerprint, blobSource)
			if copyErr != nil {
				s.logger.Warn("blob adoption failed; result served uncached", logging.Error(copyErr))
				entry.BlobPath = blobSource
				return flightResult{entry: entry}, nil
			}
			entry.BlobPath = blobPath
			entry.SizeBytes = size
		} else {
			entry.SizeBytes = int64(len(payload))
		}
		if putErr := s.Put(ctx, entry); putErr != nil {
			s.logger.Warn("cache write failed; result served uncached", logging.Error(putErr))
		}
		return flightResult{entry: entry}, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	flight := result.(flightResult)
	return flight.entry, flight.cached, nil
}

type flightResult struct {
	entry  Entry
	cached bool
}

// adoptBlob copies a produced file into the blob directory under the
// fingerprint name, preserving the source extension.
func (s *Store) adoptBlob(fingerprint, source string) (string, int64, error) {
	if !s.Enabled() {
		return source, 0, nil
	}
	dest := filepath.Join(s.blobDir, fingerprint+filepath.Ext(source))
	size, err := copyFile(source, dest)
	if err != nil {
		return "", 0, fmt.Errorf("copy blob: %w", err)
	}
	return dest, size, nil
}

// BlobDir returns the directory binary artifacts are stored in.
func (s *Store) BlobDir() string {
	return s.blobDir
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return written, nil
}

func scanEntry(row *sql.Row) (Entry, error) {
	var entry Entry
	var payload string
	var createdAt string
	if err := row.Scan(&entry.Fingerprint, &entry.Stage, &payload, &entry.BlobPath, &createdAt, &entry.SizeBytes); err != nil {
		return Entry{}, err
	}
	entry.Payload = json.RawMessage(payload)
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		entry.CreatedAt = ts
	}
	return entry, nil
}
