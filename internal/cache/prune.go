package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"reelgen/internal/logging"
)

// freeSpaceFloor is the minimum free-space ratio allowed before pruning
// kicks in regardless of the configured size cap.
const freeSpaceFloor = 0.10

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	blockSize := uint64(stat.Bsize)
	return stat.Blocks * blockSize, stat.Bavail * blockSize, nil
}

// Stats describes current cache usage.
type Stats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
	MaxBytes   int64 `json:"max_bytes"`
}

// Usage reports entry count and total stored bytes.
func (s *Store) Usage(ctx context.Context) (Stats, error) {
	stats := Stats{MaxBytes: s.maxBytes}
	if !s.Enabled() {
		return stats, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM entries`)
	if err := row.Scan(&stats.Entries, &stats.TotalBytes); err != nil {
		return stats, fmt.Errorf("cache usage: %w", err)
	}
	return stats, nil
}

// Prune removes expired entries and then the oldest entries until the store
// fits within its size budget and the filesystem keeps its free-space floor.
// Whole entries are removed, never truncated, so a surviving fingerprint
// always resolves to a complete artifact.
func (s *Store) Prune(ctx context.Context) error {
	return s.prune(ctx)
}

func (s *Store) prune(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire prune lock: %w", err)
	}
	if !locked {
		// Another process is pruning; its pass covers our entries too.
		return nil
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	if s.maxAge > 0 {
		cutoff := time.Now().UTC().Add(-s.maxAge).Format(time.RFC3339Nano)
		if err := s.dropOlderThan(ctx, cutoff); err != nil {
			return err
		}
	}

	stats, err := s.Usage(ctx)
	if err != nil {
		return err
	}
	needed := stats.TotalBytes - s.maxBytes
	if ratio, ok := s.freeRatio(); ok && ratio < freeSpaceFloor {
		// Free whatever the size budget demands plus one entry.
		if needed < 1 {
			needed = 1
		}
	}
	if needed <= 0 {
		return nil
	}
	return s.dropOldest(ctx, needed)
}

func (s *Store) freeRatio() (float64, bool) {
	total, free, err := s.statfs(s.root)
	if err != nil || total == 0 {
		return 0, false
	}
	return float64(free) / float64(total), true
}

func (s *Store) dropOlderThan(ctx context.Context, cutoff string) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, blob_path FROM entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("query expired entries: %w", err)
	}
	victims, err := collectVictims(rows)
	if err != nil {
		return err
	}
	return s.removeVictims(ctx, victims)
}

func (s *Store) dropOldest(ctx context.Context, bytesNeeded int64) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, blob_path, size_bytes FROM entries ORDER BY created_at ASC`)
	if err != nil {
		return fmt.Errorf("query entries for prune: %w", err)
	}
	defer rows.Close()

	var victims []victim
	var reclaimed int64
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.fingerprint, &v.blobPath, &v.size); err != nil {
			return fmt.Errorf("scan prune candidate: %w", err)
		}
		victims = append(victims, v)
		reclaimed += v.size
		if reclaimed >= bytesNeeded {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return s.removeVictims(ctx, victims)
}

type victim struct {
	fingerprint string
	blobPath    string
	size        int64
}

func collectVictims(rows interface {
	Next() bool
	Scan(...any) error
	Close() error
	Err() error
}) ([]victim, error) {
	defer rows.Close()
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.fingerprint, &v.blobPath); err != nil {
			return nil, fmt.Errorf("scan expired entry: %w", err)
		}
		victims = append(victims, v)
	}
	return victims, rows.Err()
}

func (s *Store) removeVictims(ctx context.Context, victims []victim) error {
	for _, v := range victims {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE fingerprint = ?`, v.fingerprint); err != nil {
			return fmt.Errorf("delete entry %s: %w", v.fingerprint, err)
		}
		if v.blobPath != "" {
			if err := os.Remove(v.blobPath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove evicted blob",
					logging.String(logging.FieldFingerprint, v.fingerprint),
					logging.Error(err))
			}
		}
		s.logger.Debug("evicted cache entry", logging.String(logging.FieldFingerprint, v.fingerprint))
	}
	return nil
}
