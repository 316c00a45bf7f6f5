package databasesql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/deicod/yoyo/internal/lock"
)

// sentinelStore implements lock.Store over the yoyo_lock table for dialects
// without a native advisory lock (§4.5 fallback protocol).
type sentinelStore struct {
	db      *sql.DB
	dialect Dialect
}

func (s *sentinelStore) TryInsert(ctx context.Context, pid int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM yoyo_lock WHERE locked = 1")
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	if exists > 0 {
		return false, nil
	}

	insert := "INSERT INTO yoyo_lock (locked, ctime, pid) VALUES (1, " + s.dialect.Placeholder(1) + ", " + s.dialect.Placeholder(2) + ")"
	if _, err := tx.ExecContext(ctx, insert, time.Now().UTC(), pid); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *sentinelStore) CurrentHolder(ctx context.Context) (lock.Row, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT ctime, pid FROM yoyo_lock WHERE locked = 1")
	var r lock.Row
	if err := row.Scan(&r.CTime, &r.PID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lock.Row{}, false, nil
		}
		return lock.Row{}, false, err
	}
	return r, true, nil
}

func (s *sentinelStore) Delete(ctx context.Context, pid int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM yoyo_lock WHERE pid = "+s.dialect.Placeholder(1), pid)
	return err
}

func (s *sentinelStore) DeleteAny(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM yoyo_lock WHERE locked = 1")
	return err
}
