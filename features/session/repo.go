package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore backs the rendezvous channel with a shared table so
// the two devices can reach it from independent server instances.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, ttl: TTL, now: time.Now}
}

func (s *PostgresStore) Put(ctx context.Context, p *Payload) error {
	query := `INSERT INTO sessions (id, file_name, file_type, file_data, written_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			file_type = EXCLUDED.file_type,
			file_data = EXCLUDED.file_data,
			written_at = EXCLUDED.written_at`
	_, err := s.db.ExecContext(ctx, query, p.SessionID, p.FileName, p.FileType, p.Data, p.WrittenAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Payload, error) {
	p := &Payload{}
	cutoff := s.now().Add(-s.ttl)
	query := `SELECT id, file_name, file_type, file_data, written_at FROM sessions WHERE id = $1 AND written_at > $2`
	err := s.db.QueryRowContext(ctx, query, id, cutoff).Scan(&p.SessionID, &p.FileName, &p.FileType, &p.Data, &p.WrittenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// PurgeExpired removes entries past the TTL that no poller consumed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	query := `DELETE FROM sessions WHERE written_at <= $1`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
