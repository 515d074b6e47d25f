// internal/secondary/postgres.go
package secondary

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/stats"
	"github.com/clubforge/fantrack/internal/store"
)

// Store reads pre-aggregated member stats from the secondary Postgres
// database. It is faster but less detailed than the primary sheet store
// and serves as the failover source.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(db, logger), nil
}

// FetchRaw returns the club's observations for the named dataset, ordered
// by member then day.
func (s *Store) FetchRaw(ctx context.Context, club, dataset string) ([]stats.RawObservation, error) {
	const op = "secondary.fetch"

	query := `
        SELECT member_name, day, fans_count
        FROM member_stats
        WHERE club_name = $1 AND dataset = $2
        ORDER BY member_name, day
    `
	rows, err := s.db.QueryContext(ctx, query, club, dataset)
	if err != nil {
		return nil, store.RetryableError(op, 0, err)
	}
	defer func() { _ = rows.Close() }()

	var obs []stats.RawObservation
	for rows.Next() {
		var (
			member string
			day    int
			fans   sql.NullInt64
		)
		if err := rows.Scan(&member, &day, &fans); err != nil {
			return nil, store.FatalError(op, 0, err)
		}
		o := stats.RawObservation{Member: member, Day: day}
		if fans.Valid {
			v := fans.Int64
			o.Fans = &v
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, store.RetryableError(op, 0, err)
	}

	if len(obs) == 0 {
		return nil, &store.DataIntegrityError{
			Dataset: club + "/" + dataset,
			Reason:  "no rows in secondary store",
		}
	}
	return obs, nil
}

// UpsertStats mirrors freshly derived rows into the secondary store so the
// fallback stays close to the primary. Conflicts on (club, dataset,
// member, day) update in place.
func (s *Store) UpsertStats(ctx context.Context, club, dataset string, rows []stats.DerivedRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO member_stats (club_name, dataset, member_name, day, fans_count, fans_gain)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (club_name, dataset, member_name, day)
        DO UPDATE SET fans_count = EXCLUDED.fans_count, fans_gain = EXCLUDED.fans_gain
    `)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		if r.Fans == nil {
			continue
		}
		var gain sql.NullInt64
		if r.DailyGain != nil {
			gain = sql.NullInt64{Int64: *r.DailyGain, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, club, dataset, r.Member, r.Day, *r.Fans, gain); err != nil {
			return fmt.Errorf("upsert %s day %d: %w", r.Member, r.Day, err)
		}
	}

	return tx.Commit()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
