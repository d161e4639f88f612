package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Load reads the whole catalog. Empty tables yield an empty snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (domain.Snapshot, error) {
	snap := domain.NewSnapshot()

	rows, err := s.pool.Query(ctx, `SELECT id, item, costs, weight FROM market_items ORDER BY id`)
	if err != nil {
		return domain.NewSnapshot(), fmt.Errorf("postgres: load items: %w", err)
	}
	for rows.Next() {
		var id string
		var rec domain.ItemRecord
		if err := rows.Scan(&id, &rec.Item, &rec.Costs, &rec.Weight); err != nil {
			rows.Close()
			return domain.NewSnapshot(), fmt.Errorf("postgres: scan item: %w", err)
		}
		if rec.Costs == nil {
			rec.Costs = []string{}
		}
		snap.Pool[id] = rec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.NewSnapshot(), fmt.Errorf("postgres: load items: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT item_id FROM market_active ORDER BY position`)
	if err != nil {
		return domain.NewSnapshot(), fmt.Errorf("postgres: load active: %w", err)
	}
	active, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return domain.NewSnapshot(), fmt.Errorf("postgres: load active: %w", err)
	}
	snap.Active = active

	rows, err = s.pool.Query(ctx, `SELECT actor_id, item_id FROM market_purchases ORDER BY actor_id, item_id`)
	if err != nil {
		return domain.NewSnapshot(), fmt.Errorf("postgres: load purchases: %w", err)
	}
	for rows.Next() {
		var actor, id string
		if err := rows.Scan(&actor, &id); err != nil {
			rows.Close()
			return domain.NewSnapshot(), fmt.Errorf("postgres: scan purchase: %w", err)
		}
		snap.Purchases[actor] = append(snap.Purchases[actor], id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.NewSnapshot(), fmt.Errorf("postgres: load purchases: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT last_rotation_ms FROM market_clock WHERE id`).Scan(&snap.LastRotation)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.NewSnapshot(), fmt.Errorf("postgres: load clock: %w", err)
	}
	return snap, nil
}

// Save replaces the catalog in one transaction, queueing every insert into
// a single batch.
func (s *SnapshotStore) Save(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`TRUNCATE market_items, market_active, market_purchases, market_clock`); err != nil {
		return fmt.Errorf("postgres: truncate catalog: %w", err)
	}

	batch := &pgx.Batch{}
	for id, rec := range snap.Pool {
		costs := rec.Costs
		if costs == nil {
			costs = []string{}
		}
		batch.Queue(`INSERT INTO market_items (id, item, costs, weight) VALUES ($1, $2, $3, $4)`,
			id, rec.Item, costs, rec.Weight)
	}
	for pos, id := range snap.Active {
		batch.Queue(`INSERT INTO market_active (position, item_id) VALUES ($1, $2)`, pos, id)
	}
	for actor, ids := range snap.Purchases {
		for _, id := range ids {
			batch.Queue(`INSERT INTO market_purchases (actor_id, item_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, actor, id)
		}
	}
	if snap.LastRotation != 0 {
		batch.Queue(`INSERT INTO market_clock (id, last_rotation_ms) VALUES (TRUE, $1)`, snap.LastRotation)
	}

	n := batch.Len()
	if n > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := range n {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("postgres: save batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save: %w", err)
	}
	return nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
