// Package sqlitestore persists the catalog snapshot in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

const metaLastRotation = "last_rotation"

// Store implements domain.SnapshotStore on SQLite.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	// One writer; SQLite serialises anyway and this avoids SQLITE_BUSY on Save.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS market_items (
		id     TEXT PRIMARY KEY,
		item   TEXT NOT NULL,
		weight INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS market_item_costs (
		item_id  TEXT NOT NULL,
		position INTEGER NOT NULL,
		cost     TEXT NOT NULL,
		PRIMARY KEY (item_id, position)
	);

	CREATE TABLE IF NOT EXISTS market_active (
		position INTEGER PRIMARY KEY,
		item_id  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_purchases (
		actor_id TEXT NOT NULL,
		item_id  TEXT NOT NULL,
		PRIMARY KEY (actor_id, item_id)
	);

	CREATE TABLE IF NOT EXISTS market_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

type itemRow struct {
	ID     string `db:"id"`
	Item   string `db:"item"`
	Weight int    `db:"weight"`
}

type costRow struct {
	ItemID   string `db:"item_id"`
	Position int    `db:"position"`
	Cost     string `db:"cost"`
}

type purchaseRow struct {
	ActorID string `db:"actor_id"`
	ItemID  string `db:"item_id"`
}

// Load reads the whole catalog. An empty database yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	snap := domain.NewSnapshot()

	var items []itemRow
	if err := s.conn.SelectContext(ctx, &items, "SELECT id, item, weight FROM market_items ORDER BY id"); err != nil {
		return domain.NewSnapshot(), fmt.Errorf("sqlitestore: load items: %w", err)
	}
	for _, r := range items {
		snap.Pool[r.ID] = domain.ItemRecord{Item: r.Item, Costs: []string{}, Weight: r.Weight}
	}

	var costs []costRow
	if err := s.conn.SelectContext(ctx, &costs,
		"SELECT item_id, position, cost FROM market_item_costs ORDER BY item_id, position"); err != nil {
		return domain.NewSnapshot(), fmt.Errorf("sqlitestore: load costs: %w", err)
	}
	for _, r := range costs {
		rec, ok := snap.Pool[r.ItemID]
		if !ok {
			snap.Skipped = append(snap.Skipped, domain.SkippedRecord{
				Section: domain.SectionPool,
				Key:     r.ItemID,
				Reason:  "cost row without item",
			})
			continue
		}
		rec.Costs = append(rec.Costs, r.Cost)
		snap.Pool[r.ItemID] = rec
	}

	if err := s.conn.SelectContext(ctx, &snap.Active,
		"SELECT item_id FROM market_active ORDER BY position"); err != nil {
		return domain.NewSnapshot(), fmt.Errorf("sqlitestore: load active: %w", err)
	}

	var purchases []purchaseRow
	if err := s.conn.SelectContext(ctx, &purchases,
		"SELECT actor_id, item_id FROM market_purchases ORDER BY actor_id, item_id"); err != nil {
		return domain.NewSnapshot(), fmt.Errorf("sqlitestore: load purchases: %w", err)
	}
	for _, r := range purchases {
		snap.Purchases[r.ActorID] = append(snap.Purchases[r.ActorID], r.ItemID)
	}

	var raw string
	err := s.conn.GetContext(ctx, &raw, "SELECT value FROM market_meta WHERE key = ?", metaLastRotation)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return domain.NewSnapshot(), fmt.Errorf("sqlitestore: load last rotation: %w", err)
	default:
		ms, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			snap.Skipped = append(snap.Skipped, domain.SkippedRecord{
				Section: domain.SectionLastRotation,
				Reason:  perr.Error(),
			})
		} else {
			snap.LastRotation = ms
		}
	}
	return snap, nil
}

// Save replaces every table's contents in one transaction.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"market_items", "market_item_costs", "market_active", "market_purchases", "market_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("sqlitestore: clear %s: %w", table, err)
		}
	}

	itemStmt, err := tx.PreparexContext(ctx, "INSERT INTO market_items (id, item, weight) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare items: %w", err)
	}
	defer itemStmt.Close()
	costStmt, err := tx.PreparexContext(ctx, "INSERT INTO market_item_costs (item_id, position, cost) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare costs: %w", err)
	}
	defer costStmt.Close()

	for id, rec := range snap.Pool {
		if _, err := itemStmt.ExecContext(ctx, id, rec.Item, rec.Weight); err != nil {
			return fmt.Errorf("sqlitestore: insert item %s: %w", id, err)
		}
		for pos, cost := range rec.Costs {
			if _, err := costStmt.ExecContext(ctx, id, pos, cost); err != nil {
				return fmt.Errorf("sqlitestore: insert cost %s/%d: %w", id, pos, err)
			}
		}
	}

	for pos, id := range snap.Active {
		if _, err := tx.ExecContext(ctx, "INSERT INTO market_active (position, item_id) VALUES (?, ?)", pos, id); err != nil {
			return fmt.Errorf("sqlitestore: insert active %s: %w", id, err)
		}
	}

	for actor, ids := range snap.Purchases {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO market_purchases (actor_id, item_id) VALUES (?, ?)", actor, id); err != nil {
				return fmt.Errorf("sqlitestore: insert purchase %s/%s: %w", actor, id, err)
			}
		}
	}

	if snap.LastRotation != 0 {
		if _, err := tx.ExecContext(ctx, "INSERT INTO market_meta (key, value) VALUES (?, ?)",
			metaLastRotation, strconv.FormatInt(snap.LastRotation, 10)); err != nil {
			return fmt.Errorf("sqlitestore: insert last rotation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return nil
}

var _ domain.SnapshotStore = (*Store)(nil)
