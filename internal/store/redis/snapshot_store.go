package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore with one key per section.
//
// Key schema:
//
//	{prefix}:pool           - hash, item id -> JSON record
//	{prefix}:active         - list of item ids in display order
//	{prefix}:purchases      - hash, actor id -> JSON array of item ids
//	{prefix}:last_rotation  - string, epoch milliseconds
type SnapshotStore struct {
	rdb    *redis.Client
	prefix string
}

// NewSnapshotStore creates a SnapshotStore. An empty prefix defaults to
// "blackmarket".
func NewSnapshotStore(c *Client, prefix string) *SnapshotStore {
	if prefix == "" {
		prefix = "blackmarket"
	}
	return &SnapshotStore{rdb: c.Underlying(), prefix: prefix}
}

type keys struct {
	pool, active, purchases, lastRotation string
}

func keysFor(prefix string) keys {
	return keys{
		pool:         prefix + ":pool",
		active:       prefix + ":active",
		purchases:    prefix + ":purchases",
		lastRotation: prefix + ":last_rotation",
	}
}

type record struct {
	Item   string   `json:"item"`
	Costs  []string `json:"costs"`
	Weight int      `json:"weight"`
}

func encodeRecord(rec domain.ItemRecord) (string, error) {
	costs := rec.Costs
	if costs == nil {
		costs = []string{}
	}
	data, err := json.Marshal(record{Item: rec.Item, Costs: costs, Weight: rec.Weight})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeRecord(raw string) (domain.ItemRecord, error) {
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return domain.ItemRecord{}, err
	}
	if r.Costs == nil {
		r.Costs = []string{}
	}
	return domain.ItemRecord{Item: r.Item, Costs: r.Costs, Weight: r.Weight}, nil
}

// Load reads every section in one pipeline round trip.
func (s *SnapshotStore) Load(ctx context.Context) (domain.Snapshot, error) {
	k := keysFor(s.prefix)

	pipe := s.rdb.Pipeline()
	poolCmd := pipe.HGetAll(ctx, k.pool)
	activeCmd := pipe.LRange(ctx, k.active, 0, -1)
	purchasesCmd := pipe.HGetAll(ctx, k.purchases)
	clockCmd := pipe.Get(ctx, k.lastRotation)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.NewSnapshot(), fmt.Errorf("redis: load snapshot: %w", err)
	}

	return assemble(poolCmd.Val(), activeCmd.Val(), purchasesCmd.Val(), clockCmd.Val()), nil
}

// assemble builds a snapshot from raw section values, skipping entries
// that do not decode.
func assemble(pool map[string]string, active []string, purchases map[string]string, clock string) domain.Snapshot {
	snap := domain.NewSnapshot()

	for _, id := range sortedKeys(pool) {
		rec, err := decodeRecord(pool[id])
		if err != nil {
			snap.Skipped = append(snap.Skipped, domain.SkippedRecord{Section: domain.SectionPool, Key: id, Reason: err.Error()})
			continue
		}
		snap.Pool[id] = rec
	}

	if len(active) > 0 {
		snap.Active = append([]string(nil), active...)
	}

	for _, actor := range sortedKeys(purchases) {
		var ids []string
		if err := json.Unmarshal([]byte(purchases[actor]), &ids); err != nil {
			snap.Skipped = append(snap.Skipped, domain.SkippedRecord{Section: domain.SectionPurchases, Key: actor, Reason: err.Error()})
			continue
		}
		snap.Purchases[actor] = ids
	}

	if clock != "" {
		ms, err := strconv.ParseInt(clock, 10, 64)
		if err != nil {
			snap.Skipped = append(snap.Skipped, domain.SkippedRecord{Section: domain.SectionLastRotation, Reason: err.Error()})
		} else {
			snap.LastRotation = ms
		}
	}
	return snap
}

// Save replaces every section inside a MULTI/EXEC transaction.
func (s *SnapshotStore) Save(ctx context.Context, snap domain.Snapshot) error {
	k := keysFor(s.prefix)

	pool := make(map[string]any, len(snap.Pool))
	for id, rec := range snap.Pool {
		v, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("redis: encode item %s: %w", id, err)
		}
		pool[id] = v
	}
	purchases := make(map[string]any, len(snap.Purchases))
	for actor, ids := range snap.Purchases {
		if len(ids) == 0 {
			continue
		}
		v, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("redis: encode purchases %s: %w", actor, err)
		}
		purchases[actor] = string(v)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, k.pool, k.active, k.purchases, k.lastRotation)
	if len(pool) > 0 {
		pipe.HSet(ctx, k.pool, pool)
	}
	if len(snap.Active) > 0 {
		vals := make([]any, len(snap.Active))
		for i, id := range snap.Active {
			vals[i] = id
		}
		pipe.RPush(ctx, k.active, vals...)
	}
	if len(purchases) > 0 {
		pipe.HSet(ctx, k.purchases, purchases)
	}
	if snap.LastRotation != 0 {
		pipe.Set(ctx, k.lastRotation, strconv.FormatInt(snap.LastRotation, 10), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save snapshot: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
