package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/blackmarket/internal/codec"
	"github.com/alanyoungcy/blackmarket/internal/domain"
	"github.com/alanyoungcy/blackmarket/internal/notify"
	"github.com/alanyoungcy/blackmarket/internal/rotation"
)

// RunMode runs the rotation scheduler (with its startup catch-up) and a
// periodic status log until ctx is cancelled.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode",
		slog.Duration("interval", deps.Engine.Interval()),
		slog.Int("pool", deps.Store.PoolSize()),
	)

	g, ctx := errgroup.WithContext(ctx)

	scheduler := rotation.NewScheduler(deps.Engine, deps.Shop, a.logger)
	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	if every := a.cfg.Market.StatusInterval.Duration; every > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					a.logStatus(ctx, deps)
				}
			}
		})
	}

	return g.Wait()
}

// RotateMode forces one rotation and exits.
func (a *App) RotateMode(ctx context.Context, deps *Dependencies) error {
	res, err := deps.Shop.Rotate(ctx)
	switch {
	case errors.Is(err, domain.ErrEmptyPool):
		return nil
	case err != nil:
		return fmt.Errorf("rotate mode: %w", err)
	}
	a.logger.InfoContext(ctx, deps.Shop.Messages().RotationForced,
		slog.Int("selected", len(res.Selected)),
		slog.Int("pool", res.PoolSize),
	)
	return nil
}

// StatusMode logs the active set and the time until the next rotation.
func (a *App) StatusMode(ctx context.Context, deps *Dependencies) error {
	a.logStatus(ctx, deps)
	for i, item := range deps.Shop.Status().Active {
		a.logger.InfoContext(ctx, "active item",
			slog.Int("position", i+1),
			slog.String("item_id", item.ID().String()),
			slog.String("reward", notify.Describe(item.Reward())),
			slog.Int("costs", len(item.Costs())),
			slog.Int("weight", item.Weight()),
		)
	}
	return nil
}

// HistoryMode lists archived rotation periods, or prints a single one when
// s3.history_key is set.
func (a *App) HistoryMode(ctx context.Context, deps *Dependencies) error {
	if key := a.cfg.S3.HistoryKey; key != "" {
		return a.showArchived(ctx, deps, key)
	}
	infos, err := deps.Archiver.List(ctx)
	if err != nil {
		return fmt.Errorf("history mode: %w", err)
	}
	for _, info := range infos {
		a.logger.InfoContext(ctx, "archived rotation",
			slog.Time("rotated_at", info.RotatedAt),
			slog.String("path", info.Path),
			slog.Int64("bytes", info.Size),
		)
	}
	a.logger.InfoContext(ctx, "history listed", slog.Int("count", len(infos)))
	return nil
}

func (a *App) showArchived(ctx context.Context, deps *Dependencies, key string) error {
	snap, err := deps.Archiver.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("history mode: %w", err)
	}

	a.logger.InfoContext(ctx, "archived period",
		slog.String("path", key),
		slog.Int("pool", len(snap.Pool)),
		slog.Int("active", len(snap.Active)),
		slog.Int("actors", len(snap.Purchases)),
		slog.Time("last_rotation", time.UnixMilli(snap.LastRotation)),
	)

	c := codec.NewProto()
	for i, id := range snap.Active {
		rec, ok := snap.Pool[id]
		if !ok {
			a.logger.WarnContext(ctx, "archived active item missing from pool", slog.String("item_id", id))
			continue
		}
		reward, err := c.Decode(rec.Item)
		if err != nil {
			a.logger.WarnContext(ctx, "archived item unreadable",
				slog.String("item_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.InfoContext(ctx, "archived active item",
			slog.Int("position", i+1),
			slog.String("item_id", id),
			slog.String("reward", notify.Describe(reward)),
			slog.Int("costs", len(rec.Costs)),
			slog.Int("weight", rec.Weight),
		)
	}
	return nil
}

func (a *App) logStatus(ctx context.Context, deps *Dependencies) {
	st := deps.Shop.Status()
	a.logger.InfoContext(ctx, "market status",
		slog.Int("pool", st.PoolSize),
		slog.Int("active", len(st.Active)),
		slog.Time("last_rotation", st.LastRotation),
		slog.String("next_in", rotation.FormatRemaining(st.NextIn)),
	)
}
