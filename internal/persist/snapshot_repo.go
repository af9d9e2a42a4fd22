package persist

import (
	"context"
	"fmt"

	"cogentcore.org/core/math32"
	"github.com/jackc/pgx/v5"

	"github.com/l1jgo/scene/internal/payload"
	"github.com/l1jgo/scene/internal/render"
)

// ItemRow is one persisted scene item.
type ItemRow struct {
	ItemID int64
	Key    int32
	Tag    string
	Min    [3]float32
	Max    [3]float32
}

// RowsFromSnapshot converts scene snapshots to rows. Tags are kept for Shape payloads.
func RowsFromSnapshot(items []render.ItemSnapshot) []ItemRow {
	rows := make([]ItemRow, 0, len(items))
	for _, it := range items {
		row := ItemRow{
			ItemID: int64(it.ID),
			Key:    int32(it.Key),
			Min:    [3]float32{it.Bound.Min.X, it.Bound.Min.Y, it.Bound.Min.Z},
			Max:    [3]float32{it.Bound.Max.X, it.Bound.Max.Y, it.Bound.Max.Z},
		}
		if s, ok := it.Payload.(*payload.Shape); ok {
			row.Tag = s.Tag
		}
		rows = append(rows, row)
	}
	return rows
}

// RestoreTransaction rebuilds persisted rows as Shape resets under freshly
// allocated IDs. Persisted IDs are never reused. Rows with an empty key are skipped.
func RestoreTransaction(rows []ItemRow, allocate func() render.ItemID) (*render.Transaction, []render.ItemID) {
	tx := &render.Transaction{}
	ids := make([]render.ItemID, 0, len(rows))
	for _, row := range rows {
		key := render.ItemKey(row.Key)
		if key.IsNone() {
			continue
		}
		bound := math32.Box3{
			Min: math32.Vec3(row.Min[0], row.Min[1], row.Min[2]),
			Max: math32.Vec3(row.Max[0], row.Max[1], row.Max[2]),
		}
		id := allocate()
		tx.ResetItem(id, payload.NewShape(row.Tag, key, bound))
		ids = append(ids, id)
	}
	return tx, ids
}

type SnapshotRepo struct {
	db   *DB
	keep int // snapshots retained after each save (0 = all)
}

func NewSnapshotRepo(db *DB, keep int) *SnapshotRepo {
	return &SnapshotRepo{db: db, keep: keep}
}

// Save writes a snapshot header and all its rows in one transaction, then
// prunes old snapshots. Returns the new snapshot ID.
func (r *SnapshotRepo) Save(ctx context.Context, frame uint64, watermark render.ItemID, rows []ItemRow) (int64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var snapshotID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO scene_snapshots (frame, watermark, item_count) VALUES ($1, $2, $3) RETURNING id`,
		int64(frame), int64(watermark), len(rows),
	).Scan(&snapshotID); err != nil {
		return 0, fmt.Errorf("snapshot insert: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"scene_snapshot_items"},
		[]string{"snapshot_id", "item_id", "item_key", "tag", "min_x", "min_y", "min_z", "max_x", "max_y", "max_z"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			return []any{snapshotID, row.ItemID, row.Key, row.Tag,
				row.Min[0], row.Min[1], row.Min[2], row.Max[0], row.Max[1], row.Max[2]}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("snapshot items: %w", err)
	}

	if r.keep > 0 {
		if err := prune(ctx, tx, r.keep); err != nil {
			return 0, fmt.Errorf("snapshot prune: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("snapshot commit: %w", err)
	}
	return snapshotID, nil
}

// LoadLatest returns the rows of the most recent snapshot, or nil when none exists.
func (r *SnapshotRepo) LoadLatest(ctx context.Context) ([]ItemRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT item_id, item_key, tag, min_x, min_y, min_z, max_x, max_y, max_z
		 FROM scene_snapshot_items
		 WHERE snapshot_id = (SELECT max(id) FROM scene_snapshots)
		 ORDER BY item_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ItemRow
	for rows.Next() {
		var it ItemRow
		if err := rows.Scan(
			&it.ItemID, &it.Key, &it.Tag,
			&it.Min[0], &it.Min[1], &it.Min[2], &it.Max[0], &it.Max[1], &it.Max[2],
		); err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

// prune deletes all but the newest keep snapshots. Items cascade.
func prune(ctx context.Context, tx pgx.Tx, keep int) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM scene_snapshots
		 WHERE id NOT IN (SELECT id FROM scene_snapshots ORDER BY id DESC LIMIT $1)`, keep,
	)
	return err
}
