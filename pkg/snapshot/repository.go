package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/calwindow/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	Store(ctx context.Context, snapshot Snapshot) (Snapshot, error)
	GetLatest(ctx context.Context) (Snapshot, error)
	// GetLatestForWindowStart returns the most recent snapshot of the window starting at date.
	GetLatestForWindowStart(ctx context.Context, date schedule.Date) (Snapshot, error)
	List(ctx context.Context, limit int) ([]Snapshot, error)
	// DeleteGeneratedBefore removes snapshots generated before t and returns their number.
	DeleteGeneratedBefore(ctx context.Context, t time.Time) (int, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

const selectSnapshot = `SELECT id, generated_at, skipped_events, payload FROM schedule_snapshot`

func (r *repositoryImpl) Store(ctx context.Context, snapshot Snapshot) (Snapshot, error) {
	payload, err := json.Marshal(snapshot.Window)
	if err != nil {
		return Snapshot{}, fmt.Errorf("could not marshal window: %w", err)
	}
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}

	query := `INSERT INTO schedule_snapshot (id, window_start, window_end, generated_at, skipped_events, payload)
			  VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.Exec(ctx, query,
		snapshot.ID,
		snapshot.WindowStart().StartOfDay(time.UTC),
		snapshot.WindowEnd().StartOfDay(time.UTC),
		snapshot.GeneratedAt,
		snapshot.SkippedEvents,
		payload,
	)
	if err != nil {
		err := fmt.Errorf("could not store snapshot: %w", err)
		log.Error(err)
		return Snapshot{}, err
	}
	return snapshot, nil
}

func (r *repositoryImpl) GetLatest(ctx context.Context) (Snapshot, error) {
	query := selectSnapshot + ` ORDER BY generated_at DESC LIMIT 1`
	return scanSnapshot(r.db.QueryRow(ctx, query))
}

func (r *repositoryImpl) GetLatestForWindowStart(ctx context.Context, date schedule.Date) (Snapshot, error) {
	query := selectSnapshot + ` WHERE window_start = $1 ORDER BY generated_at DESC LIMIT 1`
	return scanSnapshot(r.db.QueryRow(ctx, query, date.StartOfDay(time.UTC)))
}

func (r *repositoryImpl) List(ctx context.Context, limit int) ([]Snapshot, error) {
	query := selectSnapshot + ` ORDER BY generated_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		err := fmt.Errorf("could not query snapshots: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *repositoryImpl) DeleteGeneratedBefore(ctx context.Context, t time.Time) (int, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM schedule_snapshot WHERE generated_at < $1`, t)
	if err != nil {
		err := fmt.Errorf("could not delete snapshots: %w", err)
		log.Error(err)
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var snapshot Snapshot
	var payload []byte
	err := row.Scan(&snapshot.ID, &snapshot.GeneratedAt, &snapshot.SkippedEvents, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("could not scan snapshot: %w", err)
	}
	if err := json.Unmarshal(payload, &snapshot.Window); err != nil {
		return Snapshot{}, fmt.Errorf("could not unmarshal window of snapshot %s: %w", snapshot.ID, err)
	}
	return snapshot, nil
}
