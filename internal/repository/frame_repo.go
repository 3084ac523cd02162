package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clipnotes-backend/internal/models"
)

type FrameRepo struct {
	pool *pgxpool.Pool
}

func NewFrameRepo(pool *pgxpool.Pool) *FrameRepo {
	return &FrameRepo{pool: pool}
}

// UpsertBatch records one batch of extracted frames in a single round trip.
func (r *FrameRepo) UpsertBatch(ctx context.Context, frames []models.Frame) error {
	if len(frames) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range frames {
		batch.Queue(
			`INSERT INTO frames (video_id, timestamp_seconds, image_path)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (video_id, timestamp_seconds) DO UPDATE SET image_path = EXCLUDED.image_path`,
			f.VideoID, f.Timestamp, f.ImagePath,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range frames {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *FrameRepo) ListByVideo(ctx context.Context, videoID string) ([]models.Frame, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT video_id, timestamp_seconds, image_path, created_at
		 FROM frames WHERE video_id = $1 ORDER BY timestamp_seconds ASC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []models.Frame
	for rows.Next() {
		var f models.Frame
		if err := rows.Scan(&f.VideoID, &f.Timestamp, &f.ImagePath, &f.CreatedAt); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func (r *FrameRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM frames WHERE video_id = $1", videoID)
	return err
}
