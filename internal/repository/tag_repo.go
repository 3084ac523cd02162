package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"clipnotes-backend/internal/models"
)

type TagRepo struct {
	pool *pgxpool.Pool
}

func NewTagRepo(pool *pgxpool.Pool) *TagRepo {
	return &TagRepo{pool: pool}
}

// GetOrCreate returns the tag with the given name, creating it on first use.
func (r *TagRepo) GetOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	t := &models.Tag{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tags (id, name) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, created_at`,
		uuid.New(), name,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TagRepo) List(ctx context.Context) ([]models.Tag, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, name, created_at FROM tags ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (r *TagRepo) ListByVideo(ctx context.Context, videoID string) ([]models.Tag, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.name, t.created_at FROM tags t
		 JOIN video_tags vt ON vt.tag_id = t.id
		 WHERE vt.video_id = $1 ORDER BY t.name ASC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (r *TagRepo) Attach(ctx context.Context, videoID string, tagID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO video_tags (video_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		videoID, tagID,
	)
	return err
}

func (r *TagRepo) Detach(ctx context.Context, videoID string, tagID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"DELETE FROM video_tags WHERE video_id = $1 AND tag_id = $2", videoID, tagID)
	return err
}

// ListVideos returns every video carrying the tag, newest first.
func (r *TagRepo) ListVideos(ctx context.Context, tagID uuid.UUID) ([]*models.Video, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT v.id, v.title, v.thumbnail_url, v.summary_en, v.summary_zh,
		        v.captions_json, v.chapters_json, v.custom_prompt, v.is_favorite,
		        v.chat_json, v.created_at
		 FROM videos v
		 JOIN video_tags vt ON vt.video_id = v.id
		 WHERE vt.tag_id = $1 ORDER BY v.created_at DESC`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v := &models.Video{}
		err := rows.Scan(
			&v.ID, &v.Title, &v.ThumbnailURL, &v.SummaryEN, &v.SummaryZH,
			&v.CaptionsJSON, &v.ChaptersJSON, &v.CustomPrompt, &v.IsFavorite,
			&v.ChatJSON, &v.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, nil
}

// Delete removes the tag everywhere; video_tags rows go with it via cascade.
func (r *TagRepo) Delete(ctx context.Context, tagID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM tags WHERE id = $1", tagID)
	return err
}
