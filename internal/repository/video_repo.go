package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"clipnotes-backend/internal/models"
)

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

const videoColumns = `id, title, thumbnail_url, summary_en, summary_zh,
	captions_json, chapters_json, custom_prompt, is_favorite, chat_json, created_at`

func scanVideo(row interface{ Scan(...any) error }) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(
		&v.ID, &v.Title, &v.ThumbnailURL, &v.SummaryEN, &v.SummaryZH,
		&v.CaptionsJSON, &v.ChaptersJSON, &v.CustomPrompt, &v.IsFavorite,
		&v.ChatJSON, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Upsert inserts the video record or refreshes an existing one in place.
// The video ID is the natural key; re-summarizing never creates a second
// row. is_favorite and chat_json are user state, not derived state, so the
// conflict branch leaves them alone and the stored values are scanned back.
func (r *VideoRepo) Upsert(ctx context.Context, v *models.Video) error {
	query := `INSERT INTO videos (id, title, thumbnail_url, summary_en, summary_zh,
			captions_json, chapters_json, custom_prompt, is_favorite, chat_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			thumbnail_url = EXCLUDED.thumbnail_url,
			summary_en = EXCLUDED.summary_en,
			summary_zh = EXCLUDED.summary_zh,
			captions_json = EXCLUDED.captions_json,
			chapters_json = EXCLUDED.chapters_json,
			custom_prompt = EXCLUDED.custom_prompt
		RETURNING is_favorite, chat_json, created_at`

	return r.pool.QueryRow(ctx, query,
		v.ID, v.Title, v.ThumbnailURL, v.SummaryEN, v.SummaryZH,
		v.CaptionsJSON, v.ChaptersJSON, v.CustomPrompt, v.IsFavorite, v.ChatJSON,
	).Scan(&v.IsFavorite, &v.ChatJSON, &v.CreatedAt)
}

func (r *VideoRepo) GetByID(ctx context.Context, id string) (*models.Video, error) {
	query := "SELECT " + videoColumns + " FROM videos WHERE id = $1"
	return scanVideo(r.pool.QueryRow(ctx, query, id))
}

func (r *VideoRepo) List(ctx context.Context, search string, favoritesOnly bool, limit, offset int) ([]*models.Video, int, error) {
	var args []interface{}
	argIdx := 1

	where := "WHERE TRUE"
	if search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR summary_en ILIKE $%d OR summary_zh ILIKE $%d)", argIdx, argIdx, argIdx)
		args = append(args, "%"+search+"%")
		argIdx++
	}
	if favoritesOnly {
		where += " AND is_favorite = TRUE"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM videos " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM videos %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		videoColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, 0, err
		}
		videos = append(videos, v)
	}

	return videos, total, nil
}

// UpdateSummaries rewrites the generated pair plus the instruction that
// produced it, leaving captions and chapters untouched for reuse.
func (r *VideoRepo) UpdateSummaries(ctx context.Context, id string, summaryEN, summaryZH string, customPrompt *string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE videos SET summary_en = $1, summary_zh = $2, custom_prompt = $3 WHERE id = $4",
		summaryEN, summaryZH, customPrompt, id,
	)
	return err
}

func (r *VideoRepo) UpdateChat(ctx context.Context, id string, chatJSON []byte) error {
	_, err := r.pool.Exec(ctx, "UPDATE videos SET chat_json = $1 WHERE id = $2", chatJSON, id)
	return err
}

func (r *VideoRepo) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var fav bool
	err := r.pool.QueryRow(ctx,
		"UPDATE videos SET is_favorite = NOT is_favorite WHERE id = $1 RETURNING is_favorite", id,
	).Scan(&fav)
	return fav, err
}

func (r *VideoRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM videos WHERE id = $1", id)
	return err
}
