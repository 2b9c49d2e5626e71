package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postcadence/internal/models"
)

// ErrSlotTaken is returned by Create when another post already holds the
// scheduled_time; the unique index on that column is the final arbiter.
var ErrSlotTaken = errors.New("scheduled time slot already taken")

const uniqueViolation = "23505"

const postColumns = `id, title, text, image_prompt, image_url, scheduled_time, status, targets, publication_results, published_at, created_at, updated_at`

type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	List(ctx context.Context) ([]*models.Post, error)
	ListDue(ctx context.Context, ref time.Time) ([]*models.Post, error)
	ListOccupiedSlots(ctx context.Context, from time.Time) ([]time.Time, error)
	Update(ctx context.Context, id string, upd *models.PostUpdate) (bool, error)
	CompletePublication(ctx context.Context, id string, status models.PostStatus, results *models.PublicationResults, imageURL string) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post        models.Post
		status      string
		targets     []byte
		results     []byte
		publishedAt sql.NullTime
	)
	err := row.Scan(&post.ID, &post.Title, &post.Text, &post.ImagePrompt, &post.ImageURL, &post.ScheduledTime,
		&status, &targets, &results, &publishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.Status = models.PostStatus(status)
	post.ScheduledTime = post.ScheduledTime.UTC()
	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &post.Targets); err != nil {
			return nil, fmt.Errorf("decode targets of post %s: %w", post.ID, err)
		}
	}
	if len(results) > 0 {
		post.Results = &models.PublicationResults{}
		if err := json.Unmarshal(results, post.Results); err != nil {
			return nil, fmt.Errorf("decode results of post %s: %w", post.ID, err)
		}
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		post.PublishedAt = &t
	}
	return &post, nil
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, title, text, image_prompt, image_url, scheduled_time, status, targets)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	targets, err := json.Marshal(post.Targets)
	if err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}

	err = r.db.QueryRowContext(ctx, query, post.ID, post.Title, post.Text, post.ImagePrompt, post.ImageURL,
		post.ScheduledTime.UTC(), string(post.Status), targets).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrSlotTaken
		}
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

// List returns scheduled posts first in slot order, then everything else
// most recent first.
func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		ORDER BY (status = 'scheduled') DESC,
			CASE WHEN status = 'scheduled' THEN scheduled_time END ASC,
			scheduled_time DESC
	`
	return r.queryPosts(ctx, query)
}

// ListDue selects scheduled posts whose slot is at or before ref. Posts in a
// terminal status are never returned.
func (r *postRepository) ListDue(ctx context.Context, ref time.Time) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time ASC, id ASC
	`
	return r.queryPosts(ctx, query, string(models.PostStatusScheduled), ref.UTC())
}

func (r *postRepository) ListOccupiedSlots(ctx context.Context, from time.Time) ([]time.Time, error) {
	query := `SELECT scheduled_time FROM posts WHERE scheduled_time > $1 ORDER BY scheduled_time`

	rows, err := r.db.QueryContext(ctx, query, from.UTC())
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var slots []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		slots = append(slots, t.UTC())
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return slots, nil
}

// Update merges the non-nil fields of upd into a still scheduled post. It
// reports false when no scheduled post with that id exists.
func (r *postRepository) Update(ctx context.Context, id string, upd *models.PostUpdate) (bool, error) {
	query := `
		UPDATE posts
		SET title = COALESCE($2, title),
			text = COALESCE($3, text),
			image_prompt = COALESCE($4, image_prompt),
			image_url = COALESCE($5, image_url),
			updated_at = $6
		WHERE id = $1 AND status = 'scheduled'
	`
	result, err := r.db.ExecContext(ctx, query, id, upd.Title, upd.Text, upd.ImagePrompt, upd.ImageURL, time.Now().UTC())
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected(result)
}

// CompletePublication applies the terminal status, results and, when
// non-empty, the lazily resolved image in a single statement. The write only
// lands on a post that is still scheduled.
func (r *postRepository) CompletePublication(ctx context.Context, id string, status models.PostStatus, results *models.PublicationResults, imageURL string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $2,
			publication_results = $3,
			image_url = COALESCE(NULLIF($4::text, ''), image_url),
			published_at = $5,
			updated_at = $5
		WHERE id = $1 AND status = 'scheduled'
	`

	encoded, err := json.Marshal(results)
	if err != nil {
		return false, fmt.Errorf("encode results: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, id, string(status), encoded, imageURL, time.Now().UTC())
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected(result)
}

func (r *postRepository) Remove(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM posts WHERE id = $1 AND status = 'scheduled'`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n > 0, nil
}
