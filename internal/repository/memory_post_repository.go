package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/maheshrc27/postcadence/internal/models"
)

var _ PostRepository = (*MemoryPostRepository)(nil)

// MemoryPostRepository keeps posts in process memory with the same slot
// uniqueness and status guards as the Postgres store. It backs the server
// when no database is configured.
type MemoryPostRepository struct {
	mu    sync.Mutex
	posts map[string]*models.Post
	now   func() time.Time
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{posts: map[string]*models.Post{}, now: time.Now}
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Targets = slices.Clone(p.Targets)
	if p.Results != nil {
		r := *p.Results
		r.Channels = slices.Clone(p.Results.Channels)
		c.Results = &r
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

func (r *MemoryPostRepository) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *MemoryPostRepository) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := post.ScheduledTime.UTC()
	for _, p := range r.posts {
		if p.ScheduledTime.Equal(slot) {
			return ErrSlotTaken
		}
	}

	now := r.now().UTC()
	post.ScheduledTime = slot
	post.CreatedAt = now
	post.UpdatedAt = now
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *MemoryPostRepository) List(_ context.Context) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	posts := make([]*models.Post, 0, len(r.posts))
	for _, p := range r.posts {
		posts = append(posts, clonePost(p))
	}
	slices.SortFunc(posts, func(a, b *models.Post) int {
		as, bs := a.Status == models.PostStatusScheduled, b.Status == models.PostStatusScheduled
		switch {
		case as && !bs:
			return -1
		case !as && bs:
			return 1
		case as:
			return a.ScheduledTime.Compare(b.ScheduledTime)
		default:
			return b.ScheduledTime.Compare(a.ScheduledTime)
		}
	})
	return posts, nil
}

func (r *MemoryPostRepository) ListDue(_ context.Context, ref time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && !p.ScheduledTime.After(ref) {
			due = append(due, clonePost(p))
		}
	}
	slices.SortFunc(due, func(a, b *models.Post) int {
		if c := a.ScheduledTime.Compare(b.ScheduledTime); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return due, nil
}

func (r *MemoryPostRepository) ListOccupiedSlots(_ context.Context, from time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var slots []time.Time
	for _, p := range r.posts {
		if p.ScheduledTime.After(from) {
			slots = append(slots, p.ScheduledTime)
		}
	}
	slices.SortFunc(slots, time.Time.Compare)
	return slots, nil
}

func (r *MemoryPostRepository) Update(_ context.Context, id string, upd *models.PostUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Text != nil {
		p.Text = *upd.Text
	}
	if upd.ImagePrompt != nil {
		p.ImagePrompt = *upd.ImagePrompt
	}
	if upd.ImageURL != nil {
		p.ImageURL = *upd.ImageURL
	}
	p.UpdatedAt = r.now().UTC()
	return true, nil
}

func (r *MemoryPostRepository) CompletePublication(_ context.Context, id string, status models.PostStatus, results *models.PublicationResults, imageURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	now := r.now().UTC()
	p.Status = status
	if results != nil {
		c := *results
		c.Channels = slices.Clone(results.Channels)
		p.Results = &c
	}
	if imageURL != "" {
		p.ImageURL = imageURL
	}
	p.PublishedAt = &now
	p.UpdatedAt = now
	return true, nil
}

func (r *MemoryPostRepository) Remove(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	delete(r.posts, id)
	return true, nil
}
