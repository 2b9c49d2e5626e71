package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/postcadence/internal/lock"
	"github.com/maheshrc27/postcadence/internal/metrics"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/repository"
	"github.com/maheshrc27/postcadence/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	slotLockKey      = "slots"
	slotLockTTL      = 30 * time.Second
	slotLockWait     = 10 * time.Second
	slotTakenRetries = 3
	maxImageBytes    = 10 << 20
)

var allowedImageTypes = map[string]struct{}{
	"jpg": {}, "png": {}, "gif": {}, "webp": {},
}

type PostService interface {
	CreatePost(ctx context.Context, pc *transfer.PostCreation, image []byte) (*models.Post, time.Duration, error)
	List(ctx context.Context) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID string) (*models.Post, error)
	Update(ctx context.Context, postID string, upd *models.PostUpdate) (*models.Post, error)
	Remove(ctx context.Context, postID string) error
	UploadImage(ctx context.Context, data []byte) (string, error)
}

type postService struct {
	pr         repository.PostRepository
	scheduler  *SlotScheduler
	locker     lock.Locker
	storage    ObjectStorage
	publishers []ChannelPublisher
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewPostService builds the post service. publishers decide which channels
// and accounts a post may target, in their given order. locker, storage and
// m may be nil.
func NewPostService(
	pr repository.PostRepository,
	scheduler *SlotScheduler,
	locker lock.Locker,
	storage ObjectStorage,
	publishers []ChannelPublisher,
	m *metrics.Metrics) PostService {
	return &postService{
		pr:         pr,
		scheduler:  scheduler,
		locker:     locker,
		storage:    storage,
		publishers: publishers,
		metrics:    m,
		now:        time.Now,
	}
}

func (s *postService) CreatePost(ctx context.Context, pc *transfer.PostCreation, image []byte) (*models.Post, time.Duration, error) {
	if pc == nil {
		return nil, 0, fmt.Errorf("%w: post creation data is nil", ErrInvalidPost)
	}
	if strings.TrimSpace(pc.Text) == "" {
		return nil, 0, fmt.Errorf("%w: text cannot be empty", ErrInvalidPost)
	}

	targets, err := s.resolveTargets(pc.Targets)
	if err != nil {
		return nil, 0, err
	}

	imageURL := strings.TrimSpace(pc.ImageURL)
	if len(image) > 0 {
		imageURL, err = s.UploadImage(ctx, image)
		if err != nil {
			return nil, 0, err
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, 0, fmt.Errorf("generate post id: %w", err)
	}

	post := &models.Post{
		ID:          id,
		Title:       strings.TrimSpace(pc.Title),
		Text:        pc.Text,
		ImagePrompt: strings.TrimSpace(pc.ImagePrompt),
		ImageURL:    imageURL,
		Status:      models.PostStatusScheduled,
		Targets:     targets,
	}

	if err := s.assignSlot(ctx, post); err != nil {
		return nil, 0, err
	}
	s.metrics.PostScheduled()
	slog.Info("post scheduled", "post_id", post.ID, "scheduled_time", post.ScheduledTime)

	delay := post.ScheduledTime.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	return post, delay, nil
}

// assignSlot picks the next free slot and persists the post as one critical
// section. The unique index on scheduled_time catches writers that bypass
// the lock.
func (s *postService) assignSlot(ctx context.Context, post *models.Post) error {
	if s.locker != nil {
		release, err := lock.AcquireWait(ctx, s.locker, slotLockKey, slotLockTTL, slotLockWait)
		if err != nil {
			return &StorageError{Op: "lock slots", Err: err}
		}
		defer release()
	}

	now := s.now()
	occupied, err := s.pr.ListOccupiedSlots(ctx, now)
	if err != nil {
		return &StorageError{Op: "list occupied slots", Err: err}
	}
	taken := NewSlotSet(occupied...)

	for attempt := 0; ; attempt++ {
		slot, err := s.scheduler.FindNextAvailableSlot(now, taken.Occupied)
		if err != nil {
			return err
		}
		post.ScheduledTime = slot

		err = s.pr.Create(ctx, post)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSlotTaken) || attempt+1 >= slotTakenRetries {
			return &StorageError{Op: "create post", Err: err}
		}
		slog.Warn("slot taken concurrently, retrying", "slot", slot)
		taken.Add(slot)
	}
}

// resolveTargets validates the requested targets against the configured
// accounts. No targets means every configured account of every channel; a
// channel with no accounts listed means all of its accounts.
func (s *postService) resolveTargets(requested []models.ChannelTarget) ([]models.ChannelTarget, error) {
	var targets []models.ChannelTarget

	if len(requested) == 0 {
		for _, p := range s.publishers {
			if accounts := p.Accounts(); len(accounts) > 0 {
				targets = append(targets, models.ChannelTarget{Channel: p.Channel(), Accounts: accounts})
			}
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("%w: no accounts are configured", ErrInvalidPost)
		}
		return targets, nil
	}

	seen := map[string]bool{}
	for _, t := range requested {
		channel := strings.ToLower(strings.TrimSpace(t.Channel))
		if seen[channel] {
			return nil, fmt.Errorf("%w: channel %q listed twice", ErrInvalidPost, channel)
		}
		seen[channel] = true

		idx := slices.IndexFunc(s.publishers, func(p ChannelPublisher) bool { return p.Channel() == channel })
		if idx < 0 {
			return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidPost, t.Channel)
		}
		configured := s.publishers[idx].Accounts()

		accounts := t.Accounts
		if len(accounts) == 0 {
			accounts = configured
		}
		var picked []string
		for _, acc := range accounts {
			if !slices.Contains(configured, acc) {
				return nil, fmt.Errorf("%w: unknown %s account %q", ErrInvalidPost, channel, acc)
			}
			if !slices.Contains(picked, acc) {
				picked = append(picked, acc)
			}
		}
		if len(picked) == 0 {
			return nil, fmt.Errorf("%w: channel %q has no accounts", ErrInvalidPost, channel)
		}
		targets = append(targets, models.ChannelTarget{Channel: channel, Accounts: picked})
	}
	return targets, nil
}

func (s *postService) UploadImage(ctx context.Context, data []byte) (string, error) {
	if s.storage == nil {
		return "", errors.New("object storage is not configured")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrInvalidPost)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("%w: image larger than %d bytes", ErrInvalidPost, maxImageBytes)
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", fmt.Errorf("%w: unsupported file type", ErrInvalidPost)
	}
	if _, ok := allowedImageTypes[kind.Extension]; !ok {
		return "", fmt.Errorf("%w: file type %s is not allowed", ErrInvalidPost, kind.Extension)
	}

	url, err := s.storage.Put(ctx, data, kind.MIME.Value)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

func (s *postService) List(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.pr.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list posts", Err: err}
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, &StorageError{Op: "load post", Err: err}
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) Update(ctx context.Context, postID string, upd *models.PostUpdate) (*models.Post, error) {
	if upd.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidPost)
	}
	if upd.Text != nil && strings.TrimSpace(*upd.Text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrInvalidPost)
	}

	ok, err := s.pr.Update(ctx, postID, upd)
	if err != nil {
		return nil, &StorageError{Op: "update post", Err: err}
	}
	if !ok {
		return nil, s.notChangeable(ctx, postID)
	}
	return s.PostInfo(ctx, postID)
}

func (s *postService) Remove(ctx context.Context, postID string) error {
	ok, err := s.pr.Remove(ctx, postID)
	if err != nil {
		return &StorageError{Op: "remove post", Err: err}
	}
	if !ok {
		return s.notChangeable(ctx, postID)
	}
	slog.Info("post removed", "post_id", postID)
	return nil
}

// notChangeable tells a missing post apart from one that already left the
// scheduled state.
func (s *postService) notChangeable(ctx context.Context, postID string) error {
	if _, err := s.PostInfo(ctx, postID); err != nil {
		return err
	}
	return ErrPostNotEditable
}
