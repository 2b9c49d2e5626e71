package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postcadence/internal/lock"
	"github.com/maheshrc27/postcadence/internal/metrics"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/repository"
	"golang.org/x/sync/errgroup"
)

const publishLockTTL = 10 * time.Minute

type PublicationService interface {
	PublishPost(ctx context.Context, postID string) (*models.PublishSummary, error)
}

type publicationService struct {
	pr         repository.PostRepository
	media      *MediaResolver
	publishers map[string]ChannelPublisher
	locker     lock.Locker
	metrics    *metrics.Metrics
	concurrent bool
}

// NewPublicationService wires the orchestrator. locker and m may be nil.
func NewPublicationService(pr repository.PostRepository, media *MediaResolver, publishers []ChannelPublisher, locker lock.Locker, m *metrics.Metrics, concurrent bool) PublicationService {
	byChannel := make(map[string]ChannelPublisher, len(publishers))
	for _, p := range publishers {
		byChannel[p.Channel()] = p
	}
	return &publicationService{
		pr:         pr,
		media:      media,
		publishers: byChannel,
		locker:     locker,
		metrics:    m,
		concurrent: concurrent,
	}
}

// PublishPost drives one post to a terminal status. It returns ErrPostNotFound
// for an unknown id and a StorageError when the store fails; every other
// failure ends up in the summary. A post that is already terminal is left
// untouched.
func (s *publicationService) PublishPost(ctx context.Context, postID string) (*models.PublishSummary, error) {
	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status.Terminal() {
		return skippedSummary(post), nil
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "publish:"+postID, publishLockTTL)
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrPublishInProcess
		}
		if err != nil {
			return nil, &StorageError{Op: "lock post", Err: err}
		}
		defer release()

		// another worker may have finished between the first read and the lock
		post, err = s.load(ctx, postID)
		if err != nil {
			return nil, err
		}
		if post.Status.Terminal() {
			return skippedSummary(post), nil
		}
	}

	imageURL, generated, err := s.media.Resolve(ctx, post)
	if err != nil {
		slog.Error("media resolution failed", "post_id", postID, "error", err)
		results := &models.PublicationResults{Error: err.Error()}
		return s.complete(ctx, post, models.PostStatusError, results, "")
	}

	channels := s.publishChannels(ctx, post, imageURL)
	status := models.AggregateStatus(channels)
	results := &models.PublicationResults{Channels: channels, ImageURL: imageURL}

	newImage := ""
	if generated {
		newImage = imageURL
	}
	return s.complete(ctx, post, status, results, newImage)
}

func (s *publicationService) load(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, &StorageError{Op: "load post", Err: err}
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// publishChannels returns one result per target, in target order.
func (s *publicationService) publishChannels(ctx context.Context, post *models.Post, imageURL string) []models.ChannelResult {
	results := make([]models.ChannelResult, len(post.Targets))

	run := func(i int) {
		target := post.Targets[i]
		results[i] = models.ChannelResult{Channel: target.Channel}
		defer func() {
			if r := recover(); r != nil {
				slog.Error("channel publisher panicked", "post_id", post.ID, "channel", target.Channel, "panic", r)
				results[i].Outcomes = failAll(target, fmt.Errorf("panic: %v", r))
			}
		}()

		publisher, ok := s.publishers[target.Channel]
		if !ok {
			results[i].Outcomes = failAll(target, fmt.Errorf("channel %q is not configured", target.Channel))
			return
		}
		results[i].Outcomes = publisher.Publish(ctx, post.Text, imageURL, target.Accounts)
	}

	if !s.concurrent || len(post.Targets) < 2 {
		for i := range post.Targets {
			run(i)
		}
		return results
	}

	var g errgroup.Group
	for i := range post.Targets {
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func failAll(target models.ChannelTarget, err error) []models.AccountOutcome {
	outcomes := make([]models.AccountOutcome, 0, len(target.Accounts))
	for _, acc := range target.Accounts {
		outcomes = append(outcomes, models.ErrorOutcome(acc, &ChannelPublishError{
			Channel: target.Channel, Account: acc, Step: "publish", Err: err,
		}))
	}
	return outcomes
}

func (s *publicationService) complete(ctx context.Context, post *models.Post, status models.PostStatus, results *models.PublicationResults, newImage string) (*models.PublishSummary, error) {
	// Channels may already have published, so the terminal write must outlive
	// the caller's deadline.
	ctx = context.WithoutCancel(ctx)

	updated, err := s.pr.CompletePublication(ctx, post.ID, status, results, newImage)
	if err != nil {
		return nil, &StorageError{Op: "complete publication", Err: err}
	}
	if !updated {
		// lost the race to a concurrent attempt; report what is stored
		slog.Warn("post left scheduled state during publication", "post_id", post.ID)
		current, err := s.load(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		return skippedSummary(current), nil
	}

	s.metrics.PostPublished(status, results.Channels)
	slog.Info("post published", "post_id", post.ID, "status", status)

	return &models.PublishSummary{
		PostID:  post.ID,
		Status:  status,
		Results: results,
		Error:   results.Error,
	}, nil
}

func skippedSummary(post *models.Post) *models.PublishSummary {
	return &models.PublishSummary{
		PostID:  post.ID,
		Status:  post.Status,
		Results: post.Results,
		Skipped: true,
	}
}
