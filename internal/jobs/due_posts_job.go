package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postcadence/internal/metrics"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/repository"
	"github.com/maheshrc27/postcadence/internal/service"
)

// DuePostsJob publishes every scheduled post whose slot has arrived.
type DuePostsJob struct {
	pr      repository.PostRepository
	ps      service.PublicationService
	metrics *metrics.Metrics
	// timeout caps each post, not the whole scan.
	timeout time.Duration
}

func NewDuePostsJob(pr repository.PostRepository, ps service.PublicationService, m *metrics.Metrics) *DuePostsJob {
	return &DuePostsJob{
		pr:      pr,
		ps:      ps,
		metrics: m,
		timeout: 10 * time.Minute,
	}
}

// RunDuePosts publishes the posts due at ref in ascending slot order and
// returns one summary per post. A failing post is reported in its summary and
// never stops the scan. Only a failure to list due posts is returned.
func (j *DuePostsJob) RunDuePosts(ctx context.Context, ref time.Time) ([]models.PublishSummary, error) {
	started := time.Now()

	posts, err := j.pr.ListDue(ctx, ref)
	if err != nil {
		slog.Info(err.Error())
		return nil, &service.StorageError{Op: "list due posts", Err: err}
	}

	results := make([]models.PublishSummary, 0, len(posts))
	for _, post := range posts {
		results = append(results, j.publishOne(ctx, post.ID))
	}

	j.metrics.ScanCompleted(started, len(posts))
	slog.Info("due post scan finished", "ref", ref, "posts", len(posts))
	return results, nil
}

func (j *DuePostsJob) publishOne(ctx context.Context, postID string) (summary models.PublishSummary) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("publication panicked", "post_id", postID, "panic", r)
			summary = models.PublishSummary{
				PostID: postID,
				Status: models.PostStatusError,
				Error:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	res, err := j.ps.PublishPost(ctx, postID)
	if err != nil {
		slog.Info(err.Error(), "post_id", postID)
		return models.PublishSummary{PostID: postID, Status: models.PostStatusError, Error: err.Error()}
	}
	return *res
}

// Run is the cron entry point.
func (j *DuePostsJob) Run() {
	if _, err := j.RunDuePosts(context.Background(), time.Now().UTC()); err != nil {
		slog.Error(err.Error())
	}
}
