package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client the HTTP layer needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueuePost schedules the publication task of a post to run once its slot
// arrives. The task id is the post id, so a post is never queued twice.
func EnqueuePost(ctx context.Context, client Enqueuer, payload PublishPostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.TaskID(payload.PostID),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("publish task already queued", "post_id", payload.PostID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("publish task scheduled", "post_id", payload.PostID, "delay", delay)
	return nil
}
