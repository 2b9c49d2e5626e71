package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postcadence/internal/service"
)

// HandlePublishPostTask runs the orchestrator for the post named in the task.
// Only storage failures are retried by asynq. Every other outcome is final
// and already recorded on the post.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	summary, err := q.ps.PublishPost(ctx, payload.PostID)
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		// removed after it was queued
		slog.Info("post no longer exists", "post_id", payload.PostID)
		return nil
	case errors.Is(err, service.ErrPublishInProcess):
		slog.Info("post is being published elsewhere", "post_id", payload.PostID)
		return nil
	case err != nil:
		slog.Error(err.Error(), "post_id", payload.PostID)
		return err
	}

	slog.Info("publish task done", "post_id", summary.PostID, "status", summary.Status, "skipped", summary.Skipped)
	return nil
}

// Register adds the queue's handlers to mux.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishPostTask)
}
