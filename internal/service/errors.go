package service

import (
	"errors"
	"fmt"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrPostNotEditable  = errors.New("post is no longer scheduled")
	ErrInvalidPost      = errors.New("invalid post")
	ErrNoSlotAvailable  = errors.New("no free slot within the scheduling horizon")
	ErrPublishInProcess = errors.New("post is being published by another worker")
	ErrAccountNotFound  = errors.New("account is not configured")
)

// ImageGenerationError reports a failed or empty response from the image
// generator.
type ImageGenerationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ImageGenerationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("image generation failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("image generation failed with status %d: %s", e.StatusCode, e.Message)
	default:
		return "image generation failed: " + e.Message
	}
}

func (e *ImageGenerationError) Unwrap() error { return e.Err }

// MediaGenerationError aborts one post's publication attempt.
type MediaGenerationError struct {
	PostID string
	Err    error
}

func (e *MediaGenerationError) Error() string {
	return fmt.Sprintf("resolve media for post %s: %v", e.PostID, e.Err)
}

func (e *MediaGenerationError) Unwrap() error { return e.Err }

// ChannelPublishError is scoped to one account of one channel and is only
// ever recorded as an outcome.
type ChannelPublishError struct {
	Channel string
	Account string
	Step    string
	Err     error
}

func (e *ChannelPublishError) Error() string {
	return fmt.Sprintf("%s/%s: %s: %v", e.Channel, e.Account, e.Step, e.Err)
}

func (e *ChannelPublishError) Unwrap() error { return e.Err }

// StorageError wraps content store failures. These are never swallowed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
