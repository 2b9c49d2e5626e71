package queue

import (
	"github.com/maheshrc27/postcadence/internal/service"
)

type Queue struct {
	ps service.PublicationService
}

func NewQueue(ps service.PublicationService) *Queue {
	return &Queue{ps: ps}
}

const TaskTypePublishPost = "post:publish"

type PublishPostPayload struct {
	PostID string `json:"post_id"`
}
