package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/maheshrc27/postcadence/internal/models"
)

// MediaResolver decides which image accompanies a post.
type MediaResolver struct {
	generator ImageGenerator
}

func NewMediaResolver(generator ImageGenerator) *MediaResolver {
	return &MediaResolver{generator: generator}
}

// Resolve returns the post's own image when it has one, and otherwise
// generates one from the image prompt, or from the plain text when no prompt
// was given. generated reports whether the URL is new. A panicking generator
// is reported as a MediaGenerationError.
func (r *MediaResolver) Resolve(ctx context.Context, post *models.Post) (ref string, generated bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ref, generated = "", false
			err = &MediaGenerationError{PostID: post.ID, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if post.ImageURL != "" {
		return post.ImageURL, false, nil
	}

	prompt := strings.TrimSpace(post.ImagePrompt)
	if prompt == "" {
		prompt = PlainText(post.Text)
	}

	url, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return "", false, &MediaGenerationError{PostID: post.ID, Err: err}
	}
	return url, true, nil
}
