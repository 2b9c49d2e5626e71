package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/internal/transfer"
)

// ImageGenerator produces an image for a prompt and returns its URL.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ideogramService struct {
	apiKey string
	apiURL string
	client *http.Client
	exec   failsafe.Executor[*httpResult]
}

func NewIdeogramService(cfg config.Ideogram, client *http.Client, retry HTTPRetryConfig) ImageGenerator {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &ideogramService{
		apiKey: cfg.APIKey,
		apiURL: cfg.APIURL,
		client: client,
		exec:   newRetryExecutor(retry),
	}
}

func (s *ideogramService) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &ImageGenerationError{Message: "empty prompt"}
	}

	body, err := json.Marshal(transfer.IdeogramRequest{
		ImageRequest: transfer.IdeogramImageRequest{
			Prompt:            prompt,
			AspectRatio:       "ASPECT_10_16",
			Model:             "V_2",
			MagicPromptOption: "AUTO",
		},
	})
	if err != nil {
		return "", &ImageGenerationError{Err: err}
	}

	res, err := doWithRetry(ctx, s.exec, s.client, func(ctx context.Context) (*http.Request, error) {
		req, err := newJSONRequest(ctx, http.MethodPost, s.apiURL, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Api-Key", s.apiKey)
		return req, nil
	})
	if err != nil {
		slog.Info(err.Error())
		return "", &ImageGenerationError{Err: err}
	}

	if res.StatusCode != http.StatusOK {
		return "", &ImageGenerationError{StatusCode: res.StatusCode, Message: string(res.Body)}
	}

	var result transfer.IdeogramResponse
	if err := json.Unmarshal(res.Body, &result); err != nil {
		return "", &ImageGenerationError{Err: errors.Join(errors.New("decode response"), err)}
	}
	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return "", &ImageGenerationError{Message: "no image data in the response"}
	}
	return result.Data[0].URL, nil
}
