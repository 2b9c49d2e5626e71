package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/failsafe-go/failsafe-go"
	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/transfer"
)

const TwitterMaxLength = 280

type twitterService struct {
	apiURL     string
	uploadURL  string
	accounts   map[string]config.TwitterAccount
	order      []string
	fetcher    *ImageFetcher
	exec       failsafe.Executor[*httpResult]
	concurrent bool
	timeout    time.Duration
}

func NewTwitterService(apiURL, uploadURL string, accounts []config.TwitterAccount, fetcher *ImageFetcher, retry HTTPRetryConfig, concurrent bool) ChannelPublisher {
	s := &twitterService{
		apiURL:     strings.TrimRight(apiURL, "/"),
		uploadURL:  strings.TrimRight(uploadURL, "/"),
		accounts:   make(map[string]config.TwitterAccount, len(accounts)),
		fetcher:    fetcher,
		exec:       newRetryExecutor(retry),
		concurrent: concurrent,
		timeout:    time.Minute,
	}
	for _, acc := range accounts {
		s.accounts[acc.Name] = acc
		s.order = append(s.order, acc.Name)
	}
	return s
}

func (s *twitterService) Channel() string { return ChannelTwitter }

func (s *twitterService) Accounts() []string { return append([]string(nil), s.order...) }

func (s *twitterService) Publish(ctx context.Context, text, imageURL string, accounts []string) []models.AccountOutcome {
	content := Truncate(PlainText(text), TwitterMaxLength)

	var image []byte
	var fetchErr error
	if imageURL != "" {
		image, _, fetchErr = s.fetcher.Fetch(ctx, imageURL)
	}

	return publishEach(ctx, ChannelTwitter, accounts, s.concurrent, func(ctx context.Context, name string) (string, error) {
		acc, ok := s.accounts[name]
		if !ok {
			return "", unknownAccountError(ChannelTwitter, name)
		}
		if fetchErr != nil {
			return "", s.stepError(name, "download image", fetchErr)
		}
		return s.publishAccount(ctx, acc, content, image)
	})
}

func (s *twitterService) publishAccount(ctx context.Context, acc config.TwitterAccount, text string, image []byte) (string, error) {
	client := oauth1.NewConfig(acc.APIKey, acc.APISecret).
		Client(ctx, oauth1.NewToken(acc.AccessToken, acc.AccessTokenSecret))
	client.Timeout = s.timeout

	var mediaIDs []string
	if len(image) > 0 {
		id, err := s.uploadMedia(ctx, client, image)
		if err != nil {
			return "", s.stepError(acc.Name, "upload media", err)
		}
		mediaIDs = append(mediaIDs, id)
	}

	id, err := s.createTweet(ctx, client, text, mediaIDs)
	if err != nil {
		return "", s.stepError(acc.Name, "create tweet", err)
	}
	return id, nil
}

func (s *twitterService) uploadMedia(ctx context.Context, client *http.Client, image []byte) (string, error) {
	res, err := doWithRetry(ctx, s.exec, client, func(ctx context.Context) (*http.Request, error) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("media", "image")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(image); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL+"/1.1/media/upload.json", &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return "", unexpectedStatus(res)
	}

	var media transfer.TwitterMediaUploadResponse
	if err := json.Unmarshal(res.Body, &media); err != nil {
		return "", fmt.Errorf("decode media upload: %w", err)
	}
	if media.MediaIDString == "" {
		return "", fmt.Errorf("media upload returned no media id")
	}
	return media.MediaIDString, nil
}

func (s *twitterService) createTweet(ctx context.Context, client *http.Client, text string, mediaIDs []string) (string, error) {
	tweet := transfer.TwitterTweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		tweet.Media = &transfer.TwitterTweetMedia{MediaIDs: mediaIDs}
	}
	payload, err := json.Marshal(tweet)
	if err != nil {
		return "", err
	}

	req, err := newJSONRequest(ctx, http.MethodPost, s.apiURL+"/2/tweets", payload)
	if err != nil {
		return "", err
	}
	res, err := doOnce(client, req)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		var apiErr transfer.TwitterErrorResponse
		if json.Unmarshal(res.Body, &apiErr) == nil && apiErr.Detail != "" {
			return "", fmt.Errorf("status %d: %s", res.StatusCode, apiErr.Detail)
		}
		return "", unexpectedStatus(res)
	}

	var created transfer.TwitterTweetResponse
	if err := json.Unmarshal(res.Body, &created); err != nil {
		return "", fmt.Errorf("decode tweet: %w", err)
	}
	return created.Data.ID, nil
}

func (s *twitterService) stepError(account, step string, err error) error {
	return &ChannelPublishError{Channel: ChannelTwitter, Account: account, Step: step, Err: err}
}
