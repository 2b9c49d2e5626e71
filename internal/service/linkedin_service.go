package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/transfer"
	"golang.org/x/oauth2"
)

const LinkedInMaxLength = 3000

// LinkedInPublisher also resolves the member behind a configured token, so an
// operator can check an account before posts go out.
type LinkedInPublisher interface {
	ChannelPublisher
	Profile(ctx context.Context, account string) (*transfer.LinkedInProfile, error)
}

type linkedInService struct {
	apiURL     string
	accounts   map[string]config.LinkedInAccount
	order      []string
	fetcher    *ImageFetcher
	exec       failsafe.Executor[*httpResult]
	concurrent bool
	timeout    time.Duration
}

func NewLinkedInService(apiURL string, accounts []config.LinkedInAccount, fetcher *ImageFetcher, retry HTTPRetryConfig, concurrent bool) LinkedInPublisher {
	s := &linkedInService{
		apiURL:     strings.TrimRight(apiURL, "/"),
		accounts:   make(map[string]config.LinkedInAccount, len(accounts)),
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

func (s *linkedInService) Channel() string { return ChannelLinkedIn }

func (s *linkedInService) Accounts() []string { return append([]string(nil), s.order...) }

func (s *linkedInService) Publish(ctx context.Context, text, imageURL string, accounts []string) []models.AccountOutcome {
	content := Truncate(PlainText(text), LinkedInMaxLength)

	var image []byte
	var fetchErr error
	if imageURL != "" {
		image, _, fetchErr = s.fetcher.Fetch(ctx, imageURL)
	}

	return publishEach(ctx, ChannelLinkedIn, accounts, s.concurrent, func(ctx context.Context, name string) (string, error) {
		acc, ok := s.accounts[name]
		if !ok {
			return "", unknownAccountError(ChannelLinkedIn, name)
		}
		if fetchErr != nil {
			return "", s.stepError(name, "download image", fetchErr)
		}
		return s.publishAccount(ctx, acc, content, image)
	})
}

func (s *linkedInService) Profile(ctx context.Context, name string) (*transfer.LinkedInProfile, error) {
	acc, ok := s.accounts[name]
	if !ok {
		return nil, fmt.Errorf("linkedin account %q: %w", name, ErrAccountNotFound)
	}

	info, err := s.userInfo(ctx, s.client(ctx, acc))
	if err != nil {
		return nil, s.stepError(name, "userinfo", err)
	}
	return &transfer.LinkedInProfile{
		Account: name,
		URN:     personURN(info.Sub),
		Name:    info.Name,
		Email:   info.Email,
	}, nil
}

func (s *linkedInService) client(ctx context.Context, acc config.LinkedInAccount) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: acc.AccessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = s.timeout
	return client
}

func (s *linkedInService) publishAccount(ctx context.Context, acc config.LinkedInAccount, text string, image []byte) (string, error) {
	client := s.client(ctx, acc)

	info, err := s.userInfo(ctx, client)
	if err != nil {
		return "", s.stepError(acc.Name, "userinfo", err)
	}
	owner := personURN(info.Sub)

	var asset string
	if len(image) > 0 {
		reg, err := s.registerUpload(ctx, client, owner)
		if err != nil {
			return "", s.stepError(acc.Name, "register upload", err)
		}
		uploadURL := reg.Value.UploadMechanism.HTTPRequest.UploadURL
		if reg.Value.Asset == "" || uploadURL == "" {
			return "", s.stepError(acc.Name, "register upload", fmt.Errorf("response is missing asset or upload url"))
		}
		if err := s.uploadImage(ctx, client, uploadURL, image); err != nil {
			return "", s.stepError(acc.Name, "upload image", err)
		}
		asset = reg.Value.Asset
	}

	id, err := s.createPost(ctx, client, owner, text, asset)
	if err != nil {
		return "", s.stepError(acc.Name, "create post", err)
	}
	return id, nil
}

func personURN(sub string) string { return "urn:li:person:" + sub }

func (s *linkedInService) userInfo(ctx context.Context, client *http.Client) (*transfer.LinkedInUserInfo, error) {
	res, err := doWithRetry(ctx, s.exec, client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/v2/userinfo", nil)
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(res)
	}

	var info transfer.LinkedInUserInfo
	if err := json.Unmarshal(res.Body, &info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("userinfo has no subject")
	}
	return &info, nil
}

func (s *linkedInService) registerUpload(ctx context.Context, client *http.Client, owner string) (*transfer.LinkedInRegisterUploadResponse, error) {
	var body transfer.LinkedInRegisterUploadRequest
	body.RegisterUploadRequest.Recipes = []string{"urn:li:digitalmediaRecipe:feedshare-image"}
	body.RegisterUploadRequest.Owner = owner
	body.RegisterUploadRequest.ServiceRelationships = []transfer.LinkedInServiceRelationship{
		{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	res, err := doWithRetry(ctx, s.exec, client, func(ctx context.Context) (*http.Request, error) {
		return newJSONRequest(ctx, http.MethodPost, s.apiURL+"/v2/assets?action=registerUpload", payload)
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(res)
	}

	var reg transfer.LinkedInRegisterUploadResponse
	if err := json.Unmarshal(res.Body, &reg); err != nil {
		return nil, fmt.Errorf("decode register upload: %w", err)
	}
	return &reg, nil
}

func (s *linkedInService) uploadImage(ctx context.Context, client *http.Client, uploadURL string, image []byte) error {
	res, err := doWithRetry(ctx, s.exec, client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(image))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	})
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusCreated && res.StatusCode != http.StatusOK {
		return unexpectedStatus(res)
	}
	return nil
}

// createPost is not retried: a lost response after a successful create would
// publish twice.
func (s *linkedInService) createPost(ctx context.Context, client *http.Client, owner, text, asset string) (string, error) {
	var post transfer.LinkedInUGCPost
	post.Author = owner
	post.LifecycleState = "PUBLISHED"
	post.Visibility.MemberNetworkVisibility = "PUBLIC"
	share := &post.SpecificContent.ShareContent
	share.ShareCommentary.Text = text
	share.ShareMediaCategory = "NONE"
	if asset != "" {
		share.ShareMediaCategory = "IMAGE"
		share.Media = []transfer.LinkedInMedia{{
			Status:      "READY",
			Description: transfer.LinkedInText{Text: Truncate(text, 200)},
			Media:       asset,
		}}
	}

	payload, err := json.Marshal(post)
	if err != nil {
		return "", err
	}

	req, err := newJSONRequest(ctx, http.MethodPost, s.apiURL+"/v2/ugcPosts", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	res, err := doOnce(client, req)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", unexpectedStatus(res)
	}

	var created transfer.LinkedInUGCPostResponse
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &created); err != nil {
			// the id header below still identifies the post
			slog.Info(err.Error(), "step", "ugc post response")
		}
	}
	if created.ID == "" {
		created.ID = res.Header.Get("X-RestLi-Id")
	}
	return created.ID, nil
}

func (s *linkedInService) stepError(account, step string, err error) error {
	return &ChannelPublishError{Channel: ChannelLinkedIn, Account: account, Step: step, Err: err}
}

func unexpectedStatus(res *httpResult) error {
	body := strings.TrimSpace(string(res.Body))
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Errorf("unexpected status %d: %s", res.StatusCode, body)
}
