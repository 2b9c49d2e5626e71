package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/repository"
	"github.com/maheshrc27/postcadence/internal/service"
	"github.com/maheshrc27/postcadence/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct{ channel string }

func (p stubPublisher) Channel() string { return p.channel }
func (p stubPublisher) Accounts() []string { return []string{"main"} }

func (p stubPublisher) Publish(_ context.Context, _, _ string, accounts []string) []models.AccountOutcome {
	out := make([]models.AccountOutcome, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, models.SuccessOutcome(a, "native-"+a))
	}
	return out
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string) (string, error) {
	return "https://img.example/gen.png", nil
}

type stubStorage struct{}

func (stubStorage) Put(context.Context, []byte, string) (string, error) {
	return "https://media.example/media/1.png", nil
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (e *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type testServer struct {
	app  *fiber.App
	repo *repository.MemoryPostRepository
	enq  *recordingEnqueuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := repository.NewMemoryPostRepository()
	publishers := []service.ChannelPublisher{stubPublisher{channel: service.ChannelLinkedIn}, stubPublisher{channel: service.ChannelTwitter}}
	scheduler := service.NewSlotScheduler([]int{9, 16, 20}, time.UTC, 365)

	ps := service.NewPostService(repo, scheduler, nil, stubStorage{}, publishers, nil)
	pub := service.NewPublicationService(repo, service.NewMediaResolver(stubGenerator{}), publishers, nil, nil, false)
	enq := &recordingEnqueuer{}
	h := NewPostHandler(ps, pub, enq)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/posts", h.CreatePost)
	app.Get("/api/posts", h.ListPosts)
	app.Get("/api/posts/:id", h.PostInfo)
	app.Patch("/api/posts/:id", h.UpdatePost)
	app.Delete("/api/posts/:id", h.RemovePost)
	app.Post("/api/posts/:id/publish", h.PublishPost)
	app.Post("/api/uploads", h.UploadImage)

	return &testServer{app: app, repo: repo, enq: enq}
}

func (s *testServer) do(t *testing.T, method, path, contentType string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (s *testServer) createPost(t *testing.T, body string) *models.Post {
	t.Helper()
	resp, data := s.do(t, http.MethodPost, "/api/posts", fiber.MIMEApplicationJSON, strings.NewReader(body))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var scheduled transfer.PostScheduled
	require.NoError(t, json.Unmarshal(data, &scheduled))
	return scheduled.Post
}

func TestCreateAndListPosts(t *testing.T) {
	s := newTestServer(t)

	first := s.createPost(t, `{"title":"Launch","text":"We are live"}`)
	second := s.createPost(t, `{"text":"Second","targets":[{"channel":"twitter"}]}`)

	assert.Equal(t, models.PostStatusScheduled, first.Status)
	assert.True(t, second.ScheduledTime.After(first.ScheduledTime))
	assert.Equal(t, []models.ChannelTarget{{Channel: "twitter", Accounts: []string{"main"}}}, second.Targets)
	require.Len(t, s.enq.tasks, 2)

	resp, data := s.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var posts []models.Post
	require.NoError(t, json.Unmarshal(data, &posts))
	require.Len(t, posts, 2)
	assert.Equal(t, first.ID, posts[0].ID)
}

func TestCreatePostMultipart(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("text", "with an image"))
	require.NoError(t, w.WriteField("targets", `[{"channel":"linkedin","accounts":["main"]}]`))
	part, err := w.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	part.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D})
	require.NoError(t, w.Close())

	resp, data := s.do(t, http.MethodPost, "/api/posts", w.FormDataContentType(), &body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var scheduled transfer.PostScheduled
	require.NoError(t, json.Unmarshal(data, &scheduled))
	assert.Equal(t, "https://media.example/media/1.png", scheduled.Post.ImageURL)
}

func TestCreatePostValidation(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/api/posts", fiber.MIMEApplicationJSON, strings.NewReader(`{"text":""}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/posts", fiber.MIMEApplicationJSON, strings.NewReader(`{"text":"x","targets":[{"channel":"fax"}]}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/posts", fiber.MIMEApplicationJSON, strings.NewReader(`{broken`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, s.enq.tasks)
}

func TestUpdateRemoveAndPublish(t *testing.T) {
	s := newTestServer(t)
	post := s.createPost(t, `{"text":"draft"}`)

	resp, data := s.do(t, http.MethodPatch, "/api/posts/"+post.ID, fiber.MIMEApplicationJSON, strings.NewReader(`{"text":"final"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var updated models.Post
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, "final", updated.Text)

	resp, data = s.do(t, http.MethodPost, "/api/posts/"+post.ID+"/publish", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var summary models.PublishSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, models.PostStatusSuccess, summary.Status)
	assert.Equal(t, "https://img.example/gen.png", summary.Results.ImageURL)

	resp, data = s.do(t, http.MethodPost, "/api/posts/"+post.ID+"/publish", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.True(t, summary.Skipped)

	resp, _ = s.do(t, http.MethodPatch, "/api/posts/"+post.ID, fiber.MIMEApplicationJSON, strings.NewReader(`{"text":"too late"}`))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/posts/"+post.ID, "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	other := s.createPost(t, `{"text":"remove me"}`)
	resp, _ = s.do(t, http.MethodDelete, "/api/posts/"+other.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/posts/"+other.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/posts/missing/publish", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	part.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D})
	require.NoError(t, w.Close())

	resp, data := s.do(t, http.MethodPost, "/api/uploads", w.FormDataContentType(), &body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	assert.JSONEq(t, `{"url":"https://media.example/media/1.png"}`, string(data))

	resp, _ = s.do(t, http.MethodPost, "/api/uploads", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
