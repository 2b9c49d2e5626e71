package service

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type twitterStub struct {
	mu          sync.Mutex
	server      *httptest.Server
	tweets      []transfer.TwitterTweetRequest
	media       [][]byte
	rejectToken string
}

func newTwitterStub(t *testing.T) *twitterStub {
	stub := &twitterStub{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /1.1/media/upload.json", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth "))
		file, _, err := r.FormFile("media")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		stub.mu.Lock()
		stub.media = append(stub.media, data)
		stub.mu.Unlock()
		w.Write([]byte(`{"media_id":42,"media_id_string":"42"}`))
	})
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "))
		if stub.rejectToken != "" && strings.Contains(auth, `oauth_token="`+stub.rejectToken+`"`) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"title":"Forbidden","detail":"You are not permitted to perform this action.","status":403}`))
			return
		}
		var tweet transfer.TwitterTweetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tweet))
		stub.mu.Lock()
		stub.tweets = append(stub.tweets, tweet)
		stub.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1850","text":"ok"}}`))
	})
	mux.HandleFunc("GET /image.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func newTestTwitter(stub *twitterStub) ChannelPublisher {
	retry := HTTPRetryConfig{MaxRetries: 1, BaseDelay: 1, MaxDelay: 1}
	accounts := []config.TwitterAccount{
		{Name: "t1", APIKey: "ck", APISecret: "cs", AccessToken: "at1", AccessTokenSecret: "as1"},
		{Name: "t2", APIKey: "ck", APISecret: "cs", AccessToken: "at2", AccessTokenSecret: "as2"},
	}
	return NewTwitterService(stub.server.URL, stub.server.URL, accounts, NewImageFetcher(stub.server.Client(), retry), retry, false)
}

func TestTwitterPublishWithImage(t *testing.T) {
	stub := newTwitterStub(t)
	svc := newTestTwitter(stub)

	outcomes := svc.Publish(t.Context(), "<p>hello</p><p>world</p>", stub.server.URL+"/image.png", []string{"t1", "t2"})

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.Succeeded(), o.Error)
		assert.Equal(t, "1850", o.NativeID)
	}
	require.Len(t, stub.tweets, 2)
	assert.Equal(t, "hello\nworld", stub.tweets[0].Text)
	require.NotNil(t, stub.tweets[0].Media)
	assert.Equal(t, []string{"42"}, stub.tweets[0].Media.MediaIDs)
	assert.Equal(t, pngBytes, stub.media[0])
}

func TestTwitterFirstAccountFailsSecondIndependent(t *testing.T) {
	stub := newTwitterStub(t)
	stub.rejectToken = "at1"
	svc := newTestTwitter(stub)

	outcomes := svc.Publish(t.Context(), "hello", "", []string{"t1", "t2"})

	require.Len(t, outcomes, 2)
	assert.Equal(t, "t1", outcomes[0].Account)
	assert.False(t, outcomes[0].Succeeded())
	assert.Contains(t, outcomes[0].Error, "not permitted")
	assert.Equal(t, "t2", outcomes[1].Account)
	assert.True(t, outcomes[1].Succeeded())
	require.Len(t, stub.tweets, 1)
	assert.Nil(t, stub.tweets[0].Media)
}

func TestTwitterTruncatesTo280(t *testing.T) {
	stub := newTwitterStub(t)
	svc := newTestTwitter(stub)

	svc.Publish(t.Context(), strings.Repeat("é", 400), "", []string{"t1"})
	require.Len(t, stub.tweets, 1)
	assert.Equal(t, TwitterMaxLength, len([]rune(stub.tweets[0].Text)))
}
