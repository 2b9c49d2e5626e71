package service

import (
	"context"
	"errors"
	"sync"

	"github.com/maheshrc27/postcadence/internal/models"
)

type fakeGenerator struct {
	mu      sync.Mutex
	url     string
	err     error
	panics  bool
	calls   int
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.panics {
		panic("generator exploded")
	}
	if g.err != nil {
		return "", g.err
	}
	return g.url, nil
}

// fakePublisher fails the accounts listed in failing and panics when panics
// is set.
type fakePublisher struct {
	mu       sync.Mutex
	channel  string
	accounts []string
	failing  map[string]bool
	panics   bool
	calls    [][]string
	texts    []string
	images   []string
}

func (p *fakePublisher) Channel() string { return p.channel }

func (p *fakePublisher) Accounts() []string { return p.accounts }

func (p *fakePublisher) Publish(ctx context.Context, text, imageURL string, accounts []string) []models.AccountOutcome {
	p.mu.Lock()
	p.calls = append(p.calls, accounts)
	p.texts = append(p.texts, text)
	p.images = append(p.images, imageURL)
	p.mu.Unlock()

	if p.panics {
		panic("publisher exploded")
	}
	return publishEach(ctx, p.channel, accounts, false, func(_ context.Context, account string) (string, error) {
		if p.failing[account] {
			return "", errors.New("rejected by platform")
		}
		return p.channel + "-" + account, nil
	})
}

func (p *fakePublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeStorage struct {
	url         string
	err         error
	contentType string
	data        []byte
}

func (s *fakeStorage) Put(_ context.Context, data []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.data = data
	s.contentType = contentType
	return s.url, nil
}

// pngBytes is a minimal PNG header, enough for content sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R', 0, 0, 0, 1}
