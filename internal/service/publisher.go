package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/postcadence/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	ChannelLinkedIn = "linkedin"
	ChannelTwitter  = "twitter"
)

// ChannelPublisher posts to every requested account of one channel. Failures
// never escape as errors: each account yields exactly one outcome, in the
// order the accounts were given.
type ChannelPublisher interface {
	Channel() string
	Accounts() []string
	Publish(ctx context.Context, text, imageURL string, accounts []string) []models.AccountOutcome
}

type publishFunc func(ctx context.Context, account string) (string, error)

// publishEach runs fn for every account and records one outcome per account.
// A panicking account is reported as an error outcome.
func publishEach(ctx context.Context, channel string, accounts []string, concurrent bool, fn publishFunc) []models.AccountOutcome {
	outcomes := make([]models.AccountOutcome, len(accounts))

	run := func(i int) {
		account := accounts[i]
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				slog.Error("publisher panicked", "channel", channel, "account", account, "error", err)
				outcomes[i] = models.ErrorOutcome(account, err)
			}
		}()

		nativeID, err := fn(ctx, account)
		if err != nil {
			slog.Info(err.Error(), "channel", channel, "account", account)
			outcomes[i] = models.ErrorOutcome(account, err)
			return
		}
		outcomes[i] = models.SuccessOutcome(account, nativeID)
	}

	if !concurrent || len(accounts) < 2 {
		for i := range accounts {
			run(i)
		}
		return outcomes
	}

	var g errgroup.Group
	for i := range accounts {
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func unknownAccountError(channel, account string) error {
	return &ChannelPublishError{Channel: channel, Account: account, Step: "credentials", Err: fmt.Errorf("account is not configured")}
}
