package models

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
)

// AccountOutcome is the normalized result of one publish attempt under one
// account. Platform specific response fields end up in NativeID.
type AccountOutcome struct {
	Account  string        `json:"account"`
	Status   OutcomeStatus `json:"status"`
	NativeID string        `json:"native_id,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (o AccountOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

func SuccessOutcome(account, nativeID string) AccountOutcome {
	return AccountOutcome{Account: account, Status: OutcomeSuccess, NativeID: nativeID}
}

func ErrorOutcome(account string, err error) AccountOutcome {
	return AccountOutcome{Account: account, Status: OutcomeError, Error: err.Error()}
}

// ChannelResult keeps the ordered per-account outcomes of one channel.
type ChannelResult struct {
	Channel  string           `json:"channel"`
	Outcomes []AccountOutcome `json:"outcomes"`
}

// PublicationResults is written once, together with the terminal status.
type PublicationResults struct {
	Channels []ChannelResult `json:"channels"`
	ImageURL string          `json:"image_url,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// PublishSummary is what a single publication attempt reports to its caller.
type PublishSummary struct {
	PostID  string              `json:"post_id"`
	Status  PostStatus          `json:"status"`
	Results *PublicationResults `json:"results,omitempty"`
	Error   string              `json:"error,omitempty"`
	Skipped bool                `json:"skipped,omitempty"`
}

// AggregateStatus classifies a complete outcome set: every account succeeded,
// none did, or a mix. An empty set counts as none.
func AggregateStatus(channels []ChannelResult) PostStatus {
	var succeeded, failed int
	for _, ch := range channels {
		for _, o := range ch.Outcomes {
			if o.Succeeded() {
				succeeded++
			} else {
				failed++
			}
		}
	}

	switch {
	case succeeded == 0:
		return PostStatusError
	case failed == 0:
		return PostStatusSuccess
	default:
		return PostStatusPartialSuccess
	}
}
