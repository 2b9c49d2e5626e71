package models

import "time"

type PostStatus string

const (
	PostStatusScheduled      PostStatus = "scheduled"
	PostStatusSuccess        PostStatus = "success"
	PostStatusPartialSuccess PostStatus = "partial_success"
	PostStatusError          PostStatus = "error"
)

// Terminal reports whether the status can no longer change.
func (s PostStatus) Terminal() bool {
	return s != PostStatusScheduled
}

// ChannelTarget names the accounts of one channel a post is destined for.
type ChannelTarget struct {
	Channel  string   `json:"channel"`
	Accounts []string `json:"accounts"`
}

type Post struct {
	ID            string              `db:"id" json:"id"`
	Title         string              `db:"title" json:"title"`
	Text          string              `db:"text" json:"text"`
	ImagePrompt   string              `db:"image_prompt" json:"image_prompt,omitempty"`
	ImageURL      string              `db:"image_url" json:"image_url,omitempty"`
	ScheduledTime time.Time           `db:"scheduled_time" json:"scheduled_time"`
	Status        PostStatus          `db:"status" json:"status"`
	Targets       []ChannelTarget     `db:"targets" json:"targets"`
	Results       *PublicationResults `db:"publication_results" json:"publication_results,omitempty"`
	PublishedAt   *time.Time          `db:"published_at" json:"published_at,omitempty"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

// PostUpdate is a partial-field merge; nil fields are left untouched.
type PostUpdate struct {
	Title       *string `json:"title,omitempty"`
	Text        *string `json:"text,omitempty"`
	ImagePrompt *string `json:"image_prompt,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

// Empty reports whether the update carries no field.
func (u *PostUpdate) Empty() bool {
	return u == nil || (u.Title == nil && u.Text == nil && u.ImagePrompt == nil && u.ImageURL == nil)
}
