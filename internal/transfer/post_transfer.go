package transfer

import "github.com/maheshrc27/postcadence/internal/models"

type PostCreation struct {
	Title       string                 `json:"title" form:"title"`
	Text        string                 `json:"text" form:"text"`
	ImagePrompt string                 `json:"image_prompt" form:"image_prompt"`
	ImageURL    string                 `json:"image_url" form:"image_url"`
	Targets     []models.ChannelTarget `json:"targets" form:"-"`
}

type PostScheduled struct {
	Post  *models.Post `json:"post"`
	Delay string       `json:"publishes_in"`
}

type UploadResult struct {
	URL string `json:"url"`
}

type DueRunResult struct {
	RanAt   string                  `json:"ran_at"`
	Results []models.PublishSummary `json:"results"`
}
