package transfer

type TwitterMediaUploadResponse struct {
	MediaID       int64  `json:"media_id"`
	MediaIDString string `json:"media_id_string"`
}

type TwitterTweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type TwitterTweetRequest struct {
	Text  string             `json:"text"`
	Media *TwitterTweetMedia `json:"media,omitempty"`
}

type TwitterTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type TwitterErrorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Status int    `json:"status"`
}
