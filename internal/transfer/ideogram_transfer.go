package transfer

type IdeogramImageRequest struct {
	Prompt            string `json:"prompt"`
	AspectRatio       string `json:"aspect_ratio"`
	Model             string `json:"model"`
	MagicPromptOption string `json:"magic_prompt_option"`
}

type IdeogramRequest struct {
	ImageRequest IdeogramImageRequest `json:"image_request"`
}

type IdeogramImage struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

type IdeogramResponse struct {
	Created string          `json:"created"`
	Data    []IdeogramImage `json:"data"`
}
