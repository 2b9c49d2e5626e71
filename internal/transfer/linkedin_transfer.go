package transfer

type LinkedInUserInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LinkedInProfile is what a configured token resolves to.
type LinkedInProfile struct {
	Account string `json:"account"`
	URN     string `json:"urn"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

type LinkedInServiceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type LinkedInRegisterUploadRequest struct {
	RegisterUploadRequest struct {
		Recipes              []string                      `json:"recipes"`
		Owner                string                        `json:"owner"`
		ServiceRelationships []LinkedInServiceRelationship `json:"serviceRelationships"`
	} `json:"registerUploadRequest"`
}

type LinkedInRegisterUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			HTTPRequest struct {
				UploadURL string            `json:"uploadUrl"`
				Headers   map[string]string `json:"headers"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

type LinkedInText struct {
	Text string `json:"text"`
}

type LinkedInMedia struct {
	Status      string       `json:"status"`
	Description LinkedInText `json:"description"`
	Media       string       `json:"media"`
}

type LinkedInShareContent struct {
	ShareCommentary    LinkedInText    `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []LinkedInMedia `json:"media,omitempty"`
}

type LinkedInUGCPost struct {
	Author          string `json:"author"`
	LifecycleState  string `json:"lifecycleState"`
	SpecificContent struct {
		ShareContent LinkedInShareContent `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Visibility struct {
		MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
	} `json:"visibility"`
}

type LinkedInUGCPostResponse struct {
	ID string `json:"id"`
}
