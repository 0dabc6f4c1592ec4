package client

// linkRequest is the JSON body for a YouTube link submission.
type linkRequest struct {
	YoutubeLink string `json:"youtubeLink"`
}

type uploadResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusResponse is returned from GET /status/{task_id}. Success is a pointer
// because it is omitted until the task is ready, except for unknown task ids.
type statusResponse struct {
	Ready   bool     `json:"ready"`
	Success *bool    `json:"success,omitempty"`
	Memes   []string `json:"memes,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type memesResponse struct {
	Memes []string `json:"memes"`
}

type captionRequest struct {
	MemeFile string `json:"meme_file"`
	Caption  string `json:"caption"`
	Custom   string `json:"custom"`
}

type captionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
