package server

// DownloadRequest is the body of POST /download.
type DownloadRequest struct {
	URL            string `json:"url" binding:"required"`
	Quality        string `json:"quality,omitempty"`
	Format         string `json:"format,omitempty"`
	AudioOnly      bool   `json:"audio_only,omitempty"`
	DirectDownload bool   `json:"direct_download,omitempty"`
}

// DownloadAccepted is the 202 response to a submission.
type DownloadAccepted struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
