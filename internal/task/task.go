// Package task defines the download task model shared by the scheduler,
// the stores and the HTTP surface.
package task

import "time"

// State is the lifecycle state of a download task.
type State string

const (
	StateQueued      State = "queued"
	StateDownloading State = "downloading"
	StateUploading   State = "uploading"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

func (s State) String() string { return string(s) }

// IsActive reports whether the task currently holds an admission slot.
func (s State) IsActive() bool {
	return s == StateDownloading || s == StateUploading
}

// IsTerminal reports whether no further transitions may occur.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Options are the caller-supplied download preferences.
type Options struct {
	// Quality is "best", "worst" or a raw extractor format selector.
	Quality string `json:"quality"`
	// Format is the preferred container extension (mp4, webm, ...).
	Format string `json:"format"`
	// AudioOnly extracts the audio track instead of the full video.
	AudioOnly bool `json:"audio_only"`
	// DirectDownload skips every extractor and fetches the URL as-is.
	// There is no fallback when it fails.
	DirectDownload bool `json:"direct_download"`
}

// Task is the unit of work. It is owned exclusively by the worker executing
// it; everyone else sees value copies taken through the store.
type Task struct {
	ID      string  `json:"task_id"`
	URL     string  `json:"url"`
	Options Options `json:"options"`

	State State `json:"status"`

	// Progress is a percentage, meaningful only while the state is
	// downloading or uploading. It never decreases within one run.
	Progress float64 `json:"progress"`

	Filename    string `json:"filename,omitempty"`
	ObjectName  string `json:"object_name,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Size        int64  `json:"file_size,omitempty"`
	Error       string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
