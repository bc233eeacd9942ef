package upload

import "time"

// Phase is a step of one upload attempt:
// idle -> checking -> {reusing | uploading} -> {success | error} -> idle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseChecking  Phase = "checking"
	PhaseReusing   Phase = "reusing"
	PhaseUploading Phase = "uploading"
	PhaseSuccess   Phase = "success"
	PhaseError     Phase = "error"
)

// Terminal reports whether the phase ends an attempt.
func (p Phase) Terminal() bool { return p == PhaseSuccess || p == PhaseError }

// Status is the user-visible state of the current upload for a section.
type Status struct {
	Section string    `json:"section"`
	Attempt uint64    `json:"attempt"`
	ItemID  string    `json:"itemId,omitempty"`
	Phase   Phase     `json:"phase"`
	Message string    `json:"message,omitempty"`
	URL     string    `json:"url,omitempty"`
	Reused  bool      `json:"reused,omitempty"`
	At      time.Time `json:"at"`
}

const (
	msgChecking  = "Checking for duplicates..."
	msgReusing   = "Duplicate found, reusing existing file"
	msgReused    = "Upload complete (reused existing file)"
	msgUploading = "Uploading..."
	msgUploaded  = "Upload complete"
	msgFailed    = "Upload failed, please retry"
)
