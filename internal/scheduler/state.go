package scheduler

import "time"

// Phase is the position of a market's loop in its round lifecycle.
type Phase string

const (
	PhaseCheckingEndpoint Phase = "checking_endpoint"
	PhaseWaitingForLock   Phase = "waiting_for_lock"
	PhaseExecuting        Phase = "executing"
)

// Snapshot is the last published state of one market watcher, read by the
// HTTP API. Watchers publish a fresh snapshot on every transition; readers
// never block a watcher.
type Snapshot struct {
	Market   string `json:"market"`
	Network  string `json:"network"`
	Phase    Phase  `json:"phase"`
	Epoch    string `json:"epoch,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	NextExecution time.Time `json:"nextExecution,omitempty"`
	LastTxHash    string    `json:"lastTxHash,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
	Failures      int       `json:"consecutiveFailures"`

	UpdatedAt time.Time `json:"updatedAt"`
}
