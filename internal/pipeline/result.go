// Package pipeline orchestrates detection processing: classification,
// playbook assignment and alert fan-out, plus the retry poller that
// sweeps unprocessed detections.
package pipeline

import "github.com/snakeguard/snakeguard-go/internal/notify"

// Result reports the outcome of one processing run.
type Result struct {
	DetectionID             uint           `json:"detectionId"`
	RunID                   string         `json:"runId"`
	Success                 bool           `json:"success"`
	AlreadyProcessed        bool           `json:"alreadyProcessed"`
	Skipped                 bool           `json:"skipped"`
	ClassificationCompleted bool           `json:"classificationCompleted"`
	PlaybookAssigned        bool           `json:"playbookAssigned"`
	NotificationsSent       bool           `json:"notificationsSent"`
	Notifications           *notify.Result `json:"notifications,omitempty"`
	Errors                  []string       `json:"errors,omitempty"`
	ResponseTimeMs          int64          `json:"responseTimeMs"`
}

// outcome buckets a result for metrics labelling.
func (r *Result) outcome() string {
	switch {
	case r.AlreadyProcessed:
		return "already_processed"
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}

// ItemOutcome is one detection's entry in a batch sweep.
type ItemOutcome struct {
	DetectionID uint   `json:"detectionId"`
	Success     bool   `json:"success"`
	Skipped     bool   `json:"skipped"`
	Error       string `json:"error,omitempty"`
}

// BatchResult reports one retry poller sweep.
type BatchResult struct {
	Found     int           `json:"found"`
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Items     []ItemOutcome `json:"items"`
}
