package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusScripting    Status = "scripting"
	StatusScriptReady  Status = "script_ready"
	StatusSynthesizing Status = "synthesizing"
	StatusAudioReady   Status = "audio_ready"
	StatusComposing    Status = "composing"
	StatusComposed     Status = "composed"
	StatusRendering    Status = "rendering"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusScripting,
	StatusScriptReady,
	StatusSynthesizing,
	StatusAudioReady,
	StatusComposing,
	StatusComposed,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusScripting:    {},
	StatusSynthesizing: {},
	StatusComposing:    {},
	StatusRendering:    {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions return an interrupted processing status to the
// last stable checkpoint so work resumes without repeating earlier stages.
var stageRollbackTransitions = []statusTransition{
	{from: StatusScripting, to: StatusPending},
	{from: StatusSynthesizing, to: StatusScriptReady},
	{from: StatusComposing, to: StatusAudioReady},
	{from: StatusRendering, to: StatusComposed},
}

// HealthSummary aggregates queue counts across the key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Job represents a pipeline job persisted in SQLite. The *JSON fields hold
// serialized stage artifacts; flags on the row record accepted degradation
// so a finished job can report partial failure.
type Job struct {
	ID               int64
	Prompt           string
	Fingerprint      string
	Status           Status
	ConfigJSON       string
	ScriptJSON       string
	SearchTermsJSON  string
	AudioJSON        string
	CaptionsJSON     string
	FootagePlanJSON  string
	BackgroundFile   string
	FinalFile        string
	ReceiptJSON      string
	ErrorMessage     string
	DegradedCaptions bool
	DegradedFootage  bool
	ProgressStage    string
	ProgressPercent  float64
	ProgressMessage  string
	LastHeartbeat    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// PartialFailure reports whether the job finished with an accepted
// degraded artifact.
func (j Job) PartialFailure() bool {
	return j.Status == StatusCompleted && (j.DegradedCaptions || j.DegradedFootage)
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// InitProgress resets progress fields at the start of a stage and clears
// any stale error message.
func (j *Job) InitProgress(stage, message string) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = 0
	j.ErrorMessage = ""
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.ProgressStage = "Failed"
	j.LastHeartbeat = nil
}
