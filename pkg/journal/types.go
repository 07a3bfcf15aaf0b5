// pkg/journal/types.go

package journal

import "time"

const (
	DefaultDir = "/var/lib/certiwipe/journal"
	ActiveDir  = "active"
	ArchiveDir = "archive"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether an entry in this status belongs in the archive.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StageRecord is one orchestrator stage transition.
type StageRecord struct {
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Entry is the durable record of one wipe operation. An entry still in
// the active directory after its process exited marks an interrupted wipe.
type Entry struct {
	ID            string        `json:"id"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	Device        string        `json:"device"`
	Method        string        `json:"method"`
	Passes        int           `json:"passes"`
	Status        Status        `json:"status"`
	Stages        []StageRecord `json:"stages"`
	User          string        `json:"user"`
	Host          string        `json:"host"`
	PID           int           `json:"pid"`
	Error         string        `json:"error,omitempty"`
	CertificateID string        `json:"certificate_id,omitempty"`
	Checksum      string        `json:"checksum"`
}

// LastStage returns the most recent recorded stage, or "" if none.
func (e *Entry) LastStage() string {
	if len(e.Stages) == 0 {
		return ""
	}
	return e.Stages[len(e.Stages)-1].Stage
}
