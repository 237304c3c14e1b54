package notification

import "time"

type Kind string

const (
	KindMention        Kind = "mention"
	KindComment        Kind = "comment"
	KindCommentUpdated Kind = "comment_updated"
	KindCommentDeleted Kind = "comment_deleted"
	KindActivity       Kind = "activity"
	KindResolution     Kind = "resolution"
	KindConnection     Kind = "connection"
)

// Priority only affects presentation. Every notification is delivered the
// same way regardless of it.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// PriorityFor classifies a notification kind.
func PriorityFor(kind Kind) Priority {
	switch kind {
	case KindMention, KindResolution, KindConnection:
		return PriorityHigh
	case KindComment, KindActivity:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// Rank orders priorities for display, higher first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

type Notification struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	ResourceType string    `json:"resourceType,omitempty"`
	ResourceID   string    `json:"resourceId,omitempty"`
	AuthorName   string    `json:"authorName,omitempty"`
	Priority     Priority  `json:"priority"`
	CreatedAt    time.Time `json:"createdAt"`
	Read         bool      `json:"read"`
	// SourceKey names the event the notification came from. The center keeps
	// at most one notification per non-empty key.
	SourceKey string `json:"sourceKey,omitempty"`
}

// Draft is a notification before the center assigns id and timestamp. An
// empty Priority is derived from Kind.
type Draft struct {
	Kind         Kind
	Title        string
	Message      string
	ResourceType string
	ResourceID   string
	AuthorName   string
	Priority     Priority
	SourceKey    string
}

// Alerter raises an OS level alert for a notification.
type Alerter interface {
	Alert(title, message string) error
}
