package envelope

// CommentPayload is carried by comment_added, comment_updated and
// comment_deleted.
type CommentPayload struct {
	CommentID  string        `json:"commentId"`
	Body       string        `json:"body,omitempty"`
	AuthorID   string        `json:"authorId"`
	AuthorName string        `json:"authorName,omitempty"`
	Mentions   []MentionData `json:"mentions,omitempty"`
}

// MentionData is a resolved mention as it travels on the wire.
type MentionData struct {
	IdentityID  string `json:"identityId"`
	DisplayName string `json:"displayName"`
}

// Activity actions.
const (
	ActionResolved      = "resolved"
	ActionReopened      = "reopened"
	ActionStatusChanged = "status_changed"
	ActionAssigned      = "assigned"
	ActionInfo          = "info"
)

// ActivityPayload is carried by activity_logged.
type ActivityPayload struct {
	ActivityID string `json:"activityId"`
	ActorID    string `json:"actorId"`
	ActorName  string `json:"actorName,omitempty"`
	Action     string `json:"action"`
	Detail     string `json:"detail,omitempty"`
}

// IsResolution reports whether the activity closes or reopens the resource.
func (p ActivityPayload) IsResolution() bool {
	return p.Action == ActionResolved || p.Action == ActionReopened
}

// TypingPayload is carried by user_typing.
type TypingPayload struct {
	DisplayName string `json:"displayName,omitempty"`
}

// PresencePayload is carried by user_joined and user_left.
type PresencePayload struct {
	DisplayName string `json:"displayName,omitempty"`
}

// RosterPayload is carried by roster_snapshot.
type RosterPayload struct {
	UserIDs []string `json:"userIds"`
}
