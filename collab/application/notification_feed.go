package application

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	domainNotification "github.com/AzielCF/az-collab/collab/domain/notification"
	"github.com/sirupsen/logrus"
)

const previewRunes = 140

// NotificationFeed turns inbound domain envelopes into notifications for the
// local identity. Events the local identity authored never notify it.
type NotificationFeed struct {
	self      identity.Identity
	directory identity.Directory
	center    *NotificationCenter
}

func NewNotificationFeed(self identity.Identity, directory identity.Directory, center *NotificationCenter) *NotificationFeed {
	return &NotificationFeed{self: self, directory: directory, center: center}
}

// Handle admits env into the center when it concerns someone else's action.
// It reports the stored notification, if any.
func (f *NotificationFeed) Handle(env envelope.Envelope) (domainNotification.Notification, bool) {
	if f.center == nil {
		return domainNotification.Notification{}, false
	}
	draft, ok := f.draftFor(env)
	if !ok {
		return domainNotification.Notification{}, false
	}
	draft.ResourceType = env.ResourceType
	draft.ResourceID = env.ResourceID
	draft.SourceKey = sourceKey(env)
	return f.center.Add(draft), true
}

// sourceKey identifies the event behind env. Additions, deletions and
// activity entries happen once per entity, so their entity id is the key;
// an edit can repeat, so it is keyed by the envelope id.
func sourceKey(env envelope.Envelope) string {
	var entity string
	switch env.Kind {
	case envelope.KindCommentAdded, envelope.KindCommentDeleted:
		var p envelope.CommentPayload
		if env.DecodePayload(&p) == nil {
			entity = p.CommentID
		}
	case envelope.KindActivityLogged:
		var p envelope.ActivityPayload
		if env.DecodePayload(&p) == nil {
			entity = p.ActivityID
		}
	}
	if entity != "" {
		return fmt.Sprintf("%s|%s|%s", env.Kind, env.Room().Key(), entity)
	}
	if env.ID != "" {
		return "envelope|" + env.ID
	}
	return ""
}

func (f *NotificationFeed) draftFor(env envelope.Envelope) (domainNotification.Draft, bool) {
	switch env.Kind {
	case envelope.KindCommentAdded, envelope.KindCommentUpdated, envelope.KindCommentDeleted:
		var p envelope.CommentPayload
		if err := env.DecodePayload(&p); err != nil {
			logrus.WithError(err).Warn("[NOTIFY] Ignoring comment envelope")
			return domainNotification.Draft{}, false
		}
		author := firstNonEmpty(p.AuthorID, env.UserID)
		if author == "" || author == f.self.ID {
			return domainNotification.Draft{}, false
		}
		name := firstNonEmpty(p.AuthorName, f.displayName(author))
		return f.commentDraft(env.Kind, p, name), true

	case envelope.KindActivityLogged:
		var p envelope.ActivityPayload
		if err := env.DecodePayload(&p); err != nil {
			logrus.WithError(err).Warn("[NOTIFY] Ignoring activity envelope")
			return domainNotification.Draft{}, false
		}
		actor := firstNonEmpty(p.ActorID, env.UserID)
		if actor == f.self.ID {
			return domainNotification.Draft{}, false
		}
		name := firstNonEmpty(p.ActorName, f.displayName(actor), "System")
		return activityDraft(p, name), true
	}
	return domainNotification.Draft{}, false
}

func (f *NotificationFeed) commentDraft(kind envelope.Kind, p envelope.CommentPayload, author string) domainNotification.Draft {
	switch kind {
	case envelope.KindCommentUpdated:
		return domainNotification.Draft{
			Kind:       domainNotification.KindCommentUpdated,
			Title:      fmt.Sprintf("%s edited a comment", author),
			Message:    preview(p.Body),
			AuthorName: author,
		}
	case envelope.KindCommentDeleted:
		return domainNotification.Draft{
			Kind:       domainNotification.KindCommentDeleted,
			Title:      fmt.Sprintf("%s deleted a comment", author),
			AuthorName: author,
		}
	}

	if f.mentionsSelf(p) {
		return domainNotification.Draft{
			Kind:       domainNotification.KindMention,
			Title:      fmt.Sprintf("%s mentioned you", author),
			Message:    preview(p.Body),
			AuthorName: author,
		}
	}
	return domainNotification.Draft{
		Kind:       domainNotification.KindComment,
		Title:      fmt.Sprintf("New comment from %s", author),
		Message:    preview(p.Body),
		AuthorName: author,
	}
}

// mentionsSelf trusts the sender's resolved mentions and only re-extracts
// from the body when the sender attached none.
func (f *NotificationFeed) mentionsSelf(p envelope.CommentPayload) bool {
	if p.Mentions != nil {
		for _, m := range p.Mentions {
			if m.IdentityID == f.self.ID {
				return true
			}
		}
		return false
	}
	if f.directory == nil {
		return false
	}
	for _, m := range ExtractMentions(p.Body, f.directory.Identities()) {
		if m.IdentityID == f.self.ID {
			return true
		}
	}
	return false
}

func activityDraft(p envelope.ActivityPayload, actor string) domainNotification.Draft {
	d := domainNotification.Draft{
		Kind:       domainNotification.KindActivity,
		Message:    p.Detail,
		AuthorName: actor,
	}
	switch p.Action {
	case envelope.ActionResolved:
		d.Kind = domainNotification.KindResolution
		d.Title = fmt.Sprintf("%s resolved this item", actor)
	case envelope.ActionReopened:
		d.Kind = domainNotification.KindResolution
		d.Title = fmt.Sprintf("%s reopened this item", actor)
	case envelope.ActionStatusChanged:
		d.Title = fmt.Sprintf("%s changed the status", actor)
	case envelope.ActionAssigned:
		d.Title = fmt.Sprintf("%s changed the assignee", actor)
	case envelope.ActionInfo:
		d.Title = fmt.Sprintf("Update from %s", actor)
		d.Priority = domainNotification.PriorityLow
	default:
		d.Title = fmt.Sprintf("%s %s", actor, strings.ReplaceAll(p.Action, "_", " "))
	}
	return d
}

func (f *NotificationFeed) displayName(id string) string {
	if id == "" {
		return ""
	}
	if f.directory == nil {
		return id
	}
	return f.directory.ResolveDisplayName(id)
}

func preview(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= previewRunes {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewRunes-1]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
