package validations

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var room = envelope.NewRoom("issue", "42")

func build(t *testing.T, kind envelope.Kind, payload any) envelope.Envelope {
	t.Helper()
	env, err := envelope.New(kind, room, "u-1", payload, time.Now())
	require.NoError(t, err)
	return env
}

func TestValidateRoom(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, ValidateRoom(ctx, room))
	assert.Error(t, ValidateRoom(ctx, envelope.NewRoom("", "42")))
	assert.Error(t, ValidateRoom(ctx, envelope.NewRoom("issue", "a/b")))
}

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID(context.Background(), "u-1"))
	assert.Error(t, ValidateUserID(context.Background(), ""))
}

func TestValidateInboundEnvelope(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateInboundEnvelope(ctx, build(t, envelope.KindJoinRoom, nil)))
	assert.NoError(t, ValidateInboundEnvelope(ctx, build(t, envelope.KindUserTyping, nil)))
	assert.NoError(t, ValidateInboundEnvelope(ctx, build(t, envelope.KindCommentAdded, envelope.CommentPayload{CommentID: "c-1", Body: "hi"})))
	assert.NoError(t, ValidateInboundEnvelope(ctx, build(t, envelope.KindActivityLogged, envelope.ActivityPayload{Action: envelope.ActionResolved})))

	err := ValidateInboundEnvelope(ctx, build(t, envelope.KindCommentAdded, envelope.CommentPayload{CommentID: "c-1"}))
	var verr pkgError.ValidationError
	assert.ErrorAs(t, err, &verr)

	assert.Error(t, ValidateInboundEnvelope(ctx, build(t, envelope.KindCommentAdded, nil)))
	assert.Error(t, ValidateInboundEnvelope(ctx, build(t, envelope.KindCommentAdded, envelope.CommentPayload{CommentID: "c", Body: strings.Repeat("x", 10001)})))
	assert.Error(t, ValidateInboundEnvelope(ctx, build(t, envelope.KindActivityLogged, envelope.ActivityPayload{})))
	assert.Error(t, ValidateInboundEnvelope(ctx, build(t, envelope.Kind("bogus"), nil)))
}

func TestValidateCreateIdentity(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, ValidateCreateIdentity(ctx, identity.CreateIdentityRequest{ID: "u-1", DisplayName: "Björn Bergström"}))
	assert.Error(t, ValidateCreateIdentity(ctx, identity.CreateIdentityRequest{ID: "u-1", DisplayName: "   "}))
	assert.Error(t, ValidateCreateIdentity(ctx, identity.CreateIdentityRequest{ID: "", DisplayName: "Ana"}))
}
