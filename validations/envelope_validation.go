package validations

import (
	"context"
	"fmt"
	"regexp"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	resourcePartPattern = regexp.MustCompile(`^[A-Za-z0-9_.:\-]+$`)
	maxCommentBodyRunes = 10000
)

// ValidateRoom checks the path parameters of a room route.
func ValidateRoom(ctx context.Context, room envelope.Room) error {
	err := validation.ValidateStructWithContext(ctx, &room,
		validation.Field(&room.ResourceType, validation.Required, validation.Length(1, 64), validation.Match(resourcePartPattern)),
		validation.Field(&room.ResourceID, validation.Required, validation.Length(1, 128), validation.Match(resourcePartPattern)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateUserID(ctx context.Context, userID string) error {
	err := validation.ValidateWithContext(ctx, userID, validation.Required, validation.Length(1, 128))
	if err != nil {
		return pkgError.ValidationError(fmt.Sprintf("user_id: %v", err))
	}
	return nil
}

// ValidateInboundEnvelope checks a decoded client frame before the hub acts on it.
func ValidateInboundEnvelope(ctx context.Context, env envelope.Envelope) error {
	err := validation.ValidateStructWithContext(ctx, &env,
		validation.Field(&env.Kind, validation.Required, validation.By(func(v interface{}) error {
			if k, _ := v.(envelope.Kind); !k.Valid() {
				return validation.NewError("validation_kind_unknown", "unknown envelope kind")
			}
			return nil
		})),
		validation.Field(&env.ResourceType, validation.Required),
		validation.Field(&env.ResourceID, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	switch env.Kind {
	case envelope.KindCommentAdded, envelope.KindCommentUpdated:
		var p envelope.CommentPayload
		if err := env.DecodePayload(&p); err != nil {
			return pkgError.ValidationError(err.Error())
		}
		err = validation.ValidateStructWithContext(ctx, &p,
			validation.Field(&p.CommentID, validation.Required),
			validation.Field(&p.Body, validation.Required, validation.RuneLength(1, maxCommentBodyRunes)),
		)
	case envelope.KindCommentDeleted:
		var p envelope.CommentPayload
		if err := env.DecodePayload(&p); err != nil {
			return pkgError.ValidationError(err.Error())
		}
		err = validation.ValidateStructWithContext(ctx, &p,
			validation.Field(&p.CommentID, validation.Required),
		)
	case envelope.KindActivityLogged:
		var p envelope.ActivityPayload
		if err := env.DecodePayload(&p); err != nil {
			return pkgError.ValidationError(err.Error())
		}
		err = validation.ValidateStructWithContext(ctx, &p,
			validation.Field(&p.Action, validation.Required),
		)
	}
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
