package validations

import (
	"context"
	"strings"

	"github.com/AzielCF/az-collab/collab/domain/identity"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidateCreateIdentity(ctx context.Context, request identity.CreateIdentityRequest) error {
	request.ID = strings.TrimSpace(request.ID)
	request.DisplayName = strings.TrimSpace(request.DisplayName)

	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ID, validation.Required, validation.Length(1, 128), validation.Match(resourcePartPattern)),
		validation.Field(&request.DisplayName, validation.Required, validation.RuneLength(1, 100)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
