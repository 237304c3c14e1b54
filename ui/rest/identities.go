package rest

import (
	"errors"
	"strings"

	"github.com/AzielCF/az-collab/collab/domain/identity"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/AzielCF/az-collab/pkg/utils"
	"github.com/AzielCF/az-collab/validations"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Identity struct {
	Repo identity.IIdentityRepository
}

func InitRestIdentity(app fiber.Router, repo identity.IIdentityRepository) Identity {
	rest := Identity{Repo: repo}
	app.Get("/identities", rest.ListIdentities)
	app.Post("/identities", rest.CreateIdentity)
	app.Get("/identities/:id", rest.GetIdentity)
	return rest
}

func (h *Identity) ListIdentities(c *fiber.Ctx) error {
	list, err := h.Repo.List(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(utils.ResponseData{
			Status:  500,
			Code:    "INTERNAL_SERVER_ERROR",
			Message: err.Error(),
		})
	}
	if list == nil {
		list = []identity.Identity{}
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Identities fetched",
		Results: list,
	})
}

func (h *Identity) GetIdentity(c *fiber.Ctx) error {
	ident, err := h.Repo.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		var notFound pkgError.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(404).JSON(utils.ResponseData{
				Status:  404,
				Code:    notFound.ErrCode(),
				Message: notFound.Error(),
			})
		}
		return c.Status(500).JSON(utils.ResponseData{
			Status:  500,
			Code:    "INTERNAL_SERVER_ERROR",
			Message: err.Error(),
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Identity fetched",
		Results: ident,
	})
}

func (h *Identity) CreateIdentity(c *fiber.Ctx) error {
	var req identity.CreateIdentityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}
	if err := validations.ValidateCreateIdentity(c.UserContext(), req); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
	}

	ident := &identity.Identity{
		ID:          strings.TrimSpace(req.ID),
		DisplayName: strings.TrimSpace(req.DisplayName),
	}
	if err := h.Repo.Save(c.UserContext(), ident); err != nil {
		return c.Status(500).JSON(utils.ResponseData{
			Status:  500,
			Code:    "INTERNAL_SERVER_ERROR",
			Message: err.Error(),
		})
	}
	logrus.WithField("identity_id", ident.ID).Info("[DIRECTORY] Identity registered")

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Identity saved",
		Results: ident,
	})
}
