package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AzielCF/az-collab/collab/domain/identity"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IdentityModel struct {
	ID          string `gorm:"primaryKey;column:id"`
	DisplayName string `gorm:"column:display_name;not null;index"`
}

func (IdentityModel) TableName() string {
	return "collab_identities"
}

type GormIdentityRepository struct {
	db *gorm.DB
}

func NewGormIdentityRepository(db *gorm.DB) *GormIdentityRepository {
	return &GormIdentityRepository{db: db}
}

func (r *GormIdentityRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&IdentityModel{})
}

func (r *GormIdentityRepository) Get(ctx context.Context, id string) (*identity.Identity, error) {
	var m IdentityModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgError.NotFoundError(fmt.Sprintf("identity %s not found", id))
		}
		return nil, err
	}
	return &identity.Identity{ID: m.ID, DisplayName: m.DisplayName}, nil
}

func (r *GormIdentityRepository) List(ctx context.Context) ([]identity.Identity, error) {
	var models []IdentityModel
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]identity.Identity, 0, len(models))
	for _, m := range models {
		out = append(out, identity.Identity{ID: m.ID, DisplayName: m.DisplayName})
	}
	return out, nil
}

// Save upserts ident by id.
func (r *GormIdentityRepository) Save(ctx context.Context, ident *identity.Identity) error {
	m := IdentityModel{ID: strings.TrimSpace(ident.ID), DisplayName: strings.TrimSpace(ident.DisplayName)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"display_name": m.DisplayName}),
	}).Create(&m).Error
}
