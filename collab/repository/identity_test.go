package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/AzielCF/az-collab/collab/domain/identity"
	"github.com/AzielCF/az-collab/core/config"
	"github.com/AzielCF/az-collab/core/database"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockIdentityRepo struct {
	mock.Mock
}

func (m *mockIdentityRepo) Get(ctx context.Context, id string) (*identity.Identity, error) {
	args := m.Called(ctx, id)
	ident, _ := args.Get(0).(*identity.Identity)
	return ident, args.Error(1)
}

func (m *mockIdentityRepo) List(ctx context.Context) ([]identity.Identity, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]identity.Identity)
	return list, args.Error(1)
}

func (m *mockIdentityRepo) Save(ctx context.Context, ident *identity.Identity) error {
	return m.Called(ctx, ident).Error(0)
}

func TestCachedDirectory_CachesHits(t *testing.T) {
	repo := new(mockIdentityRepo)
	repo.On("Get", mock.Anything, "u-7").Return(&identity.Identity{ID: "u-7", DisplayName: "Ana"}, nil).Once()

	dir, err := NewCachedDirectory(repo, 8)
	require.NoError(t, err)

	assert.Equal(t, "Ana", dir.ResolveDisplayName("u-7"))
	assert.Equal(t, "Ana", dir.ResolveDisplayName("u-7"))
	repo.AssertNumberOfCalls(t, "Get", 1)
}

func TestCachedDirectory_FallsBackToRawID(t *testing.T) {
	repo := new(mockIdentityRepo)
	repo.On("Get", mock.Anything, "ghost").Return(nil, errors.New("directory offline"))

	dir, err := NewCachedDirectory(repo, 8)
	require.NoError(t, err)

	assert.Equal(t, "ghost", dir.ResolveDisplayName("ghost"))
	assert.Equal(t, "ghost", dir.ResolveDisplayName("ghost"))
	repo.AssertNumberOfCalls(t, "Get", 2)
}

func TestCachedDirectory_RefreshLoadsCandidates(t *testing.T) {
	repo := new(mockIdentityRepo)
	repo.On("List", mock.Anything).Return([]identity.Identity{
		{ID: "u-1", DisplayName: "Björn"},
		{ID: "u-2", DisplayName: "Ana García"},
	}, nil)

	dir, err := NewCachedDirectory(repo, 8)
	require.NoError(t, err)
	require.NoError(t, dir.Refresh(context.Background()))

	assert.Len(t, dir.Identities(), 2)
	assert.Equal(t, "Björn", dir.ResolveDisplayName("u-1"))
	repo.AssertNotCalled(t, "Get", mock.Anything, "u-1")
}

func TestStaticDirectory(t *testing.T) {
	dir := NewStaticDirectory(
		identity.Identity{ID: "b", DisplayName: "Bea"},
		identity.Identity{ID: "a", DisplayName: "Ana"},
		identity.Identity{ID: "a", DisplayName: "Duplicate"},
		identity.Identity{ID: "", DisplayName: "Nobody"},
	)

	assert.Equal(t, "Ana", dir.ResolveDisplayName("a"))
	assert.Equal(t, "zed", dir.ResolveDisplayName("zed"))
	assert.Equal(t, []identity.Identity{{ID: "a", DisplayName: "Ana"}, {ID: "b", DisplayName: "Bea"}}, dir.Identities())
}

func TestGormIdentityRepository(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, false)
	require.NoError(t, err)
	defer database.Close(db)

	ctx := context.Background()
	repo := NewGormIdentityRepository(db)
	require.NoError(t, repo.InitSchema(ctx))

	require.NoError(t, repo.Save(ctx, &identity.Identity{ID: "u-1", DisplayName: "Björn"}))
	require.NoError(t, repo.Save(ctx, &identity.Identity{ID: "u-2", DisplayName: "Ana"}))
	require.NoError(t, repo.Save(ctx, &identity.Identity{ID: "u-1", DisplayName: "Björn Ek"}))

	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Björn Ek", got.DisplayName)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].DisplayName)

	_, err = repo.Get(ctx, "missing")
	var notFound pkgError.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
