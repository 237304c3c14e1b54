package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRosterStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRosterStore()

	added, err := s.Add(ctx, "issue|1", "bob")
	require.NoError(t, err)
	assert.True(t, added)

	added, _ = s.Add(ctx, "issue|1", "bob")
	assert.False(t, added, "second add is a no-op")

	_, _ = s.Add(ctx, "issue|1", "ana")
	_, _ = s.Add(ctx, "issue|2", "carl")

	members, err := s.Members(ctx, "issue|1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "bob"}, members)

	removed, _ := s.Remove(ctx, "issue|1", "bob")
	assert.True(t, removed)
	removed, _ = s.Remove(ctx, "issue|1", "bob")
	assert.False(t, removed)

	require.NoError(t, s.Clear(ctx, "issue|2"))
	members, _ = s.Members(ctx, "issue|2")
	assert.Empty(t, members)
}
