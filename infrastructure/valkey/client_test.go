package valkey

import (
	"testing"

	"github.com/AzielCF/az-collab/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientKey(t *testing.T) {
	c := &Client{keyPrefix: "azcollab:"}

	assert.Equal(t, "azcollab", c.Key())
	assert.Equal(t, "azcollab:roster:issue|42", c.Key("roster", "issue|42"))
	assert.Equal(t, "azcollab:", c.KeyPrefix())
}

func TestNewFromConfig_Disabled(t *testing.T) {
	client, err := NewFromConfig(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
