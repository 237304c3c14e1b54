package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AZCOLLAB_TEST_KEY=from-file\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("AZCOLLAB_TEST_KEY") })

	require.NoError(t, LoadConfig(dir))
	assert.Equal(t, "from-file", os.Getenv("AZCOLLAB_TEST_KEY"))
}

func TestLoadConfig_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadConfig(t.TempDir()))
}

func TestGetPersistentServerID(t *testing.T) {
	assert.Equal(t, "node-a", GetPersistentServerID("node-a", t.TempDir()))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".server_id"), []byte("azcollab-saved\n"), 0o644))
	assert.Equal(t, "azcollab-saved", GetPersistentServerID("", dir))

	id := GetPersistentServerID("", t.TempDir())
	assert.True(t, strings.HasPrefix(id, "azcollab-"))
}
