package alert

import (
	"context"
	"errors"
	"testing"

	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesktop_DeniedWithoutTool(t *testing.T) {
	d := NewDesktop()
	d.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	assert.Equal(t, PermissionDefault, d.Permission())
	err := d.Alert("title", "body")

	var perm pkgError.PermissionError
	assert.ErrorAs(t, err, &perm)
	assert.Equal(t, PermissionDenied, d.Permission())
}

func TestDesktop_GrantedRunsTool(t *testing.T) {
	d := NewDesktop()
	d.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	var gotArgs []string
	d.run = func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		return nil
	}

	require.Equal(t, PermissionGranted, d.RequestPermission())
	require.NoError(t, d.Alert("Ana mentioned you", "hi"))
	assert.Contains(t, gotArgs[len(gotArgs)-1], "hi")
}

func TestNoop(t *testing.T) {
	var n Noop
	assert.Equal(t, PermissionDenied, n.RequestPermission())
	assert.Error(t, n.Alert("a", "b"))
}
