package firebase

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAuthClientNeedsCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := NewAuthClient(ctx, "")
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewAuthClient(ctx, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNoCredentials)
}
