package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = Render(`Last product: {{default "none" .last_product_id}}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Last product: none", out)

	out, err = Render(`Hello {{upper .name}}`, map[string]any{"name": "shop"})
	require.NoError(t, err)
	assert.Equal(t, "Hello SHOP", out)

	_, err = Render("{{ .broken", nil)
	assert.Error(t, err)
}

func TestRender_MissingKeyIsEmpty(t *testing.T) {
	out, err := Render(`[{{.missing}}]`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
