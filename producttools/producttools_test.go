package producttools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/catalog/client"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/internal/testutil"
	"github.com/hupe1980/agentbridge/tool"
)

func toolCtx() *core.ToolContext { return core.NewToolContext(context.Background()) }

func TestNewRegistry_Names(t *testing.T) {
	fx := testutil.NewCatalog(t)
	reg := NewRegistry(fx.Client)

	assert.Equal(t, []string{CreateProduct, DeleteProduct, GetProduct, ListProducts, UpdateProduct}, reg.Names())

	for _, def := range reg.Definitions() {
		assert.Equal(t, "object", def.Parameters["type"], def.Name)
		assert.NotEmpty(t, def.Description)
	}
}

func TestTools_Lifecycle(t *testing.T) {
	fx := testutil.NewCatalog(t)
	reg := NewRegistry(fx.Client)

	out, err := reg.Invoke(toolCtx(), CreateProduct, `{"name":"Kettle","price":30,"stock":4}`)
	require.NoError(t, err)
	created := out.(*catalog.Product)
	assert.Equal(t, int64(4), created.Stock)

	out, err = reg.Invoke(toolCtx(), GetProduct, `{"product_id":"`+created.ID+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "Kettle", out.(*catalog.Product).Name)

	// explicit zero stock is applied
	out, err = reg.Invoke(toolCtx(), UpdateProduct, `{"product_id":"`+created.ID+`","stock":0}`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.(*catalog.Product).Stock)
	assert.Equal(t, 30.0, out.(*catalog.Product).Price)

	out, err = reg.Invoke(toolCtx(), ListProducts, `{"query":"kett"}`)
	require.NoError(t, err)
	assert.Equal(t, 1, out.(*client.ListResult).Count)

	out, err = reg.Invoke(toolCtx(), DeleteProduct, `{"product_id":"`+created.ID+`"}`)
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]any)["deleted"])
}

func TestTools_RawAPIErrorsPassThrough(t *testing.T) {
	fx := testutil.NewCatalog(t)
	reg := NewRegistry(fx.Client)

	_, err := reg.Invoke(toolCtx(), GetProduct, `{"product_id":"missing"}`)
	require.Error(t, err)

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeExecution, toolErr.Code)
	assert.Equal(t, "catalog api: 404 not_found: product not found", toolErr.Message)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)

	_, err = reg.Invoke(toolCtx(), UpdateProduct, `{"product_id":"missing"}`)
	require.ErrorAs(t, err, &apiErr)

	// schema validation happens before any API call
	_, err = reg.Invoke(toolCtx(), CreateProduct, `{"price":1}`)
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)
	_, err = reg.Invoke(toolCtx(), CreateProduct, `{"name":"Lamp","price":-1}`)
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)
	assert.False(t, errors.As(err, &apiErr), "bounds are checked before the API is called")
}
