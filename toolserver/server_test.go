package toolserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/internal/testutil"
	"github.com/hupe1980/agentbridge/producttools"
	"github.com/hupe1980/agentbridge/tool"
)

func newCatalogServer(t *testing.T) (*Server, *testutil.Catalog) {
	t.Helper()

	fx := testutil.NewCatalog(t)

	s, err := New(producttools.NewRegistry(fx.Client), func(o *Options) {
		o.Name = "catalog-tools"
		o.Version = "test"
	})
	require.NoError(t, err)

	return s, fx
}

func newInProcessClient(t *testing.T, s *Server) *client.Client {
	t.Helper()

	c, err := client.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Start(context.Background()))

	return c
}

func callCtx() *core.ToolContext { return core.NewToolContext(context.Background()) }

func TestDiscover_ListsRegistryTools(t *testing.T) {
	s, _ := newCatalogServer(t)
	c := newInProcessClient(t, s)

	tools, err := Discover(context.Background(), c)
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tl := range tools {
		names = append(names, tl.Name())
	}
	assert.ElementsMatch(t, []string{
		producttools.CreateProduct,
		producttools.DeleteProduct,
		producttools.GetProduct,
		producttools.ListProducts,
		producttools.UpdateProduct,
	}, names)

	reg := tool.NewRegistry(tools...)
	get, ok := reg.Lookup(producttools.GetProduct)
	require.True(t, ok)

	props, ok := get.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "product_id")
}

func TestRemoteTool_CallSuccess(t *testing.T) {
	s, fx := newCatalogServer(t)
	p := fx.Seed(t, catalog.NewProduct{Name: "Teapot", Price: 25, Stock: 2})

	tools, err := Discover(context.Background(), newInProcessClient(t, s))
	require.NoError(t, err)
	reg := tool.NewRegistry(tools...)

	out, err := reg.Invoke(callCtx(), producttools.GetProduct, `{"product_id":"`+p.ID+`"}`)
	require.NoError(t, err)

	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Teapot", m["name"])
	assert.Equal(t, p.ID, m["id"])
}

func TestRemoteTool_RawErrorSurfaced(t *testing.T) {
	s, _ := newCatalogServer(t)
	c := newInProcessClient(t, s)

	_, err := Discover(context.Background(), c)
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Name = producttools.GetProduct
	req.Params.Arguments = map[string]any{"product_id": "missing"}

	resp, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Equal(t, "catalog api: 404 not_found: product not found", joinText(resp.Content))

	tools, err := Discover(context.Background(), c)
	require.NoError(t, err)

	_, err = tool.NewRegistry(tools...).Invoke(callCtx(), producttools.GetProduct, `{"product_id":"missing"}`)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "catalog api: 404 not_found: product not found", remoteErr.Text)
}

func TestServer_ValidationErrorIsToolResult(t *testing.T) {
	s, _ := newCatalogServer(t)
	c := newInProcessClient(t, s)

	_, err := Discover(context.Background(), c)
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Name = producttools.CreateProduct
	req.Params.Arguments = map[string]any{"price": 3}

	resp, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Contains(t, joinText(resp.Content), "parameter validation failed")
}

func TestServer_StreamableHTTP(t *testing.T) {
	s, fx := newCatalogServer(t)
	fx.Seed(t, catalog.NewProduct{Name: "Spoon", Price: 1})

	httpSrv := httptest.NewServer(s.HTTPHandler(""))
	defer httpSrv.Close()

	resp, err := http.Get(httpSrv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	c, err := Dial(context.Background(), DialConfig{URL: httpSrv.URL + DefaultPath})
	require.NoError(t, err)
	defer c.Close()

	tools, err := Discover(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, tools, 5)

	out, err := tool.NewRegistry(tools...).Invoke(callCtx(), producttools.ListProducts, `{"query":"spo"}`)
	require.NoError(t, err)
	assert.EqualValues(t, 1, out.(map[string]any)["count"])
}

func TestDial_RequiresTarget(t *testing.T) {
	_, err := Dial(context.Background(), DialConfig{})
	assert.Error(t, err)
}

func TestServer_ServeIO(t *testing.T) {
	s, fx := newCatalogServer(t)
	p := fx.Seed(t, catalog.NewProduct{Name: "Kettle", Price: 30, Stock: 1})

	toServerR, toServerW := io.Pipe()
	toClientR, toClientW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() {
		served <- s.ServeIO(ctx, toServerR, toClientW)
		_ = toClientW.Close()
	}()

	c := client.NewClient(transport.NewIO(toClientR, toServerW, nil))
	require.NoError(t, c.Start(ctx))

	tools, err := Discover(ctx, c)
	require.NoError(t, err)
	assert.Len(t, tools, 5)

	out, err := tool.NewRegistry(tools...).Invoke(callCtx(), producttools.GetProduct, `{"product_id":"`+p.ID+`"}`)
	require.NoError(t, err)

	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Kettle", m["name"])

	require.NoError(t, c.Close())
	cancel()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeIO did not return after the client closed")
	}
}
