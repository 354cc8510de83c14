// Package producttools exposes catalog API operations as stateless tools.
//
// Each tool maps to exactly one REST call and returns the decoded API payload.
// API failures are returned unchanged as *client.APIError so that a tool
// server surfaces them verbatim.
package producttools

import (
	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/catalog/client"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/tool"
)

// Tool names.
const (
	CreateProduct = "create_product"
	GetProduct    = "get_product"
	ListProducts  = "list_products"
	UpdateProduct = "update_product"
	DeleteProduct = "delete_product"
)

type createArgs struct {
	Name        string  `json:"name" jsonschema:"description=Product name"`
	Description string  `json:"description,omitempty" jsonschema:"description=Free text description"`
	Price       float64 `json:"price" jsonschema:"description=Unit price,minimum=0"`
	Stock       int64   `json:"stock,omitempty" jsonschema:"description=Units in stock,minimum=0"`
}

type idArgs struct {
	ProductID string `json:"product_id" jsonschema:"description=Product identifier"`
}

type listArgs struct {
	Query  string `json:"query,omitempty" jsonschema:"description=Case-insensitive name filter"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Page size (default 50 and max 200)"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=Items to skip"`
}

type updateArgs struct {
	ProductID   string  `json:"product_id" jsonschema:"description=Product identifier"`
	Name        string  `json:"name,omitempty" jsonschema:"description=New name"`
	Description string  `json:"description,omitempty" jsonschema:"description=New description"`
	Price       float64 `json:"price,omitempty" jsonschema:"description=New price,minimum=0"`
	Stock       int64   `json:"stock,omitempty" jsonschema:"description=New stock level,minimum=0"`
}

// New returns the five catalog tools bound to c.
func New(c *client.Client) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionToolFromStruct(CreateProduct,
			"Create a catalog product. Returns the stored product including its id.",
			createArgs{},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return c.CreateProduct(tc.Context(), catalog.NewProduct{
					Name:        stringArg(args, "name"),
					Description: stringArg(args, "description"),
					Price:       floatArg(args, "price"),
					Stock:       int64(floatArg(args, "stock")),
				})
			}),
		tool.NewFunctionToolFromStruct(GetProduct,
			"Fetch a single product by id.",
			idArgs{},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return c.GetProduct(tc.Context(), stringArg(args, "product_id"))
			}),
		tool.NewFunctionToolFromStruct(ListProducts,
			"List products, optionally filtered by a name substring.",
			listArgs{},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return c.ListProducts(tc.Context(), catalog.ListOptions{
					Query:  stringArg(args, "query"),
					Limit:  int(floatArg(args, "limit")),
					Offset: int(floatArg(args, "offset")),
				})
			}),
		tool.NewFunctionToolFromStruct(UpdateProduct,
			"Update fields of a product. Only the given fields change.",
			updateArgs{},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return c.UpdateProduct(tc.Context(), stringArg(args, "product_id"), patchFromArgs(args))
			}),
		tool.NewFunctionToolFromStruct(DeleteProduct,
			"Delete a product by id.",
			idArgs{},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				id := stringArg(args, "product_id")
				if err := c.DeleteProduct(tc.Context(), id); err != nil {
					return nil, err
				}
				return map[string]any{"deleted": true, "product_id": id}, nil
			}),
	}
}

// NewRegistry returns a registry holding the catalog tools.
func NewRegistry(c *client.Client) *tool.Registry {
	return tool.NewRegistry(New(c)...)
}

// patchFromArgs sets only the fields present in args so that explicit zero
// values (stock 0) are still applied.
func patchFromArgs(args map[string]any) catalog.ProductPatch {
	var patch catalog.ProductPatch

	if v, ok := args["name"].(string); ok {
		patch.Name = &v
	}
	if v, ok := args["description"].(string); ok {
		patch.Description = &v
	}
	if v, ok := number(args["price"]); ok {
		patch.Price = &v
	}
	if v, ok := number(args["stock"]); ok {
		s := int64(v)
		patch.Stock = &s
	}

	return patch
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func floatArg(args map[string]any, key string) float64 {
	f, _ := number(args[key])
	return f
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
