package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/catalog/client"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/logging"
	"github.com/hupe1980/agentbridge/memory"
)

// LastProductKey is the memory key holding the last product id of a session.
const LastProductKey = "last_product_id"

// defaultSessionID scopes memory for tasks that carry no session.
const defaultSessionID = "default"

// Product agent skills.
const (
	SkillAddProduct    = "add_product"
	SkillGetProduct    = "get_product"
	SkillUpdateProduct = "update_product"
	SkillDeleteProduct = "delete_product"
	SkillRestock       = "restock"
	SkillLastProduct   = "last_product"
)

// ProductAgentOptions configures a ProductAgent.
type ProductAgentOptions struct {
	Name        string
	Description string
	// Memory holds per-session memories. Defaults to an in-memory store.
	Memory core.MemoryStore
	Logger logging.Logger
}

// ProductAgent is a stateful wrapper agent in front of the catalog API.
type ProductAgent struct {
	name        string
	description string
	api         *client.Client
	memory      core.MemoryStore
	logger      logging.Logger
}

// NewProductAgent creates a wrapper agent over api.
func NewProductAgent(api *client.Client, optFns ...func(o *ProductAgentOptions)) *ProductAgent {
	opts := ProductAgentOptions{
		Name:        "product-agent",
		Description: "Manages catalog products and remembers the last product you worked on.",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryStore()
	}

	return &ProductAgent{
		name:        opts.Name,
		description: opts.Description,
		api:         api,
		memory:      opts.Memory,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// Name implements Agent.
func (a *ProductAgent) Name() string { return a.name }

// Description implements Agent.
func (a *ProductAgent) Description() string { return a.description }

// Skills implements Agent.
func (a *ProductAgent) Skills() []Skill {
	return []Skill{
		{
			ID:          SkillAddProduct,
			Name:        "Add product",
			Description: "Create a product from name, price, optional stock and description. The new product becomes the remembered one.",
			Tags:        []string{"catalog", "write"},
			Examples:    []string{`{"name":"Desk Lamp","price":19.99,"stock":5}`},
		},
		{
			ID:          SkillGetProduct,
			Name:        "Get product",
			Description: "Fetch a product. product_id defaults to the remembered product.",
			Tags:        []string{"catalog", "read"},
			Examples:    []string{`{}`, `{"product_id":"..."}`},
		},
		{
			ID:          SkillUpdateProduct,
			Name:        "Update product",
			Description: "Change name, description, price or stock. product_id defaults to the remembered product.",
			Tags:        []string{"catalog", "write"},
			Examples:    []string{`{"price":17.5}`},
		},
		{
			ID:          SkillDeleteProduct,
			Name:        "Delete product",
			Description: "Delete a product. product_id defaults to the remembered product, which is then forgotten.",
			Tags:        []string{"catalog", "write"},
		},
		{
			ID:          SkillRestock,
			Name:        "Restock",
			Description: "Add quantity units to the stock of a product. product_id defaults to the remembered product.",
			Tags:        []string{"catalog", "write", "multi-step"},
			Examples:    []string{`{"quantity":10}`},
		},
		{
			ID:          SkillLastProduct,
			Name:        "Last product",
			Description: "Report which product is remembered for this session.",
			Tags:        []string{"memory"},
		},
	}
}

// Execute implements Agent.
func (a *ProductAgent) Execute(ctx context.Context, task Task) (*Result, error) {
	sessionID := task.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	in := task.Input
	if in == nil {
		in = map[string]any{}
	}

	start := time.Now()
	a.logger.Debug("agent.skill.start", "agent", a.name, "skill", task.Skill, "session_id", sessionID, "task_id", task.ID)

	var (
		res *Result
		err error
	)

	switch task.Skill {
	case SkillAddProduct:
		res, err = a.addProduct(ctx, sessionID, in)
	case SkillGetProduct:
		res, err = a.getProduct(ctx, sessionID, in)
	case SkillUpdateProduct:
		res, err = a.updateProduct(ctx, sessionID, in)
	case SkillDeleteProduct:
		res, err = a.deleteProduct(ctx, sessionID, in)
	case SkillRestock:
		res, err = a.restock(ctx, sessionID, in)
	case SkillLastProduct:
		res, err = a.lastProduct(sessionID)
	default:
		err = UnknownSkill(a, task.Skill)
	}

	if err != nil {
		var skillErr *SkillError
		if errors.As(err, &skillErr) {
			a.logger.Warn("agent.skill.failed", "agent", a.name, "skill", task.Skill, "code", skillErr.Code, "error", skillErr.Message)
		} else {
			a.logger.Error("agent.skill.error", "agent", a.name, "skill", task.Skill, "error", err.Error())
		}
		return nil, err
	}

	a.logger.Info("agent.skill.success", "agent", a.name, "skill", task.Skill, "duration_ms", time.Since(start).Milliseconds())

	return res, nil
}

func (a *ProductAgent) addProduct(ctx context.Context, sessionID string, in map[string]any) (*Result, error) {
	name, ok := stringInput(in, "name")
	if !ok {
		return nil, invalidInput(SkillAddProduct, "name is required", `Provide a "name" and a "price".`)
	}

	price, ok, err := numberInput(in, "price")
	if err != nil {
		return nil, invalidInput(SkillAddProduct, err.Error(), "")
	}
	if !ok {
		return nil, invalidInput(SkillAddProduct, "price is required", `Provide a "price", for example 19.99.`)
	}

	stock, _, err := integerInput(in, "stock")
	if err != nil {
		return nil, invalidInput(SkillAddProduct, err.Error(), "")
	}

	description, _ := stringInput(in, "description")

	p, err := a.api.CreateProduct(ctx, catalog.NewProduct{Name: name, Description: description, Price: price, Stock: stock})
	if err != nil {
		return nil, a.recoverError(SkillAddProduct, sessionID, "", false, err)
	}

	if err := a.remember(sessionID, p.ID); err != nil {
		return nil, err
	}

	return productResult(fmt.Sprintf("Added %q (id %s) at %.2f with %d in stock. I'll remember it for follow-up requests.", p.Name, p.ID, p.Price, p.Stock), p), nil
}

func (a *ProductAgent) getProduct(ctx context.Context, sessionID string, in map[string]any) (*Result, error) {
	id, fromMemory, err := a.resolveID(SkillGetProduct, sessionID, in)
	if err != nil {
		return nil, err
	}

	p, err := a.api.GetProduct(ctx, id)
	if err != nil {
		return nil, a.recoverError(SkillGetProduct, sessionID, id, fromMemory, err)
	}

	if err := a.remember(sessionID, p.ID); err != nil {
		return nil, err
	}

	return productResult(fmt.Sprintf("%q (id %s) costs %.2f and has %d in stock.", p.Name, p.ID, p.Price, p.Stock), p), nil
}

func (a *ProductAgent) updateProduct(ctx context.Context, sessionID string, in map[string]any) (*Result, error) {
	id, fromMemory, err := a.resolveID(SkillUpdateProduct, sessionID, in)
	if err != nil {
		return nil, err
	}

	patch, err := patchFromInput(in)
	if err != nil {
		return nil, invalidInput(SkillUpdateProduct, err.Error(), "")
	}

	if patch.Empty() {
		return nil, invalidInput(SkillUpdateProduct, "no fields to update", "Set at least one of name, description, price or stock.")
	}

	p, err := a.api.UpdateProduct(ctx, id, patch)
	if err != nil {
		return nil, a.recoverError(SkillUpdateProduct, sessionID, id, fromMemory, err)
	}

	if err := a.remember(sessionID, p.ID); err != nil {
		return nil, err
	}

	return productResult(fmt.Sprintf("Updated %q (id %s): price %.2f, stock %d.", p.Name, p.ID, p.Price, p.Stock), p), nil
}

func (a *ProductAgent) deleteProduct(ctx context.Context, sessionID string, in map[string]any) (*Result, error) {
	id, fromMemory, err := a.resolveID(SkillDeleteProduct, sessionID, in)
	if err != nil {
		return nil, err
	}

	if err := a.api.DeleteProduct(ctx, id); err != nil {
		return nil, a.recoverError(SkillDeleteProduct, sessionID, id, fromMemory, err)
	}

	if remembered, _ := a.remembered(sessionID); remembered == id {
		if err := a.memory.Forget(sessionID, LastProductKey); err != nil {
			return nil, fmt.Errorf("forget last product: %w", err)
		}
	}

	return &Result{
		Text: fmt.Sprintf("Deleted product %s.", id),
		Data: map[string]any{"deleted": true, "product_id": id},
	}, nil
}

// restock reads the current stock, then writes stock + quantity.
func (a *ProductAgent) restock(ctx context.Context, sessionID string, in map[string]any) (*Result, error) {
	qty, ok, err := integerInput(in, "quantity")
	if err != nil {
		return nil, invalidInput(SkillRestock, err.Error(), "")
	}
	if !ok || qty <= 0 {
		return nil, invalidInput(SkillRestock, "quantity must be greater than 0", `Provide a positive "quantity".`)
	}

	id, fromMemory, err := a.resolveID(SkillRestock, sessionID, in)
	if err != nil {
		return nil, err
	}

	cur, err := a.api.GetProduct(ctx, id)
	if err != nil {
		return nil, a.recoverError(SkillRestock, sessionID, id, fromMemory, err)
	}

	if qty > math.MaxInt64-cur.Stock {
		return nil, invalidInput(SkillRestock, fmt.Sprintf("quantity %d would overflow the stock of %d", qty, cur.Stock), "Restock by a smaller quantity.")
	}

	stock := cur.Stock + qty

	p, err := a.api.UpdateProduct(ctx, id, catalog.ProductPatch{Stock: &stock})
	if err != nil {
		return nil, a.recoverError(SkillRestock, sessionID, id, fromMemory, err)
	}

	if err := a.remember(sessionID, p.ID); err != nil {
		return nil, err
	}

	res := productResult(fmt.Sprintf("Restocked %q by %d: %d -> %d units.", p.Name, qty, cur.Stock, p.Stock), p)
	res.Data["previous_stock"] = cur.Stock

	return res, nil
}

func (a *ProductAgent) lastProduct(sessionID string) (*Result, error) {
	id, err := a.remembered(sessionID)
	if err != nil {
		return nil, err
	}

	if id == "" {
		return &Result{Text: "No product remembered yet. Add or look up a product first.", Data: map[string]any{}}, nil
	}

	return &Result{
		Text: fmt.Sprintf("The last product is %s.", id),
		Data: map[string]any{"product_id": id},
	}, nil
}

// resolveID returns the explicit product_id or the remembered one.
func (a *ProductAgent) resolveID(skill, sessionID string, in map[string]any) (string, bool, error) {
	if id, ok := stringInput(in, "product_id"); ok {
		return id, false, nil
	}

	id, err := a.remembered(sessionID)
	if err != nil {
		return "", false, err
	}

	if id == "" {
		return "", false, &SkillError{
			Skill:   skill,
			Code:    CodeNoContext,
			Message: "no product_id given and no product remembered for this session",
			Hint:    "Add a product first, or pass product_id explicitly.",
		}
	}

	return id, true, nil
}

func (a *ProductAgent) remembered(sessionID string) (string, error) {
	mem, err := a.memory.Get(sessionID)
	if err != nil {
		return "", fmt.Errorf("read memory: %w", err)
	}

	id, _ := mem[LastProductKey].(string)

	return id, nil
}

func (a *ProductAgent) remember(sessionID, id string) error {
	if err := a.memory.Put(sessionID, map[string]any{LastProductKey: id}); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

// recoverError converts an API failure into a contextual SkillError. A remembered
// id that no longer exists is forgotten.
func (a *ProductAgent) recoverError(skill, sessionID, id string, fromMemory bool, err error) error {
	var apiErr *client.APIError

	switch {
	case client.IsNotFound(err) && fromMemory:
		if ferr := a.memory.Forget(sessionID, LastProductKey); ferr != nil {
			a.logger.Warn("agent.memory.forget_failed", "session_id", sessionID, "error", ferr.Error())
		}

		return &SkillError{
			Skill:   skill,
			Code:    CodeNotFound,
			Message: fmt.Sprintf("the remembered product %s no longer exists", id),
			Hint:    fmt.Sprintf("Product %s was probably deleted, so I forgot it. Add a product or pass another product_id.", id),
			Err:     err,
		}
	case client.IsNotFound(err):
		return &SkillError{
			Skill:   skill,
			Code:    CodeNotFound,
			Message: fmt.Sprintf("product %s not found", id),
			Hint:    "Check the product_id.",
			Err:     err,
		}
	case client.IsValidation(err):
		errors.As(err, &apiErr)

		return &SkillError{
			Skill:   skill,
			Code:    CodeInvalidInput,
			Message: "the catalog rejected the request: " + apiErr.Details,
			Hint:    "Names must be non-empty and price and stock must not be negative.",
			Err:     err,
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &SkillError{
			Skill:   skill,
			Code:    CodeUnavailable,
			Message: "the catalog API is unavailable",
			Hint:    "Try again in a moment.",
			Err:     err,
		}
	}
}

func invalidInput(skill, msg, hint string) *SkillError {
	return &SkillError{Skill: skill, Code: CodeInvalidInput, Message: msg, Hint: hint}
}

// patchFromInput sets only the fields present in the input.
func patchFromInput(in map[string]any) (catalog.ProductPatch, error) {
	var patch catalog.ProductPatch

	if v, ok := in["name"].(string); ok {
		patch.Name = &v
	}

	if v, ok := in["description"].(string); ok {
		patch.Description = &v
	}

	price, ok, err := numberInput(in, "price")
	if err != nil {
		return patch, err
	}
	if ok {
		patch.Price = &price
	}

	stock, ok, err := integerInput(in, "stock")
	if err != nil {
		return patch, err
	}
	if ok {
		patch.Stock = &stock
	}

	return patch, nil
}

func productResult(text string, p *catalog.Product) *Result {
	return &Result{Text: text, Data: toMap(p)}
}

func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{}
	}

	return m
}

var _ Agent = (*ProductAgent)(nil)
