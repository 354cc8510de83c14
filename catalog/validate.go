package catalog

import "strings"

// Validate checks the create payload.
func (n NewProduct) Validate() error {
	return validateFields(n.Name, n.Price, n.Stock)
}

// Apply returns p with the patch applied and validated. p itself is not modified.
func (patch ProductPatch) Apply(p Product) (Product, error) {
	if patch.Empty() {
		return p, &ValidationError{Message: "no fields to update"}
	}

	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}

	if err := validateFields(p.Name, p.Price, p.Stock); err != nil {
		return p, err
	}

	return p, nil
}

func validateFields(name string, price float64, stock int64) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if price < 0 {
		return &ValidationError{Field: "price", Message: "must be >= 0"}
	}
	if stock < 0 {
		return &ValidationError{Field: "stock", Message: "must be >= 0"}
	}
	return nil
}
