package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Product is a catalog entry as seen by the terminal. It is read-only;
// the terminal never writes products back.
type Product struct {
	ID       uuid.UUID
	Name     string
	SKU      string
	Price    float64
	Category string
	ImageURL string
	Stock    int
}

// UnmarshalJSON normalizes the two shapes the API has been observed to
// emit: price as a JSON number or a quoted string, and category as either
// a bare name or a nested object with a name field. Only the flattened
// forms leave this boundary.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       uuid.UUID       `json:"id"`
		Name     string          `json:"name"`
		SKU      string          `json:"sku"`
		Price    json.RawMessage `json:"price"`
		Category json.RawMessage `json:"category"`
		ImageURL string          `json:"image_url"`
		Stock    int             `json:"stock"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	price, err := parsePrice(raw.Price)
	if err != nil {
		return fmt.Errorf("product %s: %w", raw.ID, err)
	}

	p.ID = raw.ID
	p.Name = raw.Name
	p.SKU = raw.SKU
	p.Price = price
	p.Category = parseCategory(raw.Category)
	p.ImageURL = raw.ImageURL
	p.Stock = raw.Stock
	return nil
}

func parsePrice(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	s = strings.Trim(s, `"`)
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q", s)
	}
	return price, nil
}

func parseCategory(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, "{") {
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ""
		}
		return obj.Name
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return ""
	}
	return name
}
