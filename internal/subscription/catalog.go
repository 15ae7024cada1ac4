package subscription

import (
	_ "embed"
	"fmt"

	"github.com/hitoshi/portal/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// FreePlanID はサブスクリプション未作成のユーザーに適用されるプラン。
const FreePlanID = "free"

// TopUpPricing はトークン追加購入の価格設定。
type TopUpPricing struct {
	PriceCentsPerThousand int64 `yaml:"price_cents_per_thousand"`
	MinTokens             int64 `yaml:"min_tokens"`
	MaxTokens             int64 `yaml:"max_tokens"`
}

// Catalog はプランとトークン追加購入の価格表。
type Catalog struct {
	Plans []model.Plan `yaml:"plans"`
	TopUp TopUpPricing `yaml:"topup"`
}

// ParseCatalog はYAMLからCatalogを読み込み、整合性を検証する。
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	if len(c.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog has no plans")
	}
	seen := make(map[string]bool, len(c.Plans))
	for _, p := range c.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan without id in catalog")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate plan id in catalog: %s", p.ID)
		}
		seen[p.ID] = true
	}
	if !seen[FreePlanID] {
		return nil, fmt.Errorf("plan catalog must define %q", FreePlanID)
	}
	if c.TopUp.PriceCentsPerThousand <= 0 || c.TopUp.MinTokens <= 0 || c.TopUp.MaxTokens < c.TopUp.MinTokens {
		return nil, fmt.Errorf("invalid top-up pricing: %+v", c.TopUp)
	}
	return &c, nil
}

// DefaultCatalog は埋め込みのカタログを返す。
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Find はIDに一致するプランを返す。
func (c *Catalog) Find(planID string) (model.Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == planID {
			return p, true
		}
	}
	return model.Plan{}, false
}

// PriceForTokens はトークン数に対する価格（セント）を返す。1000単位で切り上げる。
func (c *Catalog) PriceForTokens(tokens int64) int64 {
	thousands := (tokens + 999) / 1000
	return thousands * c.TopUp.PriceCentsPerThousand
}
