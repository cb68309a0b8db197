package orderid

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/household/internal/model"
)

// Miscellaneous collects items no keyword rule matched.
const Miscellaneous = "Miscellaneous"

type categoryRule struct {
	name     string
	keywords []string
}

// Rules are checked in order; an item lands in the first matching category.
var categoryRules = []categoryRule{
	{"Groceries", []string{"food", "grocery", "fresh", "produce", "snack", "beverage"}},
	{"Electronics", []string{"electronic", "computer", "phone", "tablet", "cable", "adapter", "battery"}},
	{"Home", []string{"home", "furniture", "decor", "kitchen", "bathroom", "cleaning"}},
	{"Clothing", []string{"clothing", "apparel", "shoes", "shirt", "pants", "dress"}},
	{"Books", []string{"book", "kindle", "audiobook", "magazine"}},
	{"Entertainment", []string{"game", "movie", "music", "toy", "sport"}},
	{"Health", []string{"health", "vitamin", "supplement", "medicine", "medical"}},
	{"Personal Care", []string{"beauty", "cosmetic", "shampoo", "soap", "lotion"}},
	{"Office", []string{"office", "stationery", "pen", "paper", "desk", "chair"}},
	{"Pet", []string{"pet", "dog", "cat", "animal", "bird", "fish"}},
}

// CategoryTotal groups order items suggested for one budget category.
type CategoryTotal struct {
	Items []model.OrderItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

// Categorize suggests budget categories for order items by keyword.
func Categorize(items []model.OrderItem) map[string]CategoryTotal {
	out := make(map[string]CategoryTotal)
	for _, item := range items {
		cat := categoryFor(item.Name)
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		ct := out[cat]
		ct.Items = append(ct.Items, item)
		ct.Total = ct.Total.Add(item.Price.Mul(decimal.NewFromInt(int64(qty))))
		out[cat] = ct
	}
	return out
}

func categoryFor(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.name
			}
		}
	}
	return Miscellaneous
}
