package llm

import "google.golang.org/genai"

func amountSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: description}
}

func lineItemSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": {Type: genai.TypeString},
			"amount":      amountSchema("Price in dollars"),
		},
		Required: []string{"description", "amount"},
	}
}

func sharedItemSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": {Type: genai.TypeString},
			"amount":      amountSchema("This person's share of the item in dollars"),
			"price":       amountSchema("Full price of the item before splitting"),
			"split_with": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Everyone sharing the item, including this person",
			},
		},
		Required: []string{"description", "amount", "split_with"},
	}
}

// splitSchema is the response contract: one entry per person plus an
// explanation. Field names match stored bill item breakdowns.
func splitSchema() *genai.Schema {
	breakdown := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items":        {Type: genai.TypeArray, Items: lineItemSchema()},
			"subtotal":     amountSchema("Sum of this person's items and shared item shares"),
			"tax_share":    amountSchema("Tax allocated in proportion to subtotal"),
			"fee_share":    amountSchema("Service fees and surcharges allocated in proportion to subtotal"),
			"tip_share":    amountSchema("Tip allocated in proportion to subtotal"),
			"shared_items": {Type: genai.TypeArray, Items: sharedItemSchema()},
		},
		Required: []string{"items", "subtotal", "tax_share", "fee_share", "tip_share", "shared_items"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items": {
				Type:        genai.TypeArray,
				Description: "List of people and what they owe",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":      {Type: genai.TypeString, Description: "Name of the person"},
						"amount":    amountSchema("Total amount this person owes in dollars"),
						"breakdown": breakdown,
					},
					Required: []string{"name", "amount", "breakdown"},
				},
			},
			"explanation": {
				Type:        genai.TypeString,
				Description: "How the bill was split, including subtotals, tax, tip and any shared items",
			},
		},
		Required: []string{"items", "explanation"},
	}
}
