package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides hardcoded USD pricing per 1M tokens (text tokens).
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
	"claude-3-5-haiku":      {InputPerM: 0.80, OutputPerM: 4.00},
	"claude-haiku-4-5":      {InputPerM: 1.00, OutputPerM: 5.00},
	"claude-sonnet-4":       {InputPerM: 3.00, OutputPerM: 15.00},
}

// ResolvePricing returns hardcoded pricing for a model. Dated or
// provider-prefixed names ("anthropic/claude-3-5-haiku-20241022") resolve to
// the longest matching family.
func ResolvePricing(model string) Pricing {
	if p, ok := defaultPricing[model]; ok {
		return p
	}
	best, bestLen := Pricing{}, 0
	for name, p := range defaultPricing {
		if strings.Contains(model, name) && len(name) > bestLen {
			best, bestLen = p, len(name)
		}
	}
	return best
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}

// AddUsage accumulates u into total.
func AddUsage(total *schema.TokenUsage, u *schema.TokenUsage) {
	if total == nil || u == nil {
		return
	}
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}
