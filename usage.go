package step

// Usage reports token accounting.
type Usage struct {
	InputTokens      int  `json:"input_tokens"`
	OutputTokens     int  `json:"output_tokens"`
	CachedReadTokens int  `json:"cached_read_tokens"`
	ThinkingTokens   int  `json:"thinking_tokens,omitempty"`
	TotalTokens      int  `json:"total_tokens"`
	Cost             Cost `json:"cost"`
}

// Cost is the monetary cost of a Usage, in USD.
type Cost struct {
	Input     float64 `json:"input"`
	Output    float64 `json:"output"`
	CacheRead float64 `json:"cache_read"`
	Total     float64 `json:"total"`
}

// CostFunc prices a usage snapshot for a model. It must be pure.
type CostFunc func(model string, usage Usage) Cost

// PerMillion returns a CostFunc charging fixed USD prices per million tokens.
func PerMillion(input, output, cacheRead float64) CostFunc {
	return func(_ string, u Usage) Cost {
		c := Cost{
			Input:     float64(u.InputTokens) * input / 1e6,
			Output:    float64(u.OutputTokens) * output / 1e6,
			CacheRead: float64(u.CachedReadTokens) * cacheRead / 1e6,
		}
		c.Total = c.Input + c.Output + c.CacheRead
		return c
	}
}
