package sculptor

import "errors"

// ExecutionStats summarizes what a batch would cost without calling the
// transport.
type ExecutionStats struct {
	Model             string         `json:"model"`
	Records           int            `json:"records"`
	Requests          int            `json:"requests"`          // records that produced a request
	BuildFailures     map[int]string `json:"buildFailures"`     // input index → reason
	TotalInputTokens  int            `json:"totalInputTokens"`  // estimated, first attempt only
	TotalOutputTokens int            `json:"totalOutputTokens"` // estimated
	MaxAttempts       int            `json:"maxAttempts"`       // per-item budget
	ContractDigest    string         `json:"contractDigest"`
	EstCost           *float64       `json:"estCost,omitempty"` // USD, nil when the model has no price
}

// ModelPrice represents the pricing for a specific model.
type ModelPrice struct {
	PromptTokCost     float64 // Cost per 1000 input tokens
	CompletionTokCost float64 // Cost per 1000 output tokens
}

// DefaultModelPricing returns input/output token costs (USD per 1K tokens).
func DefaultModelPricing() map[string]ModelPrice {
	return map[string]ModelPrice{
		"gpt-4o":           {PromptTokCost: 0.0050, CompletionTokCost: 0.0200},
		"gpt-4o-mini":      {PromptTokCost: 0.0006, CompletionTokCost: 0.0024},
		"gpt-4.1":          {PromptTokCost: 0.0020, CompletionTokCost: 0.0080},
		"gpt-4.1-mini":     {PromptTokCost: 0.0004, CompletionTokCost: 0.0016},
		"gpt-4.1-nano":     {PromptTokCost: 0.0001, CompletionTokCost: 0.0004},
		"gemini-2.5-pro":   {PromptTokCost: 0.00125, CompletionTokCost: 0.0100},
		"gemini-2.5-flash": {PromptTokCost: 0.00030, CompletionTokCost: 0.0025},
		"gemini-2.0-flash": {PromptTokCost: 0.00015, CompletionTokCost: 0.0006},
		"gemini-1.5-pro":   {PromptTokCost: 0.00125, CompletionTokCost: 0.0050},
		"gemini-1.5-flash": {PromptTokCost: 0.000075, CompletionTokCost: 0.00030},
	}
}

// EstimateTokensFromText provides a rough token estimate from text length.
func EstimateTokensFromText(text string) int {
	// ~4 characters per token for English text
	return (len(text) + 3) / 4
}

// DryRun builds the first-attempt request for every record without calling
// the transport. It reports which records cannot be built (for example a
// missing input key) and a token and cost estimate. maxAttempts is the retry
// budget the real run would use; it only affects the reported worst case.
func (c *core) DryRun(records []Record, maxAttempts int, pricing map[string]ModelPrice) (*ExecutionStats, error) {
	if len(records) == 0 {
		return nil, errors.New("dry run: no records")
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	stats := &ExecutionStats{
		Model:          c.model,
		Records:        len(records),
		BuildFailures:  make(map[int]string),
		MaxAttempts:    maxAttempts,
		ContractDigest: c.compiled.Contract.Digest(),
	}

	perItemOutput := estimateOutputTokens(c.compiled.Contract.schema)
	for i, rec := range records {
		req, err := c.builder.Build(rec, AttemptState{})
		if err != nil {
			stats.BuildFailures[i] = err.Error()
			continue
		}
		stats.Requests++
		for _, m := range req.Messages {
			stats.TotalInputTokens += EstimateTokensFromText(m.Content)
		}
		stats.TotalInputTokens += EstimateTokensFromText(string(req.ResponseFormat.JSON()))
		stats.TotalOutputTokens += perItemOutput
	}

	if price, ok := pricing[c.model]; ok {
		cost := float64(stats.TotalInputTokens)/1000*price.PromptTokCost +
			float64(stats.TotalOutputTokens)/1000*price.CompletionTokCost
		stats.EstCost = &cost
	}

	c.log.Info("Dry run completed",
		"records", stats.Records,
		"requests", stats.Requests,
		"build_failures", len(stats.BuildFailures),
		"total_input_tokens", stats.TotalInputTokens,
		"total_output_tokens", stats.TotalOutputTokens)
	return stats, nil
}

// estimateOutputTokens estimates output tokens for one extraction from the
// declared field types.
func estimateOutputTokens(s Schema) int {
	tokens := 10 + s.Len()*2 // {"field": value, ...}
	for _, f := range s.fields {
		switch f.Type {
		case TypeBoolean, TypeInteger, TypeNumber, TypeEnum:
			tokens += 5
		case TypeArray, TypeObject:
			tokens += 40
		default:
			tokens += 20
		}
	}
	return tokens
}
