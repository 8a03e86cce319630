package google

import "github.com/stepkit/step"

// applyUsage replaces the accumulator's usage with md. The API reports
// cumulative totals on every chunk, so counters are overwritten, not added.
func applyUsage(out *step.AssistantMessage, md *UsageMetadata, cost step.CostFunc) {
	if md == nil {
		return
	}
	u := step.Usage{
		InputTokens:      md.PromptTokenCount - md.CachedContentTokenCount,
		OutputTokens:     md.CandidatesTokenCount + md.ThoughtsTokenCount,
		CachedReadTokens: md.CachedContentTokenCount,
		ThinkingTokens:   md.ThoughtsTokenCount,
		TotalTokens:      md.TotalTokenCount,
	}
	if u.InputTokens < 0 {
		u.InputTokens = 0
	}
	if cost != nil {
		u.Cost = cost(out.Model, u)
	}
	out.Usage = &u
}
