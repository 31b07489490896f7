package router

import (
	"sort"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// EstimateTokens approximates the token count of the request text.
func (r *Router) EstimateTokens(req Request) int {
	return r.estimate(req.text())
}

func (r *Router) estimate(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + r.opts.CharsPerToken - 1) / r.opts.CharsPerToken
}

// EstimateCost prices tokens against a model's per-token cost.
func EstimateCost(cfg core.ModelConfig, tokens int) float64 {
	return float64(tokens) * cfg.CostPerToken
}

// SelectModel picks a model by greedy first fit. It starts from the requested
// model when registered (else the default, else the first registered), moves to the first model
// in registration order whose context fits the estimate, then, when a budget
// is set and the pick would exceed it, to the first model that keeps the
// running cost within budget. A later criterion may undo an earlier one.
func (r *Router) SelectModel(req Request) (core.ModelConfig, error) {
	const op = "router.SelectModel"
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return core.ModelConfig{}, core.NewConfigurationError(op, "no models registered")
	}

	current, ok := r.models[req.Model]
	if !ok {
		if req.Model != "" {
			r.opts.Logger.Debug("router.select.unknown_preference", "model", req.Model)
		}
		if current, ok = r.models[r.opts.DefaultModel]; !ok {
			current = r.models[r.order[0]]
		}
	}

	tokens := r.estimate(req.text())
	if current.MaxContextTokens < tokens {
		for _, n := range r.order {
			if r.models[n].MaxContextTokens >= tokens {
				current = r.models[n]
				break
			}
		}
	}

	if budget := r.opts.CostBudget; budget > 0 {
		spent := r.metrics.totalCost()
		if spent+EstimateCost(current, tokens) > budget {
			for _, n := range r.order {
				if spent+EstimateCost(r.models[n], tokens) <= budget {
					current = r.models[n]
					break
				}
			}
		}
	}
	return current, nil
}

// Recommendation is a scored model suggestion.
type Recommendation struct {
	Model           core.ModelConfig `json:"model"`
	Score           float64          `json:"score"`
	Reasons         []string         `json:"reasons"`
	EstimatedTokens int              `json:"estimated_tokens"`
	EstimatedCost   float64          `json:"estimated_cost"`
}

// GetModelRecommendations scores every registered model for the request,
// highest first. Scores start at 100, lose 50 when the context is too small,
// gain 10 for streaming support on streaming requests, gain 5 for open
// models, and lose up to 20 in
// proportion to estimated cost relative to the most expensive model.
func (r *Router) GetModelRecommendations(req Request) []Recommendation {
	models := r.Models()
	tokens := r.EstimateTokens(req)

	var maxCost float64
	for _, m := range models {
		if c := EstimateCost(m, tokens); c > maxCost {
			maxCost = c
		}
	}

	recs := make([]Recommendation, 0, len(models))
	for _, m := range models {
		rec := Recommendation{
			Model:           m,
			Score:           100,
			EstimatedTokens: tokens,
			EstimatedCost:   EstimateCost(m, tokens),
		}
		if m.MaxContextTokens < tokens {
			rec.Score -= 50
			rec.Reasons = append(rec.Reasons, "context window too small")
		} else {
			rec.Reasons = append(rec.Reasons, "context window fits")
		}
		if req.Stream && m.SupportsStreaming {
			rec.Score += 10
			rec.Reasons = append(rec.Reasons, "supports streaming")
		}
		if m.Capability == core.ModelOpen {
			rec.Score += 5
			rec.Reasons = append(rec.Reasons, "open model")
		}
		if maxCost > 0 {
			penalty := 20 * rec.EstimatedCost / maxCost
			rec.Score -= penalty
			if penalty > 0 {
				rec.Reasons = append(rec.Reasons, "cost penalty")
			}
		}
		if strings.EqualFold(m.Name, r.opts.DefaultModel) {
			rec.Reasons = append(rec.Reasons, "default model")
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	return recs
}
