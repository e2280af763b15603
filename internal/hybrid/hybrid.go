// Package hybrid implements the Hybrid Selector (C4, §4.4): a three-tier
// cascade (rule-based, semantic, LLM reasoning) that picks candidate
// Function Records for a query. The LLM tier's prompt-building and
// JSON-extraction idiom is grounded on the teacher's ranking service
// (genai/extension/fluxor/llm/core/rank.go).
package hybrid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reactquery/agent/internal/embedder"
	"github.com/reactquery/agent/internal/index"
	"github.com/reactquery/agent/internal/llm"
	"github.com/reactquery/agent/internal/registry"
	"github.com/reactquery/agent/internal/ruleselect"
)

// Method identifies which tier produced a Result.
type Method string

const (
	MethodRuleBased    Method = "rule_based"
	MethodSemantic     Method = "semantic"
	MethodLLMReasoning Method = "llm_reasoning"
	MethodNone         Method = "none"
)

// Config carries the tunable thresholds named in §4.4.
type Config struct {
	RuleThreshold     float64 // default 0.80
	SemanticThreshold float64 // default 0.70
	TopKRetrieval     int     // default 20
	LLMConfidence     float64 // default 0.65, used when the LLM tier returns a non-empty list
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{RuleThreshold: 0.80, SemanticThreshold: 0.70, TopKRetrieval: 20, LLMConfidence: 0.65}
}

// Turn is one prior conversation turn, passed into the LLM prompt as
// history (§4.4 tier 3: "including ... the conversation history").
type Turn struct {
	Role    string
	Content string
}

// Request carries everything the LLM tier's prompt needs beyond the query.
type Request struct {
	Query          string
	History        []Turn
	Instructions   string
	DomainFilter   string
}

// Result is the Hybrid Selector's output (§4.4 contract).
type Result struct {
	Records    []*registry.Record
	Method     Method
	Confidence float64
}

// Selector wires the three tiers together.
type Selector struct {
	Rules    []ruleselect.Rule
	Store    *registry.Store
	Index    *index.Index
	Embed    embedder.Embedder
	Model    llm.Model
	Config   Config
}

// SelectFunctions runs the cascade described in §4.4.
func (s *Selector) SelectFunctions(ctx context.Context, req Request, topK int) (Result, error) {
	// Tier 1: rule-based.
	ruleCandidates := ruleselect.Select(s.Rules, req.Query, ruleselect.Context{})
	if top := ruleselect.TopConfidence(ruleCandidates); top >= s.Config.RuleThreshold {
		records := s.hydrate(ctx, s.resolveCandidateIDs(ctx, ruleCandidates, topK))
		return Result{Records: records, Method: MethodRuleBased, Confidence: top}, nil
	}

	// Tier 2: semantic.
	var shortlist []index.SearchResult
	semanticFailed := false
	if s.Embed != nil && s.Index != nil {
		vec, err := s.Embed.EmbedText(ctx, req.Query)
		if err != nil {
			semanticFailed = true
		} else {
			shortlist = s.Index.Search(ctx, vec, s.Config.TopKRetrieval, req.DomainFilter)
			if len(shortlist) > 0 && shortlist[0].Score >= s.Config.SemanticThreshold {
				ids := make([]string, 0, topK)
				for i, r := range shortlist {
					if i >= topK {
						break
					}
					ids = append(ids, r.FunctionID)
				}
				records := s.hydrate(ctx, ids)
				return Result{Records: records, Method: MethodSemantic, Confidence: shortlist[0].Score}, nil
			}
		}
	} else {
		semanticFailed = true
	}

	// Tier 3: LLM reasoning, using whatever shortlist tier 2 produced
	// (possibly empty) as the candidate pool.
	if s.Model != nil {
		ranked, err := s.rankWithLLM(ctx, req, shortlist, topK)
		if err == nil {
			if len(ranked) == 0 {
				return Result{Method: MethodLLMReasoning, Confidence: 0}, nil
			}
			return Result{Records: ranked, Method: MethodLLMReasoning, Confidence: s.Config.LLMConfidence}, nil
		}
	}

	// LLM failed or absent: return the best available shortlist.
	if len(shortlist) > 0 {
		ids := make([]string, 0, topK)
		for i, r := range shortlist {
			if i >= topK {
				break
			}
			ids = append(ids, r.FunctionID)
		}
		conf := shortlist[0].Score
		return Result{Records: s.hydrate(ctx, ids), Method: MethodSemantic, Confidence: conf}, nil
	}
	if len(ruleCandidates) > 0 {
		conf := ruleselect.TopConfidence(ruleCandidates)
		return Result{Records: s.hydrate(ctx, s.resolveCandidateIDs(ctx, ruleCandidates, topK)), Method: MethodRuleBased, Confidence: conf}, nil
	}
	_ = semanticFailed
	return Result{Method: MethodNone, Confidence: 0}, nil
}

// resolveCandidateIDs expands each rule candidate's function_id against the
// registry via Store.MatchIDs (wildcard/service-prefix patterns like
// "energy/*" resolve to every matching id; a literal id resolves to itself),
// preserving the candidates' relevance order and deduplicating, then
// truncates to topK.
func (s *Selector) resolveCandidateIDs(ctx context.Context, candidates []ruleselect.Candidate, topK int) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, topK)
	for _, c := range candidates {
		for _, id := range s.Store.MatchIDs(ctx, c.FunctionID) {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			if topK > 0 && len(ids) >= topK {
				return ids
			}
		}
	}
	return ids
}

func (s *Selector) hydrate(ctx context.Context, ids []string) []*registry.Record {
	out := make([]*registry.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.Store.GetByID(ctx, id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// rankItem is the shape the ranking prompt asks the model to emit for each
// candidate, mirroring rank.go's extractRankedItems expectations.
type rankItem struct {
	FunctionID string  `json:"function_id"`
	Score      float64 `json:"score"`
}

func (s *Selector) rankWithLLM(ctx context.Context, req Request, shortlist []index.SearchResult, topK int) ([]*registry.Record, error) {
	prompt := buildSelectionPrompt(req, shortlist, topK)
	resp, err := s.Model.Generate(ctx, &llm.GenerateRequest{
		Messages: []llm.Message{llm.NewSystemMessage(prompt), llm.NewUserMessage(req.Query)},
		Options:  &llm.Options{ResponseFormat: llm.ResponseFormatJSON},
	})
	if err != nil {
		return nil, err
	}
	items, err := extractRankedItems(resp.Text())
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(shortlist))
	for _, r := range shortlist {
		allowed[r.FunctionID] = true
	}

	out := make([]*registry.Record, 0, topK)
	for _, item := range items {
		if len(out) >= topK {
			break
		}
		if len(shortlist) > 0 && !allowed[item.FunctionID] {
			continue // discard ids outside the shortlist when one exists (§4.4)
		}
		rec, ok := s.Store.GetByID(ctx, item.FunctionID)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func buildSelectionPrompt(req Request, shortlist []index.SearchResult, topK int) string {
	var sb strings.Builder
	sb.WriteString("You select which functions best answer a user query.\n")
	if req.Instructions != "" {
		sb.WriteString("Instructions: ")
		sb.WriteString(req.Instructions)
		sb.WriteString("\n")
	}
	if len(req.History) > 0 {
		sb.WriteString("Conversation history:\n")
		for _, turn := range req.History {
			fmt.Fprintf(&sb, "- %s: %s\n", turn.Role, turn.Content)
		}
	}
	sb.WriteString("Candidates:\n")
	for _, c := range shortlist {
		fmt.Fprintf(&sb, "- function_id=%s name=%s description=%s\n", c.FunctionID, c.Record.Name, c.Record.Description)
	}
	fmt.Fprintf(&sb, "Return a JSON array of at most %d objects, each {\"function_id\": string, \"score\": number}, ordered by relevance, most relevant first. Return only the JSON array.\n", topK)
	return sb.String()
}

// extractRankedItems finds the first "[" and last "]" in text and parses the
// JSON array between them, tolerating a model that wraps the array in prose
// (same defensive idiom as rank.go's extractRankedItems, adapted from object
// to array extraction).
func extractRankedItems(text string) ([]rankItem, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("hybrid: no JSON array found in LLM response")
	}
	var items []rankItem
	if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("hybrid: parse ranked items: %w", err)
	}
	return items, nil
}
