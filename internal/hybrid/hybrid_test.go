package hybrid

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactquery/agent/internal/index"
	"github.com/reactquery/agent/internal/llm"
	"github.com/reactquery/agent/internal/registry"
	"github.com/reactquery/agent/internal/ruleselect"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type fakeModel struct {
	text string
	err  error
}

func (f *fakeModel) Generate(context.Context, *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Choices: []llm.Choice{{Message: llm.NewAssistantMessage(f.text)}}}, nil
}

func seedStore(t *testing.T) *registry.Store {
	t.Helper()
	store := registry.New()
	for _, id := range []string{"get_energy_kpi", "get_weather_forecast", "get_invoice"} {
		require.NoError(t, store.Upsert(context.Background(), &registry.Record{
			FunctionID: id,
			Name:       id,
			Description: "desc for " + id,
			Domain:     "test",
			Endpoint:   "https://api.example.test/" + id,
			Method:     registry.MethodGET,
			ParameterSchema: map[string]registry.ParamSpec{
				"region": {Type: registry.ParamString},
			},
		}))
	}
	return store
}

func TestSelectFunctions_RuleTierWinsAboveThreshold(t *testing.T) {
	store := seedStore(t)
	sel := &Selector{
		Store: store,
		Rules: []ruleselect.Rule{
			{Keywords: []string{"energy"}, FunctionIDs: []string{"get_energy_kpi"}, Confidence: 0.9},
		},
		Config: DefaultConfig(),
	}
	res, err := sel.SelectFunctions(context.Background(), Request{Query: "energy kpi please"}, 5)
	require.NoError(t, err)
	assert.Equal(t, MethodRuleBased, res.Method)
	assert.Equal(t, 0.9, res.Confidence)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "get_energy_kpi", res.Records[0].FunctionID)
}

func TestSelectFunctions_RuleTierResolvesWildcardFunctionIDs(t *testing.T) {
	store := registry.New()
	for _, id := range []string{"energy/kpi", "energy/forecast", "billing/invoice"} {
		require.NoError(t, store.Upsert(context.Background(), &registry.Record{
			FunctionID: id, Name: id, Endpoint: "https://api.example.test/" + id, Method: registry.MethodGET,
		}))
	}
	sel := &Selector{
		Store: store,
		Rules: []ruleselect.Rule{
			{Keywords: []string{"energy"}, FunctionIDs: []string{"energy/*"}, Confidence: 0.9},
		},
		Config: DefaultConfig(),
	}
	res, err := sel.SelectFunctions(context.Background(), Request{Query: "energy status"}, 5)
	require.NoError(t, err)
	assert.Equal(t, MethodRuleBased, res.Method)
	var ids []string
	for _, r := range res.Records {
		ids = append(ids, r.FunctionID)
	}
	assert.ElementsMatch(t, []string{"energy/kpi", "energy/forecast"}, ids)
}

func TestSelectFunctions_SemanticTierWinsWhenRuleBelowThreshold(t *testing.T) {
	store := seedStore(t)
	idx := index.New()
	idx.Upsert(context.Background(), "get_weather_forecast", []float32{1, 0}, index.Record{Name: "get_weather_forecast", Description: "weather"})
	idx.Upsert(context.Background(), "get_invoice", []float32{0, 1}, index.Record{Name: "get_invoice", Description: "invoice"})

	sel := &Selector{
		Store: store,
		Index: idx,
		Embed: &fakeEmbedder{vec: []float32{1, 0}},
		Config: DefaultConfig(),
	}
	res, err := sel.SelectFunctions(context.Background(), Request{Query: "what's the weather"}, 5)
	require.NoError(t, err)
	assert.Equal(t, MethodSemantic, res.Method)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "get_weather_forecast", res.Records[0].FunctionID)
}

func TestSelectFunctions_LLMTierUsedWhenSemanticBelowThreshold(t *testing.T) {
	store := seedStore(t)
	idx := index.New()
	idx.Upsert(context.Background(), "get_weather_forecast", []float32{0, 1}, index.Record{Name: "get_weather_forecast", Description: "weather"})

	sel := &Selector{
		Store: store,
		Index: idx,
		Embed: &fakeEmbedder{vec: []float32{1, 0}}, // orthogonal -> score 0, below threshold
		Model: &fakeModel{text: `Sure, here you go: [{"function_id":"get_weather_forecast","score":0.9}]`},
		Config: DefaultConfig(),
	}
	res, err := sel.SelectFunctions(context.Background(), Request{Query: "forecast?"}, 5)
	require.NoError(t, err)
	assert.Equal(t, MethodLLMReasoning, res.Method)
	assert.Equal(t, 0.65, res.Confidence)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "get_weather_forecast", res.Records[0].FunctionID)
}

func TestSelectFunctions_LLMReturnsEmptyList_ZeroConfidence(t *testing.T) {
	store := seedStore(t)
	sel := &Selector{
		Store: store,
		Model: &fakeModel{text: `[]`},
		Config: DefaultConfig(),
	}
	res, err := sel.SelectFunctions(context.Background(), Request{Query: "nothing relevant"}, 5)
	require.NoError(t, err)
	assert.Equal(t, MethodLLMReasoning, res.Method)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Empty(t, res.Records)
}

func TestSelectFunctions_EmbedderFailure_FallsThroughToLLM(t *testing.T) {
	store := seedStore(t)
	sel := &Selector{
		Store: store,
		Index: index.New(),
		Embed: &fakeEmbedder{err: errors.New("embed service down")},
		Model: &fakeModel{text: `[{"function_id":"get_invoice","score":0.8}]`},
		Config: DefaultConfig(),
	}
	res, err := sel.SelectFunctions(context.Background(), Request{Query: "invoice please"}, 5)
	require.NoError(t, err)
	assert.Equal(t, MethodLLMReasoning, res.Method)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "get_invoice", res.Records[0].FunctionID)
}

func TestSelectFunctions_LLMFailure_FallsBackToSemanticShortlist(t *testing.T) {
	store := seedStore(t)
	idx := index.New()
	idx.Upsert(context.Background(), "get_invoice", []float32{1, 0}, index.Record{Name: "get_invoice"})

	sel := &Selector{
		Store: store,
		Index: idx,
		Embed: &fakeEmbedder{vec: []float32{0, 1}}, // below semantic threshold
		Model: &fakeModel{err: errors.New("model unavailable")},
		Config: DefaultConfig(),
	}
	res, err := sel.SelectFunctions(context.Background(), Request{Query: "invoice"}, 5)
	require.NoError(t, err)
	assert.Equal(t, MethodSemantic, res.Method)
	require.Len(t, res.Records, 1)
}

func TestSelectFunctions_AllTiersEmpty_ReturnsNone(t *testing.T) {
	store := seedStore(t)
	sel := &Selector{Store: store, Config: DefaultConfig()}
	res, err := sel.SelectFunctions(context.Background(), Request{Query: "anything"}, 5)
	require.NoError(t, err)
	assert.Equal(t, MethodNone, res.Method)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Empty(t, res.Records)
}
