package synth

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactquery/agent/internal/llm"
	"github.com/reactquery/agent/internal/registry"
)

func energySchema() map[string]registry.ParamSpec {
	return map[string]registry.ParamSpec{
		"region": {Type: registry.ParamString, Required: true, Enum: []interface{}{"North", "South", "Central"}},
		"period": {Type: registry.ParamString, Required: true, Enum: []interface{}{"today", "this_week", "last_week"}},
	}
}

func TestSynthesize_TemplateTierMatches(t *testing.T) {
	s := &Synthesizer{
		Templates: []Template{
			{
				Name:       "energy_kpi_region_period",
				Patterns:   []*regexp.Regexp{regexp.MustCompile(`energy kpi for (\w+)`)},
				Parameters: map[string]string{"region": "{group1}", "period": "today"},
			},
		},
	}
	res := s.Synthesize(context.Background(), Request{
		FunctionID:      "get_energy_kpi",
		ParameterSchema: energySchema(),
		Query:           "energy kpi for North",
	})
	require.True(t, res.OK)
	assert.Equal(t, StrategyTemplate, res.Strategy)
	assert.Equal(t, "North", res.Parameters["region"])
	assert.Equal(t, "today", res.Parameters["period"])
}

func TestSynthesize_ExtractionTierResolvesAliasesAndDates(t *testing.T) {
	s := &Synthesizer{Clock: FixedClock{At: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)}}
	res := s.Synthesize(context.Background(), Request{
		FunctionID:      "get_energy_kpi",
		ParameterSchema: energySchema(),
		Query:           "energy kpi miền Bắc hôm nay",
	})
	require.True(t, res.OK)
	assert.Equal(t, StrategyExtract, res.Strategy)
	assert.Equal(t, "North", res.Parameters["region"])
	assert.Equal(t, "today", res.Parameters["period"])
}

func TestSynthesize_ContextReuseFillsFromPreviousResult(t *testing.T) {
	s := &Synthesizer{Clock: FixedClock{At: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)}}
	res := s.Synthesize(context.Background(), Request{
		FunctionID:      "get_energy_kpi",
		ParameterSchema: energySchema(),
		Query:           "energy kpi please", // no region/period extractable
		PreviousResults: []PreviousResult{
			{FunctionID: "get_energy_kpi", Parameters: map[string]interface{}{"region": "South", "period": "this_week"}},
		},
	})
	require.True(t, res.OK)
	assert.Equal(t, StrategyContext, res.Strategy)
	assert.Equal(t, "South", res.Parameters["region"])
	assert.Equal(t, "this_week", res.Parameters["period"])
}

func TestSynthesize_ContextReuseFromResponseField(t *testing.T) {
	s := &Synthesizer{}
	res := s.Synthesize(context.Background(), Request{
		FunctionID:      "get_energy_kpi",
		ParameterSchema: energySchema(),
		Query:           "energy kpi",
		PreviousResults: []PreviousResult{
			{FunctionID: "lookup_region", Response: map[string]interface{}{"region": "Central"}},
			{FunctionID: "lookup_period", Response: map[string]interface{}{"period": "last_week"}},
		},
	})
	require.True(t, res.OK)
	assert.Equal(t, "Central", res.Parameters["region"])
	assert.Equal(t, "last_week", res.Parameters["period"])
}

type fakeModel struct{ text string }

func (f *fakeModel) Generate(context.Context, *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Choices: []llm.Choice{{Message: llm.NewAssistantMessage(f.text)}}}, nil
}

func TestSynthesize_LLMFallbackWhenAllElseFails(t *testing.T) {
	s := &Synthesizer{
		Model: &fakeModel{text: `Here: {"region": "South", "period": "today"}`},
	}
	res := s.Synthesize(context.Background(), Request{
		FunctionID:      "get_energy_kpi",
		ParameterSchema: energySchema(),
		Query:           "xyz unrelated text with no signals",
	})
	require.True(t, res.OK)
	assert.Equal(t, StrategyLLM, res.Strategy)
	assert.Equal(t, "South", res.Parameters["region"])
}

func TestSynthesize_AllStrategiesFail_ReturnsFirstMissingError(t *testing.T) {
	s := &Synthesizer{}
	res := s.Synthesize(context.Background(), Request{
		FunctionID:      "get_energy_kpi",
		ParameterSchema: energySchema(),
		Query:           "nothing extractable here",
	})
	assert.False(t, res.OK)
	assert.Error(t, res.Err)
	assert.Equal(t, StrategyLLM, res.Strategy)
}

func TestValidate_RejectsMissingRequired(t *testing.T) {
	err := Validate(energySchema(), map[string]interface{}{"region": "North"})
	assert.Error(t, err)
}

func TestValidate_RejectsEnumViolation(t *testing.T) {
	err := Validate(energySchema(), map[string]interface{}{"region": "West", "period": "today"})
	assert.Error(t, err)
}

func TestValidate_AcceptsValidParameters(t *testing.T) {
	err := Validate(energySchema(), map[string]interface{}{"region": "North", "period": "today"})
	assert.NoError(t, err)
}
