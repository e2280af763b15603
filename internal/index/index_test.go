package index

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactquery/agent/internal/registry"
)

// fakeEmbedder is a deterministic Embedder: it marks which words of a small
// fixed vocabulary occur in the text, so related descriptions land close in cosine space,
// without depending on any network call.
type fakeEmbedder struct {
	calls int
}

var vocab = []string{"energy", "kpi", "region", "weather", "forecast", "invoice", "billing"}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.calls++
	lower := strings.ToLower(text)
	vec := make([]float32, len(vocab))
	for i, tok := range vocab {
		if strings.Contains(lower, tok) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func sampleRecord(id, name, desc, domain string) *registry.Record {
	return &registry.Record{
		FunctionID:  id,
		Name:        name,
		Description: desc,
		Domain:      domain,
		Endpoint:    "https://api.example.test/" + id,
		Method:      registry.MethodGET,
		ParameterSchema: map[string]registry.ParamSpec{
			"region": {Type: registry.ParamString, Required: true},
		},
		PopularityScore: 0.5,
	}
}

func TestIndex_UpsertAndSearch(t *testing.T) {
	idx := New()
	idx.Upsert(context.Background(), "get_energy_kpi", []float32{1, 1, 1, 0, 0, 0, 0}, Record{
		Name: "get_energy_kpi", Description: "energy kpi region", Domain: "energy",
	})
	idx.Upsert(context.Background(), "get_weather_forecast", []float32{0, 0, 0, 1, 1, 0, 0}, Record{
		Name: "get_weather_forecast", Description: "weather forecast", Domain: "weather",
	})

	results := idx.Search(context.Background(), []float32{1, 1, 0, 0, 0, 0, 0}, 5, "")
	require.Len(t, results, 2)
	assert.Equal(t, "get_energy_kpi", results[0].FunctionID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestIndex_Search_DomainFilter(t *testing.T) {
	idx := New()
	idx.Upsert(context.Background(), "a", []float32{1, 0}, Record{Domain: "energy"})
	idx.Upsert(context.Background(), "b", []float32{1, 0}, Record{Domain: "weather"})

	results := idx.Search(context.Background(), []float32{1, 0}, 10, "weather")
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].FunctionID)
}

func TestIndex_Search_TopKTruncates(t *testing.T) {
	idx := New()
	for i := 0; i < 5; i++ {
		idx.Upsert(context.Background(), fmt.Sprintf("fn_%d", i), []float32{1, 0}, Record{})
	}
	results := idx.Search(context.Background(), []float32{1, 0}, 2, "")
	assert.Len(t, results, 2)
}

func TestIndex_Delete_RemovesFromSearch(t *testing.T) {
	idx := New()
	idx.Upsert(context.Background(), "fn", []float32{1, 0}, Record{})
	idx.Delete(context.Background(), "fn")

	results := idx.Search(context.Background(), []float32{1, 0}, 10, "")
	assert.Empty(t, results)
	assert.Equal(t, 0, idx.Len())
}

func TestSyncer_ApplyEvent_UpsertEmbedsAndStores(t *testing.T) {
	idx := New()
	embed := &fakeEmbedder{}
	store := registry.New()
	syncer := NewSyncer(store, idx, embed)

	rec := sampleRecord("get_energy_kpi", "get_energy_kpi", "Returns energy KPI for a region", "energy")
	err := syncer.ApplyEvent(context.Background(), registry.Event{Op: registry.OpUpsert, FunctionID: rec.FunctionID, Record: rec})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 1, embed.calls)

	results := idx.Search(context.Background(), []float32{1, 1, 0, 0, 0, 0, 0}, 5, "")
	require.Len(t, results, 1)
	assert.Equal(t, "get_energy_kpi", results[0].FunctionID)
}

func TestSyncer_ApplyEvent_DeprecatedRecordIsNeverIndexed(t *testing.T) {
	idx := New()
	embed := &fakeEmbedder{}
	store := registry.New()
	syncer := NewSyncer(store, idx, embed)

	rec := sampleRecord("old_fn", "old_fn", "Deprecated energy lookup", "energy")
	rec.Deprecated = true
	err := syncer.ApplyEvent(context.Background(), registry.Event{Op: registry.OpUpsert, FunctionID: rec.FunctionID, Record: rec})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestSyncer_ApplyEvent_Delete(t *testing.T) {
	idx := New()
	embed := &fakeEmbedder{}
	store := registry.New()
	syncer := NewSyncer(store, idx, embed)

	idx.Upsert(context.Background(), "fn", []float32{1, 0, 0, 0, 0, 0, 0}, Record{})
	err := syncer.ApplyEvent(context.Background(), registry.Event{Op: registry.OpDelete, FunctionID: "fn"})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestSyncer_Bootstrap_IndexesAllActiveRecords(t *testing.T) {
	idx := New()
	embed := &fakeEmbedder{}
	store := registry.New()
	syncer := NewSyncer(store, idx, embed)

	require.NoError(t, store.Upsert(context.Background(), sampleRecord("get_energy_kpi", "get_energy_kpi", "energy kpi region", "energy")))
	require.NoError(t, store.Upsert(context.Background(), sampleRecord("get_weather_forecast", "get_weather_forecast", "weather forecast", "weather")))

	require.NoError(t, syncer.Bootstrap(context.Background()))
	assert.Equal(t, 2, idx.Len())
}

func TestSyncer_Run_ConsumesLiveEvents(t *testing.T) {
	idx := New()
	embed := &fakeEmbedder{}
	store := registry.New()
	syncer := NewSyncer(store, idx, embed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go syncer.Run(ctx)

	require.NoError(t, store.Upsert(context.Background(), sampleRecord("get_energy_kpi", "get_energy_kpi", "energy kpi region", "energy")))

	assert.Eventually(t, func() bool {
		return idx.Len() == 1
	}, time.Second, 10*time.Millisecond)
}
