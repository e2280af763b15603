package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id string) *Record {
	return &Record{
		FunctionID:  id,
		Name:        "get_energy_kpi",
		Description: "Returns energy KPI for a region and period",
		Domain:      "energy",
		Endpoint:    "https://api.example.test/energy/kpi",
		Method:      MethodGET,
		ParameterSchema: map[string]ParamSpec{
			"region": {Type: ParamString, Required: true, Enum: []interface{}{"North", "South"}},
			"period": {Type: ParamString, Required: true, Enum: []interface{}{"today", "this_week"}},
		},
		PopularityScore: 0.9,
	}
}

func TestStore_UpsertThenGetByID(t *testing.T) {
	s := New()
	rec := sampleRecord("get_energy_kpi")
	require.NoError(t, s.Upsert(context.Background(), rec))

	got, ok := s.GetByID(context.Background(), "get_energy_kpi")
	require.True(t, ok)
	assert.Equal(t, "energy", got.Domain)
}

func TestStore_GetByID_NotFound(t *testing.T) {
	s := New()
	_, ok := s.GetByID(context.Background(), "missing")
	assert.False(t, ok)
}

func TestStore_List_ExcludesDeprecatedByDefault(t *testing.T) {
	s := New()
	active := sampleRecord("active_fn")
	deprecated := sampleRecord("deprecated_fn")
	deprecated.Deprecated = true
	require.NoError(t, s.Upsert(context.Background(), active))
	require.NoError(t, s.Upsert(context.Background(), deprecated))

	list := s.List(context.Background(), Filter{})
	var ids []string
	for _, r := range list {
		ids = append(ids, r.FunctionID)
	}
	assert.Contains(t, ids, "active_fn")
	assert.NotContains(t, ids, "deprecated_fn")

	listAll := s.List(context.Background(), Filter{IncludeDeprecated: true})
	assert.Len(t, listAll, 2)

	// Deprecated records remain retrievable by id (§4.1 guarantee).
	got, ok := s.GetByID(context.Background(), "deprecated_fn")
	require.True(t, ok)
	assert.True(t, got.Deprecated)
}

func TestStore_Upsert_RejectsMismatchedEnumType(t *testing.T) {
	s := New()
	rec := sampleRecord("bad_enum")
	rec.ParameterSchema["region"] = ParamSpec{Type: ParamString, Required: true, Enum: []interface{}{42}}
	err := s.Upsert(context.Background(), rec)
	assert.Error(t, err)
}

func TestStore_SubscribeChanges_ObservesUpsertThenGetByID(t *testing.T) {
	s := New()
	events := s.SubscribeChanges()

	rec := sampleRecord("get_energy_kpi")
	require.NoError(t, s.Upsert(context.Background(), rec))

	select {
	case evt := <-events:
		assert.Equal(t, OpUpsert, evt.Op)
		assert.Equal(t, "get_energy_kpi", evt.FunctionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for upsert event")
	}

	// A reader observing the upsert event is guaranteed get_by_id now returns it.
	got, ok := s.GetByID(context.Background(), "get_energy_kpi")
	require.True(t, ok)
	assert.Equal(t, rec.Description, got.Description)
}

func TestStore_Delete_EmitsEventAndRemovesFromList(t *testing.T) {
	s := New()
	rec := sampleRecord("to_delete")
	require.NoError(t, s.Upsert(context.Background(), rec))
	events := s.SubscribeChanges()

	s.Delete(context.Background(), "to_delete")

	select {
	case evt := <-events:
		assert.Equal(t, OpDelete, evt.Op)
		assert.Equal(t, "to_delete", evt.FunctionID)
		assert.Nil(t, evt.Record)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delete event")
	}

	_, ok := s.GetByID(context.Background(), "to_delete")
	assert.False(t, ok)
}
