package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/reactquery/agent/internal/matcher"
)

// Op identifies the kind of change a CDC Event carries.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Event is one at-least-once CDC notification (§4.1): Record is nil for
// OpDelete.
type Event struct {
	Op         Op
	FunctionID string
	Record     *Record
}

// Filter narrows a List call by domain/tags/deprecated (§4.1).
type Filter struct {
	Domain          string
	Tags            []string
	IncludeDeprecated bool
}

// Store is the Function Registry Store (C1). It is safe for concurrent
// readers; mutation (the registry write path) is the only writer and is out
// of scope for the core, so Store's mutating methods (Upsert/Delete) stand in
// for that external write path purely so tests and the CDC consumer (C2) can
// exercise the contract end-to-end.
type Store struct {
	mu   sync.RWMutex
	recs map[string]*Record

	subMu sync.Mutex
	subs  []chan Event

	// perFunctionMu serialises CDC delivery per function_id so that a
	// reader observing an upsert is guaranteed a following get_by_id sees
	// it (§4.1 guarantee), matching the "serialised per function_id"
	// ordering requirement in §5.
	perFunctionMu sync.Map // function_id -> *sync.Mutex
}

// New creates an empty Store.
func New() *Store {
	return &Store{recs: map[string]*Record{}}
}

// GetByID returns the Function Record for id, including deprecated ones
// (§4.1: "Deprecated records remain retrievable by id").
func (s *Store) GetByID(_ context.Context, id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recs[id]
	if !ok {
		return nil, false
	}
	clone := *r
	return &clone, true
}

// List returns records matching filter, excluding deprecated ones unless
// filter.IncludeDeprecated is set (§4.1 default).
func (s *Store) List(_ context.Context, filter Filter) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.recs))
	for _, r := range s.recs {
		if r.Deprecated && !filter.IncludeDeprecated {
			continue
		}
		if filter.Domain != "" && r.Domain != filter.Domain {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(r.Tags, filter.Tags) {
			continue
		}
		clone := *r
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FunctionID < out[j].FunctionID })
	return out
}

func hasAnyTag(recTags, want []string) bool {
	set := make(map[string]struct{}, len(recTags))
	for _, t := range recTags {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// MatchIDs resolves a rule's function_id entry against the live catalogue,
// expanding wildcard/service-prefix patterns (e.g. "energy/*") via
// matcher.Match. A literal id resolves to itself, and also to any id whose
// service component or bare prefix it is under matcher.Match (e.g.
// "get_energy" also matches "get_energy_kpi"). Results are ordered by FunctionID for determinism and include
// deprecated records, mirroring GetByID's "deprecated records remain
// retrievable by id" guarantee (§4.1).
func (s *Store) MatchIDs(_ context.Context, pattern string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id := range s.recs {
		if matcher.Match(pattern, id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// SubscribeChanges returns a channel of CDC events. Delivery is
// at-least-once; consumers (C2) must be idempotent on replay.
func (s *Store) SubscribeChanges() <-chan Event {
	ch := make(chan Event, 64)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// Upsert inserts or replaces a Function Record and emits a CDC event. It
// stands in for the out-of-scope registry write path (§4.1) so that this
// module can be exercised end-to-end without a separate CRUD service.
func (s *Store) Upsert(ctx context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.withFunctionLock(r.FunctionID, func() {
		s.mu.Lock()
		clone := *r
		s.recs[r.FunctionID] = &clone
		s.mu.Unlock()
		s.publish(Event{Op: OpUpsert, FunctionID: r.FunctionID, Record: &clone})
	})
	return nil
}

// Delete removes a Function Record and emits a CDC delete event.
func (s *Store) Delete(ctx context.Context, functionID string) {
	s.withFunctionLock(functionID, func() {
		s.mu.Lock()
		delete(s.recs, functionID)
		s.mu.Unlock()
		s.publish(Event{Op: OpDelete, FunctionID: functionID})
	})
}

func (s *Store) withFunctionLock(functionID string, fn func()) {
	lockIface, _ := s.perFunctionMu.LoadOrStore(functionID, &sync.Mutex{})
	lock := lockIface.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()
	fn()
}

func (s *Store) publish(evt Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Slow consumer: drop to preserve at-least-once semantics for
			// others rather than blocking the writer; C2's background
			// refresh (startAutoRefresh-style) re-derives state from a
			// full List() periodically so a dropped event is not fatal.
		}
	}
}

// seedFile is the on-disk shape used by LoadSeed, matching the teacher's
// workspace YAML repositories (internal/workspace/repository/base).
type seedFile struct {
	Functions []*Record `yaml:"functions"`
}

// LoadSeed reads a YAML fixture of Function Records from an afs-addressable
// location (local path, file://, or any afs-supported scheme) and upserts
// each one, mirroring the teacher's afs-backed workspace loaders
// (internal/workspace/repository/base.Repository.Load).
func LoadSeed(ctx context.Context, s *Store, fs afs.Service, url string) error {
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return fmt.Errorf("registry: read seed %s: %w", url, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("registry: parse seed %s: %w", url, err)
	}
	for _, r := range seed.Functions {
		if err := s.Upsert(ctx, r); err != nil {
			return fmt.Errorf("registry: seed function %s: %w", r.FunctionID, err)
		}
	}
	return nil
}
