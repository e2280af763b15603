package index

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/reactquery/agent/internal/embedder"
	"github.com/reactquery/agent/internal/registry"
)

// Syncer keeps an Index eventually consistent with a registry.Store's CDC
// stream (§4.1 guarantee, §9 "CDC-driven index"). It is idempotent on
// replay: re-applying the same upsert event is a harmless overwrite, and
// deleting an already-absent id is a no-op.
type Syncer struct {
	store    *registry.Store
	index    *Index
	embed    embedder.Embedder
	logw     io.Writer
	refresh  time.Duration // steady-state full-resync cadence, default meets the ≤5s freshness target
	backoff  time.Duration
	maxBack  time.Duration
}

// NewSyncer wires a registry.Store, an Index, and an Embedder together. The
// refresh cadence defaults to the §4.2 freshness target (≤5s).
func NewSyncer(store *registry.Store, idx *Index, embed embedder.Embedder) *Syncer {
	return &Syncer{
		store:   store,
		index:   idx,
		embed:   embed,
		refresh: 5 * time.Second,
		backoff: time.Second,
		maxBack: 30 * time.Second,
	}
}

// SetLogger attaches a debug writer (ambient logging convention, mirrors
// Registry.SetDebugLogger in the teacher).
func (s *Syncer) SetLogger(w io.Writer) { s.logw = w }

func (s *Syncer) logf(format string, args ...interface{}) {
	if s.logw == nil {
		return
	}
	fmt.Fprintf(s.logw, "[index] "+format+"\n", args...)
}

// ApplyEvent embeds and upserts (or deletes) a single CDC event. It is the
// unit the background Run loop and direct tests both call, so tests do not
// need to depend on timing.
func (s *Syncer) ApplyEvent(ctx context.Context, evt registry.Event) error {
	switch evt.Op {
	case registry.OpDelete:
		s.index.Delete(ctx, evt.FunctionID)
		return nil
	case registry.OpUpsert:
		if evt.Record == nil {
			return nil
		}
		if evt.Record.Deprecated {
			// Deprecated functions must never appear in search results (§3, §4.2).
			s.index.Delete(ctx, evt.FunctionID)
			return nil
		}
		vec, err := s.embed.EmbedText(ctx, evt.Record.Name+" "+evt.Record.Description)
		if err != nil {
			return fmt.Errorf("index: embed %s: %w", evt.FunctionID, err)
		}
		s.index.Upsert(ctx, evt.FunctionID, vec, Record{
			Name:            evt.Record.Name,
			Description:     evt.Record.Description,
			Domain:          evt.Record.Domain,
			PopularityScore: evt.Record.PopularityScore,
		})
		return nil
	default:
		return nil
	}
}

// Bootstrap performs a full resync from the Store's current List(), then
// drops index entries the Store no longer lists — used at startup and as the
// steady-state refresh fallback for events dropped under backpressure (see
// registry.Store.publish).
func (s *Syncer) Bootstrap(ctx context.Context) error {
	live := make(map[string]bool)
	for _, rec := range s.store.List(ctx, registry.Filter{}) {
		live[rec.FunctionID] = true
		if err := s.ApplyEvent(ctx, registry.Event{Op: registry.OpUpsert, FunctionID: rec.FunctionID, Record: rec}); err != nil {
			s.logf("bootstrap: %v", err)
		}
	}
	s.index.mu.RLock()
	var stale []string
	for id := range s.index.recs {
		if !live[id] {
			stale = append(stale, id)
		}
	}
	s.index.mu.RUnlock()
	for _, id := range stale {
		s.index.Delete(ctx, id)
	}
	return nil
}

// Run consumes the Store's CDC stream until ctx is cancelled, reconciling
// with a full Bootstrap on a steady cadence and backing off exponentially
// after embed failures, mirroring Registry.monitorServer's
// backoff-then-steady-cadence idiom.
func (s *Syncer) Run(ctx context.Context) {
	events := s.store.SubscribeChanges()
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	backoff := s.backoff
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			if err := s.ApplyEvent(ctx, evt); err != nil {
				s.logf("apply event failed, backing off %s: %v", backoff, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > s.maxBack {
					backoff = s.maxBack
				}
				continue
			}
			backoff = s.backoff
		case <-ticker.C:
			if err := s.Bootstrap(ctx); err != nil {
				s.logf("periodic resync failed: %v", err)
			}
		}
	}
}
