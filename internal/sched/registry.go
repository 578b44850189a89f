package sched

import "sync"

// registry is the single source of truth for "what state is job X in".
//
// Its lock covers only map shape (insert/lookup/remove); per-record state
// lives behind each record's own mutex. Lock order is registry then record,
// never the reverse.
type registry struct {
	mu   sync.Mutex
	recs map[string]*record
}

func newRegistry() *registry {
	return &registry{recs: map[string]*record{}}
}

// insert atomically registers the record unless an active record with the
// same ID exists. Two concurrent inserts of one ID yield exactly one success.
// A terminal record is replaced: resubmission after completion is legal.
func (g *registry) insert(rec *record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.recs[rec.id]; ok && !existing.statusNow().Terminal() {
		return ErrDuplicateJob
	}
	g.recs[rec.id] = rec
	return nil
}

func (g *registry) get(id string) (*record, bool) {
	g.mu.Lock()
	rec, ok := g.recs[id]
	g.mu.Unlock()
	return rec, ok
}

// remove evicts the record only when rec still owns the slot; a resubmission
// may have replaced it.
func (g *registry) remove(rec *record) {
	g.mu.Lock()
	if cur, ok := g.recs[rec.id]; ok && cur == rec {
		delete(g.recs, rec.id)
	}
	g.mu.Unlock()
}

// evictTerminal removes the record under id if it is terminal.
func (g *registry) evictTerminal(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.recs[id]
	if !ok || !rec.statusNow().Terminal() {
		return false
	}
	delete(g.recs, id)
	return true
}

// all returns a point-in-time slice of every registered record.
func (g *registry) all() []*record {
	g.mu.Lock()
	out := make([]*record, 0, len(g.recs))
	for _, rec := range g.recs {
		out = append(out, rec)
	}
	g.mu.Unlock()
	return out
}
