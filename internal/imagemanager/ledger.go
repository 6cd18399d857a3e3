package imagemanager

import (
	"context"
	"fmt"
	"time"
)

// inFlight is the ledger entry of one outstanding fetch.
type inFlight struct {
	id      RequestID
	kind    RequestKind
	assetID string
	cancel  context.CancelFunc
	task    *Task
	started time.Time

	// guarded by Manager.mu until the entry leaves the ledger
	observers []ResultFunc
	progress  []ProgressFunc
}

func (e *inFlight) attach(onResult ResultFunc, onProgress ProgressFunc) {
	if onResult != nil {
		e.observers = append(e.observers, onResult)
	}
	if onProgress != nil {
		e.progress = append(e.progress, onProgress)
	}
}

// ledger holds at most one entry per request id. Not safe for concurrent
// use; the Manager serialises access.
type ledger struct {
	entries  map[RequestID]*inFlight
	perAsset map[string]int
}

func newLedger() ledger {
	return ledger{
		entries:  make(map[RequestID]*inFlight),
		perAsset: make(map[string]int),
	}
}

func (l *ledger) get(id RequestID) *inFlight {
	return l.entries[id]
}

// insert panics if id already has an entry: the caller must have looked it
// up under the same lock.
func (l *ledger) insert(e *inFlight) {
	if _, ok := l.entries[e.id]; ok {
		panic(fmt.Sprintf("imagemanager: duplicate ledger entry for request %s", e.id))
	}
	l.entries[e.id] = e
	l.perAsset[e.assetID]++
}

// remove deletes e if it is still the entry for its id.
func (l *ledger) remove(e *inFlight) bool {
	if l.entries[e.id] != e {
		return false
	}
	delete(l.entries, e.id)
	if n := l.perAsset[e.assetID] - 1; n > 0 {
		l.perAsset[e.assetID] = n
	} else {
		delete(l.perAsset, e.assetID)
	}
	return true
}

func (l *ledger) assetActive(assetID string) bool {
	return l.perAsset[assetID] > 0
}

func (l *ledger) len() int {
	return len(l.entries)
}

func (l *ledger) all() []*inFlight {
	out := make([]*inFlight, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}
