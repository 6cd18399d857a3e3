package imagemanager

import "sync/atomic"

// Subscription is a progress observer handle returned by Manager.Observe.
// Release it when the subscriber goes away.
type Subscription struct {
	m          *Manager
	subscriber string
	assetID    string
	fn         ProgressFunc
	released   atomic.Bool
}

// Release unregisters the observer. Safe to call more than once, and after
// the request it observed has finished.
func (s *Subscription) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.m.mu.Lock()
	removed := s.m.registry.removeSub(s)
	s.m.mu.Unlock()
	if removed {
		observerRemoved(1)
	}
}

// Subscriber returns the subscriber identity.
func (s *Subscription) Subscriber() string { return s.subscriber }

// AssetID returns the observed asset's identifier.
func (s *Subscription) AssetID() string { return s.assetID }

// registry maps asset id and subscriber to a progress subscription. Not
// safe for concurrent use; the Manager serialises access.
type registry struct {
	byAsset map[string]map[string]*Subscription
}

func newRegistry() registry {
	return registry{byAsset: make(map[string]map[string]*Subscription)}
}

// add registers s, replacing any previous subscription of the same pair.
// It returns the replaced subscription, if any.
func (r *registry) add(s *Subscription) *Subscription {
	subs := r.byAsset[s.assetID]
	if subs == nil {
		subs = make(map[string]*Subscription)
		r.byAsset[s.assetID] = subs
	}
	prev := subs[s.subscriber]
	subs[s.subscriber] = s
	return prev
}

func (r *registry) remove(subscriber, assetID string) *Subscription {
	subs := r.byAsset[assetID]
	s, ok := subs[subscriber]
	if !ok {
		return nil
	}
	delete(subs, subscriber)
	if len(subs) == 0 {
		delete(r.byAsset, assetID)
	}
	return s
}

// removeSub removes s only if it is still the registered subscription.
func (r *registry) removeSub(s *Subscription) bool {
	if r.byAsset[s.assetID][s.subscriber] != s {
		return false
	}
	r.remove(s.subscriber, s.assetID)
	return true
}

func (r *registry) forAsset(assetID string) []ProgressFunc {
	subs := r.byAsset[assetID]
	if len(subs) == 0 {
		return nil
	}
	out := make([]ProgressFunc, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.fn)
	}
	return out
}

// purge drops every subscription of assetID and returns how many.
func (r *registry) purge(assetID string) int {
	subs := r.byAsset[assetID]
	for _, s := range subs {
		s.released.Store(true)
	}
	delete(r.byAsset, assetID)
	return len(subs)
}

func (r *registry) count() int {
	n := 0
	for _, subs := range r.byAsset {
		n += len(subs)
	}
	return n
}
