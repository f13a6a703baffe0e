package exercise

import "github.com/jwebster45206/map-engine/pkg/state"

// Bundles is the set of exercise bundles of a map, keyed by stage id.
type Bundles struct {
	list []*Bundle
	byID map[string]*Bundle
}

func NewBundles(defs []BundleDefinition, cfg Config, hooks Hooks) *Bundles {
	bs := &Bundles{byID: make(map[string]*Bundle, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			continue
		}
		if _, dup := bs.byID[d.ID]; dup {
			continue
		}
		b := NewBundle(d, cfg, hooks)
		bs.list = append(bs.list, b)
		bs.byID[d.ID] = b
	}
	return bs
}

func (bs *Bundles) All() []*Bundle        { return bs.list }
func (bs *Bundles) Get(id string) *Bundle { return bs.byID[id] }

// SetReachable marks bundles whose stage is in reachable.
func (bs *Bundles) SetReachable(reachable map[string]bool) {
	for _, b := range bs.list {
		b.SetReachable(reachable[b.id])
	}
}

// Score sums reachable bundles only.
func (bs *Bundles) Score() int {
	total := 0
	for _, b := range bs.list {
		if b.reachable {
			total += b.Score()
		}
	}
	return total
}

// MaxScore sums reachable bundles only.
func (bs *Bundles) MaxScore() int {
	total := 0
	for _, b := range bs.list {
		if b.reachable {
			total += b.MaxScore()
		}
	}
	return total
}

func (bs *Bundles) AnswerGiven() bool {
	for _, b := range bs.list {
		if b.reachable && b.AnswerGiven() {
			return true
		}
	}
	return false
}

// Stop halts every timer and pending notification.
func (bs *Bundles) Stop() {
	for _, b := range bs.list {
		b.Stop()
	}
}

// Reset reinitializes every bundle, from snap where it holds an entry.
func (bs *Bundles) Reset(snap *state.Snapshot) {
	for _, b := range bs.list {
		if stored, ok := snap.Bundle(b.id); ok {
			b.Reset(&stored)
			continue
		}
		b.Reset(nil)
	}
}

func (bs *Bundles) Snapshot() []state.BundleSnapshot {
	out := make([]state.BundleSnapshot, 0, len(bs.list))
	for _, b := range bs.list {
		out = append(out, b.Snapshot())
	}
	return out
}
