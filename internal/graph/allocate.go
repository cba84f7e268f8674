package graph

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/tensor"
)

// AllocateTensors gives storage to every data symbol that has no value and is
// not user-fed. Tensors come from the engine's resource manager; parameter and
// default tensors are filled with their init value. Scalars get their init
// value.
//
// With Config.ShareComputed, computed tensors are packed into shared storage
// slots by lifetime instead; this needs a staged graph.
func (g *Graph) AllocateTensors() {
	if g.cfg.ShareComputed {
		if g.state == StateUnsorted {
			panic(errors.Errorf("graph %q: shared allocation needs a staged graph", g.cfg.Label))
		}
		g.allocateShared()
	}

	res := g.eng.Resources()
	for _, s := range g.symbols {
		if !s.IsData() || s.value != nil || s.source == SourceUser {
			continue
		}
		if s.kind == KindScalar {
			s.value = ScalarValue(s.init)
			continue
		}
		st := res.AllocateTensor(s.shape)
		if s.source == SourceComputed {
			st.Clear()
		} else {
			st.Fill(s.init)
		}
		g.allocated = append(g.allocated, st)
		s.value = TensorValue{Store: st}
	}
}

// lifetime is the inclusive stage window during which a computed tensor must
// keep its contents: from its producer's stage to its last consumer's stage.
type lifetime struct {
	id          SymbolID
	first, last int
}

func (a lifetime) overlaps(b lifetime) bool {
	return a.first <= b.last && b.first <= a.last
}

type sharedSlot struct {
	store   *tensor.Store
	members []lifetime
}

// sharedPlan assigns computed tensors to storage slots.
type sharedPlan struct {
	slots  []*sharedSlot
	slotOf map[SymbolID]int
}

func (p *sharedPlan) has(id SymbolID) bool {
	_, ok := p.slotOf[id]
	return ok
}

// check verifies that no two members of a slot are alive in the same stage.
func (p *sharedPlan) check() error {
	for i, slot := range p.slots {
		for a := 0; a < len(slot.members); a++ {
			for b := a + 1; b < len(slot.members); b++ {
				if slot.members[a].overlaps(slot.members[b]) {
					return errors.Errorf("shared slot %d: symbols %d [%d,%d] and %d [%d,%d] are alive together",
						i, slot.members[a].id, slot.members[a].first, slot.members[a].last,
						slot.members[b].id, slot.members[b].first, slot.members[b].last)
				}
			}
		}
	}
	return nil
}

func (g *Graph) lifetimeOf(s *Symbol) lifetime {
	lt := lifetime{id: s.id, first: g.depth[s.id], last: math.MaxInt}
	for _, id := range s.inbound {
		lt.first = min(lt.first, g.depth[id])
	}
	if len(s.outbound) > 0 {
		lt.last = 0
		for _, id := range s.outbound {
			lt.last = max(lt.last, g.depth[id])
		}
	}
	return lt
}

// allocateShared packs unbound computed tensors into slots, first fit in
// producer order, then allocates one store per slot sized for its largest
// member.
func (g *Graph) allocateShared() {
	g.dropShared()

	var lts []lifetime
	for _, s := range g.symbols {
		if s.kind == KindTensor && s.source == SourceComputed && s.value == nil {
			lts = append(lts, g.lifetimeOf(s))
		}
	}
	sort.SliceStable(lts, func(i, j int) bool { return lts[i].first < lts[j].first })

	plan := &sharedPlan{slotOf: make(map[SymbolID]int)}
	for _, lt := range lts {
		slot := -1
		for i, sl := range plan.slots {
			if sl.members[len(sl.members)-1].last < lt.first {
				slot = i
				break
			}
		}
		if slot < 0 {
			plan.slots = append(plan.slots, &sharedSlot{})
			slot = len(plan.slots) - 1
		}
		plan.slots[slot].members = append(plan.slots[slot].members, lt)
		plan.slotOf[lt.id] = slot
	}

	res := g.eng.Resources()
	for _, slot := range plan.slots {
		var shapes []tensor.Shape
		for _, m := range slot.members {
			shapes = append(shapes, g.symbols[m.id].shape)
		}
		largest := shapes[0]
		for _, sh := range shapes[1:] {
			if sh.NumElements() > largest.NumElements() {
				largest = sh
			}
		}
		slot.store = res.AllocateTensor(largest)
		slot.store.Clear()
		g.allocated = append(g.allocated, slot.store)
		for _, m := range slot.members {
			g.symbols[m.id].value = TensorValue{Store: slot.store}
		}
	}

	g.shared = plan
	g.logger.Debug("shared computed storage", "tensors", len(lts), "slots", len(plan.slots))
}

// dropShared unbinds the symbols of a previous shared plan.
func (g *Graph) dropShared() {
	if g.shared == nil {
		return
	}
	for id := range g.shared.slotOf {
		g.symbols[id].value = nil
	}
	stores := make([]*tensor.Store, 0, len(g.shared.slots))
	for _, slot := range g.shared.slots {
		stores = append(stores, slot.store)
	}
	g.returnStores(stores)
	g.shared = nil
}

// returnStores hands managed stores back to the resource manager and forgets
// them.
func (g *Graph) returnStores(stores []*tensor.Store) {
	if len(stores) == 0 {
		return
	}
	g.eng.Resources().ReturnTensors(stores...)
	kept := g.allocated[:0]
	for _, st := range g.allocated {
		returned := false
		for _, r := range stores {
			if r == st {
				returned = true
				break
			}
		}
		if !returned {
			kept = append(kept, st)
		}
	}
	g.allocated = kept
}

// SharedSlots returns, per shared storage slot, the ids of the symbols using
// it. It is nil unless Config.ShareComputed is set and storage was allocated.
func (g *Graph) SharedSlots() [][]SymbolID {
	if g.shared == nil {
		return nil
	}
	out := make([][]SymbolID, len(g.shared.slots))
	for i, slot := range g.shared.slots {
		for _, m := range slot.members {
			out[i] = append(out[i], m.id)
		}
	}
	return out
}

// Release returns every store the graph allocated to the resource manager and
// unbinds the symbols using them. User-bound values are kept.
func (g *Graph) Release() {
	owned := make(map[*tensor.Store]bool, len(g.allocated))
	for _, st := range g.allocated {
		owned[st] = true
	}
	for _, s := range g.symbols {
		if st := s.Store(); st != nil && owned[st] {
			s.value = nil
		} else if s.kind == KindScalar && s.source != SourceUser {
			s.value = nil
		}
	}
	g.eng.Resources().ReturnTensors(g.allocated...)
	g.allocated = nil
	g.shared = nil
	if g.state != StateUnsorted {
		g.state = StateSorted
	}
}
