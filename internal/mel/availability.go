package mel

// Inventory is the set of equipment ids seen across a whole fetch, all
// sectors included.
type Inventory map[string]struct{}

// NewInventory collects the non-empty ids of the given equipment.
func NewInventory(equipment []Equipment) Inventory {
	inv := make(Inventory, len(equipment))
	for _, e := range equipment {
		if e.ID != "" {
			inv[e.ID] = struct{}{}
		}
	}
	return inv
}

// IdentityIndex resolves work-order references to equipment ids within one
// group. Tags and descriptor tuples shared by several units are ambiguous and
// never resolve.
type IdentityIndex struct {
	ids     map[string]struct{}
	known   Inventory
	byTag   map[string]string
	byTuple map[descriptor]string
}

type descriptor struct {
	name, model, manufacturer string
}

const ambiguous = "\x00ambiguous"

func newDescriptor(name, model, manufacturer string) (descriptor, bool) {
	d := descriptor{name: Fold(name), model: Fold(model), manufacturer: Fold(manufacturer)}
	return d, d.name != ""
}

// NewIdentityIndex indexes the given equipment.
func NewIdentityIndex(equipment []Equipment) *IdentityIndex {
	idx := &IdentityIndex{
		ids:     make(map[string]struct{}, len(equipment)),
		byTag:   make(map[string]string, len(equipment)),
		byTuple: make(map[descriptor]string, len(equipment)),
	}
	for _, e := range equipment {
		if e.ID == "" {
			continue
		}
		idx.ids[e.ID] = struct{}{}
		if tag := NormalizeTag(e.Tag); tag != "" {
			idx.byTag[tag] = claim(idx.byTag[tag], e.ID)
		}
		if d, ok := newDescriptor(e.Name, e.Model, e.Manufacturer); ok {
			idx.byTuple[d] = claim(idx.byTuple[d], e.ID)
		}
	}
	return idx
}

// WithInventory records the ids known outside the group. Without it every
// explicit equipment reference is treated as known.
func (idx *IdentityIndex) WithInventory(inv Inventory) *IdentityIndex {
	idx.known = inv
	return idx
}

// knows reports whether id names real equipment, inside or outside the group.
func (idx *IdentityIndex) knows(id string) bool {
	if _, ok := idx.ids[id]; ok {
		return true
	}
	if idx.known == nil {
		return true
	}
	_, ok := idx.known[id]
	return ok
}

func claim(existing, id string) string {
	if existing == "" || existing == id {
		return id
	}
	return ambiguous
}

// IdentityMatcher is one step of the identity chain. When Decisive reports
// true the chain stops at this step whether or not Match succeeded.
type IdentityMatcher struct {
	Name     string
	Match    func(idx *IdentityIndex, wo WorkOrder) (string, bool)
	Decisive func(idx *IdentityIndex, wo WorkOrder) bool
}

// MatchByEquipmentID resolves an explicit equipment reference. A reference to
// known equipment outside the group settles the order as not ours; only ids
// the inventory has never seen fall through to the weaker matchers.
var MatchByEquipmentID = IdentityMatcher{
	Name: "equipment_id",
	Match: func(idx *IdentityIndex, wo WorkOrder) (string, bool) {
		if wo.EquipmentID == "" {
			return "", false
		}
		_, ok := idx.ids[wo.EquipmentID]
		return wo.EquipmentID, ok
	},
	Decisive: func(idx *IdentityIndex, wo WorkOrder) bool {
		return wo.EquipmentID != "" && idx.knows(wo.EquipmentID)
	},
}

// MatchByTag resolves a normalized asset tag.
var MatchByTag = IdentityMatcher{
	Name: "tag",
	Match: func(idx *IdentityIndex, wo WorkOrder) (string, bool) {
		tag := NormalizeTag(wo.Tag)
		if tag == "" {
			return "", false
		}
		id, ok := idx.byTag[tag]
		return id, ok && id != ambiguous
	},
}

// MatchByDescriptor resolves the (name, model, manufacturer) tuple.
var MatchByDescriptor = IdentityMatcher{
	Name: "descriptor",
	Match: func(idx *IdentityIndex, wo WorkOrder) (string, bool) {
		d, ok := newDescriptor(wo.Name, wo.Model, wo.Manufacturer)
		if !ok {
			return "", false
		}
		id, ok := idx.byTuple[d]
		return id, ok && id != ambiguous
	},
}

// DefaultIdentityChain is tried in order; the first successful match wins.
var DefaultIdentityChain = []IdentityMatcher{MatchByEquipmentID, MatchByTag, MatchByDescriptor}

// Resolve runs the chain for one work order.
func (idx *IdentityIndex) Resolve(chain []IdentityMatcher, wo WorkOrder) (string, bool) {
	for _, m := range chain {
		if id, ok := m.Match(idx, wo); ok {
			return id, true
		}
		if m.Decisive != nil && m.Decisive(idx, wo) {
			return "", false
		}
	}
	return "", false
}

// Calculator computes group availability.
type Calculator struct {
	chain []IdentityMatcher
}

// NewCalculator builds a calculator with the given identity chain, or the
// default chain when none is given.
func NewCalculator(chain ...IdentityMatcher) *Calculator {
	if len(chain) == 0 {
		chain = DefaultIdentityChain
	}
	return &Calculator{chain: chain}
}

// Compute counts the group's distinct units and how many of them are held by
// an open corrective work order. Orders that resolve to no unit are ignored,
// and a unit with several orders counts once. Every explicit equipment
// reference is taken at its word.
func (c *Calculator) Compute(group []Equipment, workOrders []WorkOrder) Availability {
	return c.ComputeWithInventory(group, workOrders, nil)
}

// ComputeWithInventory is Compute with the ids of all fetched equipment, so
// an order naming an id no inventory record has may still resolve by tag or
// descriptor.
func (c *Calculator) ComputeWithInventory(group []Equipment, workOrders []WorkOrder, inv Inventory) Availability {
	idx := NewIdentityIndex(group).WithInventory(inv)
	total := len(idx.ids)
	if total == 0 {
		return Availability{}
	}
	down := make(map[string]struct{})
	for _, wo := range workOrders {
		if !wo.MakesUnavailable() {
			continue
		}
		if id, ok := idx.Resolve(c.chain, wo); ok {
			down[id] = struct{}{}
		}
	}
	unavailable := len(down)
	return Availability{
		Total:       total,
		Unavailable: unavailable,
		Available:   max(total-unavailable, 0),
	}
}
