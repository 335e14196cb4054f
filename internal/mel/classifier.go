package mel

import (
	"fmt"

	"go.uber.org/zap"
)

// Classifier assigns equipment to groups.
type Classifier struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewClassifier creates a classifier over the given catalog.
func NewClassifier(catalog *Catalog, logger *zap.Logger) *Classifier {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{catalog: catalog, logger: logger}
}

// Catalog returns the catalog the classifier was built with.
func (c *Classifier) Catalog() *Catalog { return c.catalog }

// Classify returns the subset of sectorEquipment governed by rule.
//
// A non-empty custom membership wins outright: members are the listed ids
// present in the sector. Otherwise members are the equipment matching the
// rule's group definition. Malformed membership is logged and ignored.
// ErrUnknownGroup is returned only when neither source of membership exists.
func (c *Classifier) Classify(sectorEquipment []Equipment, rule Rule) ([]Equipment, error) {
	ids, err := ParseMembership(rule.CustomMembership)
	if err != nil {
		c.logger.Warn("ignoring malformed custom membership",
			zap.String("sector_id", rule.SectorID),
			zap.String("group_key", rule.GroupKey),
			zap.Error(err))
		ids = nil
	}
	if len(ids) > 0 {
		return selectByID(sectorEquipment, ids), nil
	}

	i, ok := c.catalog.byKey[rule.GroupKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, rule.GroupKey)
	}
	var members []Equipment
	for _, e := range sectorEquipment {
		if c.catalog.matches(i, e) {
			members = append(members, e)
		}
	}
	return members, nil
}

// GroupMembers is one group of a sector partition.
type GroupMembers struct {
	Definition GroupDefinition
	Equipment  []Equipment
}

// Partition splits equipment across the default definitions. Each unit lands
// in the first definition it matches, so no unit is counted twice. Units that
// match nothing are returned separately. Groups without members are omitted.
func (c *Classifier) Partition(equipment []Equipment) (groups []GroupMembers, unclassified []Equipment) {
	buckets := make([][]Equipment, len(c.catalog.groups))
	for _, e := range equipment {
		placed := false
		for i := range c.catalog.groups {
			if c.catalog.matches(i, e) {
				buckets[i] = append(buckets[i], e)
				placed = true
				break
			}
		}
		if !placed {
			unclassified = append(unclassified, e)
		}
	}
	for i, members := range buckets {
		if len(members) == 0 {
			continue
		}
		groups = append(groups, GroupMembers{Definition: c.catalog.groups[i], Equipment: members})
	}
	return groups, unclassified
}

func selectByID(equipment []Equipment, ids []string) []Equipment {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []Equipment
	for _, e := range equipment {
		if _, ok := wanted[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}
