package mel

// SectorResolver maps a sector name found in a payload to a sector id.
type SectorResolver interface {
	ResolveSector(name string) (string, bool)
}

// SectorMatcher is one step of a sector resolution chain.
type SectorMatcher func(sectors []Sector, folded string) (string, bool)

// CatalogSectorResolver resolves names against the catalog sectors by exact
// id, then folded name, then folded alias.
type CatalogSectorResolver struct {
	sectors []Sector
	chain   []SectorMatcher
}

// NewCatalogSectorResolver creates a resolver over the catalog's sectors.
func NewCatalogSectorResolver(catalog *Catalog) *CatalogSectorResolver {
	return &CatalogSectorResolver{
		sectors: catalog.Sectors(),
		chain:   []SectorMatcher{matchSectorID, matchSectorName, matchSectorAlias},
	}
}

// ResolveSector implements SectorResolver.
func (r *CatalogSectorResolver) ResolveSector(name string) (string, bool) {
	folded := Fold(name)
	if folded == "" {
		return "", false
	}
	for _, m := range r.chain {
		if id, ok := m(r.sectors, folded); ok {
			return id, true
		}
	}
	return "", false
}

func matchSectorID(sectors []Sector, folded string) (string, bool) {
	for _, s := range sectors {
		if Fold(s.ID) == folded {
			return s.ID, true
		}
	}
	return "", false
}

func matchSectorName(sectors []Sector, folded string) (string, bool) {
	for _, s := range sectors {
		if Fold(s.Name) == folded {
			return s.ID, true
		}
	}
	return "", false
}

func matchSectorAlias(sectors []Sector, folded string) (string, bool) {
	for _, s := range sectors {
		for _, a := range s.Aliases {
			if Fold(a) == folded {
				return s.ID, true
			}
		}
	}
	return "", false
}
