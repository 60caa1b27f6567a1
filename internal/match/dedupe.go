package match

// Dedupe collapses duplicate records to one entry per institution.
// The first pass keys on (name, postal code) so that branch listings of one
// institution collapse onto the first (main) listing; the second pass keys on id
// alone. Input order is kept and the first occurrence always wins.
func Dedupe(records []Record) []Record {
	type siteKey struct {
		name       string
		postalCode string
	}

	seenSite := make(map[siteKey]struct{}, len(records))
	sites := make([]Record, 0, len(records))
	for _, rec := range records {
		key := siteKey{name: rec.Name, postalCode: rec.PostalCode}
		if _, dup := seenSite[key]; dup {
			continue
		}
		seenSite[key] = struct{}{}
		sites = append(sites, rec)
	}

	seenID := make(map[string]struct{}, len(sites))
	unique := make([]Record, 0, len(sites))
	for _, rec := range sites {
		if _, dup := seenID[rec.ID]; dup {
			continue
		}
		seenID[rec.ID] = struct{}{}
		unique = append(unique, rec)
	}

	return unique
}
