// Package refdata loads the controlled reference vocabularies the classifier
// consumes: the antimicrobial compound list, the WHO AWaRe class map and the
// infectious-disease code lists. Catalogs are plain mapping data loaded once
// per run and immutable afterwards; classification rules never live in code
// branches so vocabularies can be updated without touching transform logic.
package refdata

import "strings"

// AWaReEntry is one row of the WHO AWaRe class map.
type AWaReEntry struct {
	Class    string // Access | Watch | Reserve
	Spectrum string // Broad | Narrow
}

// Catalog holds the three reference vocabularies, keyed by normalized values.
type Catalog struct {
	antimicrobials map[string]struct{}
	aware          map[string]AWaReEntry
	infectious     map[string]map[string]struct{} // source tag → code set
}

// NewCatalog builds an empty catalog; tests populate it via Add* methods,
// production runs via Load.
func NewCatalog() *Catalog {
	return &Catalog{
		antimicrobials: make(map[string]struct{}),
		aware:          make(map[string]AWaReEntry),
		infectious:     make(map[string]map[string]struct{}),
	}
}

// AddAntimicrobial registers a compound on the antimicrobial list.
func (c *Catalog) AddAntimicrobial(compound string) {
	c.antimicrobials[NormalizeCompound(compound)] = struct{}{}
}

// AddAWaRe registers a compound's AWaRe class and spectrum.
func (c *Catalog) AddAWaRe(compound, class, spectrum string) {
	c.aware[NormalizeCompound(compound)] = AWaReEntry{Class: class, Spectrum: spectrum}
}

// AddInfectious registers a diagnosis code as infectious for one source
// vocabulary.
func (c *Catalog) AddInfectious(code, source string) {
	source = strings.ToUpper(strings.TrimSpace(source))
	set, ok := c.infectious[source]
	if !ok {
		set = make(map[string]struct{})
		c.infectious[source] = set
	}
	set[NormalizeCode(code)] = struct{}{}
}

// IsAntimicrobial reports whether the compound appears on the antimicrobial
// reference list. Independent of AWaRe classification success.
func (c *Catalog) IsAntimicrobial(compound string) bool {
	_, ok := c.antimicrobials[NormalizeCompound(compound)]
	return ok
}

// AWaRe looks up the compound's AWaRe class and spectrum. ok is false for
// compounds absent from the map; callers fall back to
// Not-Classified/Unknown, never an error.
func (c *Catalog) AWaRe(compound string) (AWaReEntry, bool) {
	e, ok := c.aware[NormalizeCompound(compound)]
	return e, ok
}

// IsInfectious reports whether the code appears on the infectious list of
// its own source vocabulary. A CIAP-2 code never matches the CID-10 list.
func (c *Catalog) IsInfectious(code, source string) bool {
	set, ok := c.infectious[strings.ToUpper(strings.TrimSpace(source))]
	if !ok {
		return false
	}
	_, ok = set[NormalizeCode(code)]
	return ok
}

// Sizes returns entry counts per vocabulary, logged at load time.
func (c *Catalog) Sizes() (antimicrobials, aware, infectious int) {
	for _, set := range c.infectious {
		infectious += len(set)
	}
	return len(c.antimicrobials), len(c.aware), infectious
}

// NormalizeCompound uppercases, trims and collapses internal whitespace so
// catalog entries match compounds regardless of raw formatting.
func NormalizeCompound(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// NormalizeCode uppercases a diagnosis code, strips punctuation and leading
// zeros per catalog convention: "a09.0" and "A090" must hit the same entry.
func NormalizeCode(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch r {
		case '.', '-', ' ', '/':
		default:
			b.WriteRune(r)
		}
	}
	code := b.String()
	for len(code) > 1 && code[0] == '0' {
		code = code[1:]
	}
	return code
}
