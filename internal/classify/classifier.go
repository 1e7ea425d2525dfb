// Package classify labels medications and diagnoses against the reference
// catalogs. Unmatched lookups degrade to sentinel classifications and are
// tracked as data-quality gauges; classification gaps are never errors.
package classify

import (
	"sort"

	"github.com/camonet/amrgold/internal/refdata"
	"github.com/camonet/amrgold/internal/star"
)

// MedicationClass is the classifier's verdict for one compound.
type MedicationClass struct {
	IsAntimicrobial bool
	AWaReClass      string
	Spectrum        string
}

// Gaps counts classification lookups that fell back to sentinel values.
type Gaps struct {
	MedicationsSeen int
	AWaReUnmatched  int
	// Distinct compounds that missed the AWaRe map despite being on the
	// antimicrobial list — the interesting gap for stewardship analysts.
	UnmatchedAntimicrobials []string
}

// Classifier applies catalog lookups and accumulates gap gauges. Not safe
// for concurrent use; the pipeline classifies on a single goroutine.
type Classifier struct {
	catalog   *refdata.Catalog
	seen      int
	misses    int
	unmatched map[string]struct{}
}

func New(catalog *refdata.Catalog) *Classifier {
	return &Classifier{catalog: catalog, unmatched: make(map[string]struct{})}
}

// Medication classifies a compound. Is-antimicrobial depends only on the
// antimicrobial list; a compound can be antimicrobial yet Not-Classified
// when the AWaRe map lags behind the compound list.
func (c *Classifier) Medication(compound string) MedicationClass {
	c.seen++

	mc := MedicationClass{
		IsAntimicrobial: c.catalog.IsAntimicrobial(compound),
		AWaReClass:      star.AWaReNotClassified,
		Spectrum:        star.SpectrumUnknown,
	}

	if entry, ok := c.catalog.AWaRe(compound); ok {
		mc.AWaReClass = entry.Class
		mc.Spectrum = entry.Spectrum
		return mc
	}

	c.misses++
	if mc.IsAntimicrobial {
		c.unmatched[refdata.NormalizeCompound(compound)] = struct{}{}
	}
	return mc
}

// Diagnosis reports whether a code is infectious, matched against the code's
// own source vocabulary only.
func (c *Classifier) Diagnosis(code, source string) bool {
	return c.catalog.IsInfectious(code, source)
}

// Gaps returns the accumulated data-quality gauges.
func (c *Classifier) Gaps() Gaps {
	unmatched := make([]string, 0, len(c.unmatched))
	for compound := range c.unmatched {
		unmatched = append(unmatched, compound)
	}
	sort.Strings(unmatched)

	return Gaps{
		MedicationsSeen:         c.seen,
		AWaReUnmatched:          c.misses,
		UnmatchedAntimicrobials: unmatched,
	}
}
