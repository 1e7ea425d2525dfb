package refdata

import (
	"testing"

	"github.com/camonet/amrgold/internal/star"
)

func TestNormalizeCompound(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"amoxicillin", "AMOXICILLIN"},
		{"  Amoxicillin  +  Clavulanate ", "AMOXICILLIN + CLAVULANATE"},
		{"BENZILPENICILINA\tBENZATINA", "BENZILPENICILINA BENZATINA"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeCompound(c.in); got != c.want {
			t.Errorf("NormalizeCompound(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a09.0", "A090"},
		{"A09-0", "A090"},
		{" J18 ", "J18"},
		{"075", "75"},
		{"0", "0"},
		{"R/74", "R74"},
	}
	for _, c := range cases {
		if got := NormalizeCode(c.in); got != c.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCatalogLookupsUseNormalization(t *testing.T) {
	c := NewCatalog()
	c.AddAntimicrobial(" amoxicillin ")
	c.AddAWaRe("Amoxicillin", star.AWaReAccess, star.SpectrumNarrow)
	c.AddInfectious("A09.0", star.SourceCID10)

	if !c.IsAntimicrobial("AMOXICILLIN") {
		t.Error("IsAntimicrobial miss after normalization")
	}
	entry, ok := c.AWaRe("amoxicillin")
	if !ok {
		t.Fatal("AWaRe miss after normalization")
	}
	if entry.Class != star.AWaReAccess || entry.Spectrum != star.SpectrumNarrow {
		t.Errorf("AWaRe = %+v, want Access/Narrow", entry)
	}
	if !c.IsInfectious("a090", star.SourceCID10) {
		t.Error("IsInfectious miss for equivalent code spelling")
	}
}

func TestInfectiousListsAreScopedBySource(t *testing.T) {
	c := NewCatalog()
	c.AddInfectious("A09", star.SourceCID10)
	c.AddInfectious("D73", star.SourceCIAP2)

	if !c.IsInfectious("A09", star.SourceCID10) {
		t.Error("CID10 code missing from CID10 list")
	}
	if c.IsInfectious("A09", star.SourceCIAP2) {
		t.Error("CID10 code matched the CIAP2 list")
	}
	if c.IsInfectious("D73", star.SourceCID10) {
		t.Error("CIAP2 code matched the CID10 list")
	}
	if c.IsInfectious("A09", "ICD11") {
		t.Error("unknown source matched")
	}
}
