package refdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/camonet/amrgold/internal/star"
)

// writeCatalogDir creates a refdata directory with the three catalog files.
func writeCatalogDir(t *testing.T, antimicrobials, aware, infectious string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		FileAntimicrobials:  antimicrobials,
		FileAWaReClasses:    aware,
		FileInfectiousCodes: infectious,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadCatalogs(t *testing.T) {
	dir := writeCatalogDir(t,
		"compound\nAmoxicillin\nAzithromycin\n\n",
		"compound,class,spectrum\nAmoxicillin,Access,Narrow\nAzithromycin,Watch,Broad\n",
		"code,source\nA09.0,CID10\nD73,CIAP2\n",
	)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	am, aware, infectious := c.Sizes()
	if am != 2 || aware != 2 || infectious != 2 {
		t.Errorf("Sizes() = %d/%d/%d, want 2/2/2", am, aware, infectious)
	}
	if !c.IsAntimicrobial("AMOXICILLIN") {
		t.Error("Amoxicillin missing from antimicrobial list")
	}
	entry, ok := c.AWaRe("azithromycin")
	if !ok || entry.Class != star.AWaReWatch {
		t.Errorf("AWaRe(azithromycin) = %+v ok=%v, want Watch", entry, ok)
	}
	if !c.IsInfectious("A090", star.SourceCID10) {
		t.Error("A09.0 missing from CID10 infectious list")
	}
}

func TestLoadHandlesBOMAndHeaderCase(t *testing.T) {
	dir := writeCatalogDir(t,
		"\xEF\xBB\xBFCOMPOUND\nCeftriaxone\n",
		"Compound,Class,Spectrum\nCeftriaxone,Watch,Broad\n",
		"CODE,SOURCE\nJ18,CID10\n",
	)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.IsAntimicrobial("ceftriaxone") {
		t.Error("BOM-prefixed header broke the antimicrobial list")
	}
}

func TestLoadMissingColumn(t *testing.T) {
	dir := writeCatalogDir(t,
		"name\nAmoxicillin\n",
		"compound,class,spectrum\n",
		"code,source\n",
	)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load with wrong header: want error, got nil")
	}
	if !strings.Contains(err.Error(), `missing column "compound"`) {
		t.Errorf("error = %v, want missing column mention", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load on empty dir: want error, got nil")
	}
}
