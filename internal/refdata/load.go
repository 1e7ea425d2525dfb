package refdata

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Catalog file names under the refdata directory.
const (
	FileAntimicrobials  = "antimicrobials.csv"
	FileAWaReClasses    = "aware_classes.csv"
	FileInfectiousCodes = "infectious_codes.csv"
)

// Load reads the three catalog files from dir.
func Load(dir string) (*Catalog, error) {
	c := NewCatalog()

	err := readCSV(filepath.Join(dir, FileAntimicrobials), []string{"compound"}, func(rec map[string]string) {
		c.AddAntimicrobial(rec["compound"])
	})
	if err != nil {
		return nil, fmt.Errorf("load antimicrobials: %w", err)
	}

	err = readCSV(filepath.Join(dir, FileAWaReClasses), []string{"compound", "class", "spectrum"}, func(rec map[string]string) {
		c.AddAWaRe(rec["compound"], rec["class"], rec["spectrum"])
	})
	if err != nil {
		return nil, fmt.Errorf("load aware classes: %w", err)
	}

	err = readCSV(filepath.Join(dir, FileInfectiousCodes), []string{"code", "source"}, func(rec map[string]string) {
		c.AddInfectious(rec["code"], rec["source"])
	})
	if err != nil {
		return nil, fmt.Errorf("load infectious codes: %w", err)
	}

	return c, nil
}

// readCSV streams a headered CSV file and calls fn once per data row with the
// wanted columns. Header lookup is case-insensitive; rows shorter than the
// header are padded with empty strings.
func readCSV(path string, want []string, fn func(map[string]string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)

	// Skip UTF-8 BOM if present
	bom, err := br.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		br.Discard(3)
	}

	r := csv.NewReader(br)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range want {
		if _, ok := colIdx[col]; !ok {
			return fmt.Errorf("%s: missing column %q", path, col)
		}
	}

	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s row %d: %w", path, line+1, err)
		}
		line++

		// Skip empty rows
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		rec := make(map[string]string, len(want))
		for _, col := range want {
			i := colIdx[col]
			if i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			} else {
				rec[col] = ""
			}
		}
		fn(rec)
	}
}
