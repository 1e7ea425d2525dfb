package gold

import (
	"testing"

	"github.com/camonet/amrgold/internal/classify"
	"github.com/camonet/amrgold/internal/refdata"
	"github.com/camonet/amrgold/internal/silver"
	"github.com/camonet/amrgold/internal/star"
)

func buildAll(t *testing.T, ds *silver.Dataset, policy AssociationPolicy) (*Dimensions, *Facts) {
	t.Helper()
	dims, err := BuildDimensions(ds, testClassifier())
	if err != nil {
		t.Fatalf("BuildDimensions: %v", err)
	}
	facts, err := BuildFacts(ds, dims, policy)
	if err != nil {
		t.Fatalf("BuildFacts: %v", err)
	}
	return dims, facts
}

// prescriptionFor finds the fact row for one encounter/medication pair.
func prescriptionFor(t *testing.T, facts *Facts, dims *Dimensions, encounter, medication string) star.PrescriptionFact {
	t.Helper()
	encKey := dims.EncounterKeys.Key(encounter)
	medKey := dims.MedicationKeys.Key(medication)
	for _, p := range facts.Prescriptions {
		if p.EncounterKey == encKey && p.MedicationKey == medKey {
			return p
		}
	}
	t.Fatalf("no prescription fact for %s/%s", encounter, medication)
	return star.PrescriptionFact{}
}

func TestAppropriatenessAntimicrobialWithInfectious(t *testing.T) {
	dims, facts := buildAll(t, testDataset(), PolicyAny)

	// E1 has infectious A09 and the antimicrobial M1.
	p := prescriptionFor(t, facts, dims, "E1", "M1")
	if !p.IsAntimicrobial || !p.HasInfectiousDiagnosis {
		t.Fatalf("flags = %+v, want antimicrobial with infectious diagnosis", p)
	}
	if !p.IsAppropriate || p.IsInappropriate {
		t.Errorf("IsAppropriate/IsInappropriate = %v/%v, want true/false", p.IsAppropriate, p.IsInappropriate)
	}
}

func TestAppropriatenessNonAntimicrobialWithoutInfectious(t *testing.T) {
	dims, facts := buildAll(t, testDataset(), PolicyAny)

	// E2 has no diagnoses at all and the plain medication M2.
	p := prescriptionFor(t, facts, dims, "E2", "M2")
	if p.IsAntimicrobial || p.HasInfectiousDiagnosis {
		t.Fatalf("flags = %+v, want plain medication without infectious diagnosis", p)
	}
	if !p.IsAppropriate {
		t.Error("non-antimicrobial without infectious diagnosis must be appropriate")
	}
}

func TestAppropriatenessAntimicrobialWithoutDiagnoses(t *testing.T) {
	ds := testDataset()
	// Move the antimicrobial onto E2, which has zero diagnosis rows.
	ds.Prescriptions = []silver.PrescriptionRow{
		{EncounterCode: "E2", MedicationCode: "M1"},
	}

	dims, facts := buildAll(t, ds, PolicyAny)
	p := prescriptionFor(t, facts, dims, "E2", "M1")
	if !p.IsAntimicrobial {
		t.Fatal("M1 not antimicrobial")
	}
	if p.HasInfectiousDiagnosis {
		t.Error("encounter with zero diagnoses must count as non-infectious")
	}
	if p.IsAppropriate || !p.IsInappropriate {
		t.Errorf("IsAppropriate/IsInappropriate = %v/%v, want false/true", p.IsAppropriate, p.IsInappropriate)
	}
}

func TestAppropriatenessNonAntimicrobialWithInfectious(t *testing.T) {
	ds := testDataset()
	ds.Prescriptions = append(ds.Prescriptions, silver.PrescriptionRow{
		EncounterCode: "E1", MedicationCode: "M2",
	})

	dims, facts := buildAll(t, ds, PolicyAny)
	p := prescriptionFor(t, facts, dims, "E1", "M2")
	if p.IsAppropriate {
		t.Error("plain medication in an infectious encounter must be inappropriate")
	}
}

func TestAssociationPolicyAnyVersusFirst(t *testing.T) {
	ds := testDataset()
	// E1's diagnoses in input order: non-infectious first, infectious second.
	ds.Diagnoses = []silver.DiagnosisRow{
		{EncounterCode: "E1", Code: "Z00", SourceTag: star.SourceCID10},
		{EncounterCode: "E1", Code: "A09", SourceTag: star.SourceCID10},
	}

	dimsAny, factsAny := buildAll(t, ds, PolicyAny)
	if !prescriptionFor(t, factsAny, dimsAny, "E1", "M1").HasInfectiousDiagnosis {
		t.Error("policy any: infectious diagnosis not seen")
	}

	dimsFirst, factsFirst := buildAll(t, ds, PolicyFirst)
	if prescriptionFor(t, factsFirst, dimsFirst, "E1", "M1").HasInfectiousDiagnosis {
		t.Error("policy first: second diagnosis must not be consulted")
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("any"); err != nil || p != PolicyAny {
		t.Errorf("ParsePolicy(any) = %v, %v", p, err)
	}
	if p, err := ParsePolicy("first"); err != nil || p != PolicyFirst {
		t.Errorf("ParsePolicy(first) = %v, %v", p, err)
	}
	if _, err := ParsePolicy("latest"); err == nil {
		t.Error("ParsePolicy(latest): want error")
	}
}

func TestSummariesOnePerEncounter(t *testing.T) {
	dims, facts := buildAll(t, testDataset(), PolicyAny)

	if len(facts.Summaries) != dims.EncounterKeys.Len() {
		t.Fatalf("summaries = %d, want %d", len(facts.Summaries), dims.EncounterKeys.Len())
	}

	byKey := make(map[int64]star.EncounterSummaryFact)
	for _, s := range facts.Summaries {
		byKey[s.EncounterKey] = s
	}

	e1 := byKey[dims.EncounterKeys.Key("E1")]
	if e1.TotalDiagnoses != 2 || e1.TotalInfectiousDiagnoses != 1 {
		t.Errorf("E1 diagnoses = %d/%d, want 2/1", e1.TotalDiagnoses, e1.TotalInfectiousDiagnoses)
	}
	if e1.TotalMedications != 1 || e1.TotalAntimicrobials != 1 {
		t.Errorf("E1 medications = %d/%d, want 1/1", e1.TotalMedications, e1.TotalAntimicrobials)
	}
	if !e1.HadAntimicrobial || !e1.HadInfectiousDiagnosis {
		t.Errorf("E1 flags = %v/%v, want true/true", e1.HadAntimicrobial, e1.HadInfectiousDiagnosis)
	}
	if e1.PrincipalDiagnosisKey != dims.DiagnosisKeys.Key("A09") {
		t.Errorf("E1 principal = %d, want infectious A09", e1.PrincipalDiagnosisKey)
	}

	// E2 has one prescription but zero diagnoses; the row must still exist.
	e2 := byKey[dims.EncounterKeys.Key("E2")]
	if e2.TotalDiagnoses != 0 || e2.HadInfectiousDiagnosis {
		t.Errorf("E2 = %+v, want zero diagnoses", e2)
	}
	if e2.PrincipalDiagnosisKey != star.SentinelKey {
		t.Errorf("E2 principal = %d, want sentinel", e2.PrincipalDiagnosisKey)
	}
}

func TestZeroActivityEncounterKeepsSummaryRow(t *testing.T) {
	ds := testDataset()
	ds.Encounters = append(ds.Encounters, silver.EncounterRow{
		EncounterCode: "E3", PatientID: "P1", UnitCode: "U1", Date: "2024-01-02",
	})

	dims, facts := buildAll(t, ds, PolicyAny)
	key := dims.EncounterKeys.Key("E3")
	found := false
	for _, s := range facts.Summaries {
		if s.EncounterKey == key {
			found = true
			if s.TotalDiagnoses != 0 || s.TotalMedications != 0 || s.HadAntimicrobial {
				t.Errorf("E3 summary = %+v, want all zeros", s)
			}
		}
	}
	if !found {
		t.Error("zero-activity encounter dropped from summaries")
	}
}

func TestPrincipalDiagnosisInfectiousFirst(t *testing.T) {
	ds := testDataset()
	ds.Diagnoses = []silver.DiagnosisRow{
		{EncounterCode: "E1", Code: "Z00", SourceTag: star.SourceCID10},
		{EncounterCode: "E1", Code: "A09", SourceTag: star.SourceCID10},
	}

	dims, facts := buildAll(t, ds, PolicyAny)
	for _, s := range facts.Summaries {
		if s.EncounterKey == dims.EncounterKeys.Key("E1") {
			if s.PrincipalDiagnosisKey != dims.DiagnosisKeys.Key("A09") {
				t.Errorf("principal = %d, want the infectious A09 over the earlier Z00", s.PrincipalDiagnosisKey)
			}
		}
	}
}

func TestDanglingEncounterCodeGetsSentinelKeys(t *testing.T) {
	ds := testDataset()
	ds.Prescriptions = append(ds.Prescriptions, silver.PrescriptionRow{
		EncounterCode: "GHOST", MedicationCode: "M1",
	})

	dims, facts := buildAll(t, ds, PolicyAny)
	p := prescriptionFor(t, facts, dims, "GHOST", "M1") // sentinel encounter key
	if p.EncounterKey != star.SentinelKey || p.PatientKey != star.SentinelKey {
		t.Errorf("dangling prescription keys = %d/%d, want sentinels", p.EncounterKey, p.PatientKey)
	}
	if p.HasInfectiousDiagnosis {
		t.Error("dangling prescription must not inherit a diagnosis signal")
	}
	// Antimicrobial with no resolvable encounter: inappropriate.
	if p.IsAppropriate {
		t.Error("antimicrobial without encounter context must be inappropriate")
	}
}

func TestDiagnosisCodeSpelledUnknownKeepsOwnClassification(t *testing.T) {
	c := refdata.NewCatalog()
	c.AddAntimicrobial("Amoxicillin")
	c.AddAWaRe("Amoxicillin", star.AWaReAccess, star.SpectrumNarrow)
	c.AddInfectious("UNKNOWN", star.SourceCID10)
	cls := classify.New(c)

	ds := &silver.Dataset{
		Encounters: []silver.EncounterRow{
			{EncounterCode: "E1", PatientID: "P1", UnitCode: "U1", Date: "2024-01-02"},
		},
		Diagnoses: []silver.DiagnosisRow{
			{EncounterCode: "E1", Code: "UNKNOWN", SourceTag: star.SourceCID10},
		},
		Prescriptions: []silver.PrescriptionRow{
			{EncounterCode: "E1", MedicationCode: "M1"},
		},
		Patients:    []silver.PatientRow{{PatientID: "P1"}},
		Medications: []silver.MedicationRow{{MedicationCode: "M1", Compound: "Amoxicillin"}},
		HealthUnits: []silver.HealthUnitRow{{UnitCode: "U1", Analyzed: true}},
	}

	dims, err := BuildDimensions(ds, cls)
	if err != nil {
		t.Fatalf("BuildDimensions: %v", err)
	}
	facts, err := BuildFacts(ds, dims, PolicyAny)
	if err != nil {
		t.Fatalf("BuildFacts: %v", err)
	}

	if len(facts.Diagnoses) != 1 {
		t.Fatalf("diagnosis facts = %d, want 1", len(facts.Diagnoses))
	}
	if !facts.Diagnoses[0].IsInfectious {
		t.Error("diagnosis sharing the sentinel code lost its infectious classification")
	}

	p := prescriptionFor(t, facts, dims, "E1", "M1")
	if !p.HasInfectiousDiagnosis {
		t.Error("encounter's infectious signal lost to the sentinel member")
	}
	if !p.IsAppropriate {
		t.Error("antimicrobial with infectious diagnosis must be appropriate")
	}
}

func TestFactKeysAreDenseAndOrdered(t *testing.T) {
	_, facts := buildAll(t, testDataset(), PolicyAny)

	for i, p := range facts.Prescriptions {
		if p.PrescriptionKey != int64(i+1) {
			t.Fatalf("prescription key[%d] = %d, want %d", i, p.PrescriptionKey, i+1)
		}
	}
	for i, d := range facts.Diagnoses {
		if d.DiagnosisFactKey != int64(i+1) {
			t.Fatalf("diagnosis fact key[%d] = %d, want %d", i, d.DiagnosisFactKey, i+1)
		}
	}
}
