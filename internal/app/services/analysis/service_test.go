package analysis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/HelixVault/agent_layer/internal/app/domain/genome"
)

func testSet() genome.VariantSet {
	return genome.VariantSet{
		"rs12913832": {Chromosome: "15", Position: 28365618, Genotype: "GG"},
		"rs1800407":  {Chromosome: "15", Position: 28230318, Genotype: "TT"},
		"rs4988235":  {Chromosome: "2", Position: 136608646, Genotype: "GA"},
		"rs762551":   {Chromosome: "15", Position: 75041917, Genotype: "AA"},
	}
}

func TestLookup(t *testing.T) {
	svc := New(nil)
	set := testSet()

	result := svc.Lookup(set, "rs12913832")
	if !result.Found {
		t.Fatalf("expected rs12913832 to be found")
	}
	if result.Gene != "HERC2" || result.Trait != "eye_color" {
		t.Fatalf("unexpected catalog annotation: %+v", result)
	}
	if result.Interpretation != "blue" {
		t.Fatalf("expected interpretation blue, got %q", result.Interpretation)
	}

	// Case-insensitive rsID handling.
	if !svc.Lookup(set, "RS12913832").Found {
		t.Fatalf("rsID lookup should be case-insensitive")
	}

	missing := svc.Lookup(set, "rs999999")
	if missing.Found {
		t.Fatalf("unknown rsID must report not found")
	}
}

func TestCheckMatchOrderInsensitive(t *testing.T) {
	svc := New(nil)
	set := testSet() // rs4988235 stored as "GA"

	for _, target := range []string{"AG", "GA", "ag", "ga"} {
		matches, _ := svc.CheckMatch(set, "rs4988235", target)
		if !matches {
			t.Fatalf("target %q should match stored GA", target)
		}
	}

	matches, _ := svc.CheckMatch(set, "rs4988235", "TT")
	if matches {
		t.Fatalf("TT should not match stored GA")
	}

	present, genotype := svc.CheckMatch(set, "rs4988235", "")
	if !present || genotype != "GA" {
		t.Fatalf("presence check failed: %v %q", present, genotype)
	}

	if found, _ := svc.CheckMatch(set, "rs0", ""); found {
		t.Fatalf("absent rsID must not match")
	}
}

func TestPredictHighestConfidenceWins(t *testing.T) {
	svc := New(nil)
	// rs12913832 GG -> blue (0.85); rs1800407 TT -> blue_modifier (0.65).
	prediction, err := svc.Predict(testSet(), "eye_color")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if prediction == nil {
		t.Fatalf("expected a prediction")
	}
	if prediction.Prediction != "blue" || prediction.Confidence != 0.85 {
		t.Fatalf("expected blue@0.85, got %s@%v", prediction.Prediction, prediction.Confidence)
	}
	if len(prediction.SupportingSNPs) != 2 {
		t.Fatalf("expected 2 supporting variants, got %d", len(prediction.SupportingSNPs))
	}
}

func TestPredictUnknownTrait(t *testing.T) {
	svc := New(nil)
	if _, err := svc.Predict(testSet(), "telepathy"); !errors.Is(err, ErrUnknownTrait) {
		t.Fatalf("expected ErrUnknownTrait, got %v", err)
	}
}

func TestPredictNoSupportingVariants(t *testing.T) {
	svc := New(nil)
	prediction, err := svc.Predict(genome.VariantSet{}, "lactose_tolerance")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if prediction != nil {
		t.Fatalf("expected nil prediction when no supporting variant is present")
	}
}

// The catalog keys genotypes as written ("AG"), while observations keep
// file order ("GA"). Prediction uses a direct catalog hit, so a reversed
// observation contributes presence but no interpretation. CheckMatch, by
// contrast, sort-normalizes both sides. This asymmetry is intentional and
// pinned here.
func TestPredictGenotypeOrderAsymmetry(t *testing.T) {
	svc := New(nil)
	set := genome.VariantSet{
		"rs4988235": {Chromosome: "2", Position: 136608646, Genotype: "TC"}, // catalog has "CT"
	}

	prediction, err := svc.Predict(set, "lactose_tolerance")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if prediction != nil {
		t.Fatalf("reversed genotype should not hit the catalog entry, got %+v", prediction)
	}

	matches, _ := svc.CheckMatch(set, "rs4988235", "CT")
	if !matches {
		t.Fatalf("CheckMatch should still match reversed genotypes")
	}
}

func TestAnalyzeVariantCheck(t *testing.T) {
	svc := New(nil)
	set := testSet()

	result, err := svc.Analyze(set, genome.VariantCheck{RSID: "rs12913832"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !result.Found || !result.HasVariant {
		t.Fatalf("expected variant to be found: %+v", result)
	}

	// A non-matching target genotype must read as absent across the board;
	// raw presence of the variant is not disclosed.
	result, err = svc.Analyze(set, genome.VariantCheck{RSID: "rs12913832", Genotype: "AA"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Found || result.Matches || result.HasVariant {
		t.Fatalf("non-matching genotype must not disclose presence: %+v", result)
	}

	result, err = svc.Analyze(set, genome.VariantCheck{RSID: "rs12913832", Genotype: "GG"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !result.Found || !result.Matches || !result.HasVariant {
		t.Fatalf("matching genotype should report found: %+v", result)
	}

	if _, err := svc.Analyze(set, genome.VariantCheck{}); !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
}

func TestAnalyzeTraitQuery(t *testing.T) {
	svc := New(nil)
	set := testSet()

	result, err := svc.Analyze(set, genome.TraitQuery{Trait: "caffeine_metabolism"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !result.Found || result.Prediction != "fast_metabolizer" {
		t.Fatalf("unexpected trait result: %+v", result)
	}

	// Unknown trait answers not-found; it never errors outward.
	result, err = svc.Analyze(set, genome.TraitQuery{Trait: "telepathy"})
	if err != nil {
		t.Fatalf("analyze unknown trait: %v", err)
	}
	if result.Found {
		t.Fatalf("unknown trait must report not found")
	}

	if _, err := svc.Analyze(set, genome.TraitQuery{}); !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
}

func TestAnalyzeBatchSearchDisclosesNoGenotypes(t *testing.T) {
	svc := New(nil)
	set := testSet()

	result, err := svc.Analyze(set, genome.BatchVariantSearch{
		RSIDs: []string{"rs12913832", "rs4988235", "rs999999"},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.TotalFound != 2 {
		t.Fatalf("expected 2 found, got %d", result.TotalFound)
	}
	if !result.Results["rs12913832"] || !result.Results["rs4988235"] || result.Results["rs999999"] {
		t.Fatalf("unexpected per-rsID results: %#v", result.Results)
	}
	if result.Prediction != "" || result.RSID != "" {
		t.Fatalf("batch result must not carry variant details: %+v", result)
	}
}

func TestAnalyzeNilRequest(t *testing.T) {
	svc := New(nil)
	if _, err := svc.Analyze(testSet(), nil); !errors.Is(err, ErrUnknownQueryType) {
		t.Fatalf("expected ErrUnknownQueryType, got %v", err)
	}
}

func TestAvailableTraitsCoverCatalog(t *testing.T) {
	traits := AvailableTraits()
	if len(traits) != 10 {
		t.Fatalf("expected 10 traits, got %d", len(traits))
	}
	for _, trait := range traits {
		for _, rsid := range traitVariants[trait] {
			if _, ok := CatalogInfo(rsid); !ok {
				t.Fatalf("trait %s references uncatalogued rsID %s", trait, rsid)
			}
		}
	}
}

func ExampleService_Analyze() {
	svc := New(nil)
	set := genome.VariantSet{
		"rs12913832": {Chromosome: "15", Position: 28365618, Genotype: "GG"},
	}
	result, _ := svc.Analyze(set, genome.VariantCheck{RSID: "rs12913832"})
	fmt.Println(result.Found, result.HasVariant)
	// Output:
	// true true
}
