package analysis

import "fmt"

// GenotypeCall is one catalogued genotype interpretation for a variant.
type GenotypeCall struct {
	Prediction string
	Confidence float64
}

// KnowledgeEntry describes a catalogued variant: the gene it sits in, the
// trait it informs, and the interpretation of each known genotype.
type KnowledgeEntry struct {
	Gene        string
	Trait       string
	Chromosome  string
	Genotypes   map[string]GenotypeCall
	Clinical    bool
	Description string
}

// variantCatalog is the static variant knowledge base. Process-wide,
// immutable, read-only after init.
var variantCatalog = map[string]KnowledgeEntry{
	"rs12913832": {
		Gene:       "HERC2",
		Trait:      "eye_color",
		Chromosome: "15",
		Genotypes: map[string]GenotypeCall{
			"GG": {Prediction: "blue", Confidence: 0.85},
			"AG": {Prediction: "green_hazel", Confidence: 0.70},
			"AA": {Prediction: "brown", Confidence: 0.90},
		},
		Description: "Primary determinant of blue vs brown eye color",
	},
	"rs1800407": {
		Gene:       "OCA2",
		Trait:      "eye_color",
		Chromosome: "15",
		Genotypes: map[string]GenotypeCall{
			"CC": {Prediction: "brown_modifier", Confidence: 0.60},
			"CT": {Prediction: "mixed", Confidence: 0.50},
			"TT": {Prediction: "blue_modifier", Confidence: 0.65},
		},
		Description: "Secondary eye color modifier",
	},
	"rs4988235": {
		Gene:       "MCM6",
		Trait:      "lactose_tolerance",
		Chromosome: "2",
		Genotypes: map[string]GenotypeCall{
			"TT": {Prediction: "lactose_tolerant", Confidence: 0.95},
			"CT": {Prediction: "likely_tolerant", Confidence: 0.75},
			"CC": {Prediction: "lactose_intolerant", Confidence: 0.90},
		},
		Description: "European lactase persistence variant",
	},
	"rs1815739": {
		Gene:       "ACTN3",
		Trait:      "muscle_type",
		Chromosome: "11",
		Genotypes: map[string]GenotypeCall{
			"CC": {Prediction: "power_athlete", Confidence: 0.70},
			"CT": {Prediction: "mixed", Confidence: 0.60},
			"TT": {Prediction: "endurance_athlete", Confidence: 0.65},
		},
		Description: "Alpha-actinin-3 - fast-twitch muscle fiber protein",
	},
	"rs762551": {
		Gene:       "CYP1A2",
		Trait:      "caffeine_metabolism",
		Chromosome: "15",
		Genotypes: map[string]GenotypeCall{
			"AA": {Prediction: "fast_metabolizer", Confidence: 0.80},
			"AC": {Prediction: "moderate_metabolizer", Confidence: 0.65},
			"CC": {Prediction: "slow_metabolizer", Confidence: 0.75},
		},
		Description: "Caffeine metabolism speed",
	},
	"rs671": {
		Gene:       "ALDH2",
		Trait:      "alcohol_flush",
		Chromosome: "12",
		Genotypes: map[string]GenotypeCall{
			"GG": {Prediction: "normal", Confidence: 0.95},
			"AG": {Prediction: "mild_flush", Confidence: 0.85},
			"AA": {Prediction: "severe_flush", Confidence: 0.95},
		},
		Description: "Alcohol flush reaction (Asian glow)",
	},
	"rs713598": {
		Gene:       "TAS2R38",
		Trait:      "bitter_taste",
		Chromosome: "7",
		Genotypes: map[string]GenotypeCall{
			"CC": {Prediction: "non_taster", Confidence: 0.80},
			"CG": {Prediction: "medium_taster", Confidence: 0.70},
			"GG": {Prediction: "super_taster", Confidence: 0.85},
		},
		Description: "Ability to taste bitter compounds like PTC",
	},
	"rs2282679": {
		Gene:       "GC",
		Trait:      "vitamin_d",
		Chromosome: "4",
		Genotypes: map[string]GenotypeCall{
			"AA": {Prediction: "higher_levels", Confidence: 0.65},
			"AG": {Prediction: "normal_levels", Confidence: 0.55},
			"GG": {Prediction: "lower_levels", Confidence: 0.70},
		},
		Description: "Vitamin D binding protein variant",
	},
	"rs80357906": {
		Gene:       "BRCA1",
		Trait:      "brca1_status",
		Chromosome: "17",
		Clinical:   true,
		Genotypes: map[string]GenotypeCall{
			"normal":  {Prediction: "no_variant", Confidence: 0.99},
			"variant": {Prediction: "variant_detected", Confidence: 0.99},
		},
		Description: "BRCA1 pathogenic variant - consult genetic counselor",
	},
	"rs72921001": {
		Gene:       "OR6A2",
		Trait:      "cilantro_taste",
		Chromosome: "11",
		Genotypes: map[string]GenotypeCall{
			"CC": {Prediction: "tastes_normal", Confidence: 0.70},
			"CT": {Prediction: "slightly_soapy", Confidence: 0.60},
			"TT": {Prediction: "tastes_like_soap", Confidence: 0.80},
		},
		Description: "Cilantro soapy taste perception",
	},
	"rs17822931": {
		Gene:       "ABCC11",
		Trait:      "earwax_type",
		Chromosome: "16",
		Genotypes: map[string]GenotypeCall{
			"CC": {Prediction: "wet_earwax", Confidence: 0.95},
			"CT": {Prediction: "wet_earwax", Confidence: 0.90},
			"TT": {Prediction: "dry_earwax", Confidence: 0.95},
		},
		Description: "Earwax type - also affects body odor",
	},
}

// traitVariants maps each trait to the ordered rsIDs supporting it. The
// order drives tie-breaking in Predict, so it is part of the contract.
var traitVariants = map[string][]string{
	"eye_color":           {"rs12913832", "rs1800407"},
	"lactose_tolerance":   {"rs4988235"},
	"muscle_type":         {"rs1815739"},
	"caffeine_metabolism": {"rs762551"},
	"alcohol_flush":       {"rs671"},
	"bitter_taste":        {"rs713598"},
	"vitamin_d":           {"rs2282679"},
	"cilantro_taste":      {"rs72921001"},
	"earwax_type":         {"rs17822931"},
	"brca1_status":        {"rs80357906"},
}

// Every rsID referenced by a trait must exist in the variant table.
func init() {
	for trait, rsids := range traitVariants {
		for _, rsid := range rsids {
			if _, ok := variantCatalog[rsid]; !ok {
				panic(fmt.Sprintf("analysis: trait %q references unknown variant %q", trait, rsid))
			}
		}
	}
}

// CatalogInfo returns the knowledge-base entry for an rsID.
func CatalogInfo(rsid string) (KnowledgeEntry, bool) {
	entry, ok := variantCatalog[normalizeRSID(rsid)]
	return entry, ok
}

// AvailableTraits lists every trait the knowledge base can predict.
func AvailableTraits() []string {
	out := make([]string, 0, len(traitVariants))
	for trait := range traitVariants {
		out = append(out, trait)
	}
	return out
}
