// Package analysis implements the trait inference engine: parsing raw
// genetic data files, looking up variants against the static knowledge
// base, and answering the closed set of query kinds.
//
// The engine itself is stateless; all variant data lives in the
// session-scoped genome.VariantSet passed into each call.
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/HelixVault/agent_layer/internal/app/domain/genome"
	"github.com/HelixVault/agent_layer/pkg/logger"
)

var (
	// ErrUnknownQueryType is returned for a nil analysis request.
	ErrUnknownQueryType = errors.New("analysis: unknown query type")

	// ErrUnknownTrait is returned when a trait query names a trait the
	// knowledge base does not cover.
	ErrUnknownTrait = errors.New("analysis: unknown trait")

	// ErrMissingParameter is returned when a required query parameter is
	// empty. No partial computation is performed.
	ErrMissingParameter = errors.New("analysis: missing parameter")
)

// Service is the trait inference engine.
type Service struct {
	log *logger.Logger
}

// New constructs the analysis service.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("analysis")
	}
	return &Service{log: log}
}

// Lookup returns the observation for an rsID plus, when the observed
// genotype matches a catalogued entry, its interpretation.
func (s *Service) Lookup(set genome.VariantSet, rsid string) genome.SNPResult {
	record, ok := set[normalizeRSID(rsid)]
	if !ok {
		return genome.SNPResult{RSID: rsid, Found: false}
	}

	result := genome.SNPResult{
		RSID:       rsid,
		Chromosome: record.Chromosome,
		Position:   record.Position,
		Genotype:   record.Genotype,
		Found:      true,
	}

	if entry, ok := CatalogInfo(rsid); ok {
		result.Gene = entry.Gene
		result.Trait = entry.Trait
		if call, ok := entry.Genotypes[record.Genotype]; ok {
			result.Interpretation = call.Prediction
		}
	}
	return result
}

// CheckMatch reports whether an rsID is present and, when a target
// genotype is given, whether it matches the observation. Both sides are
// sort-normalized, so "AG" and "GA" compare equal.
func (s *Service) CheckMatch(set genome.VariantSet, rsid, target string) (bool, string) {
	result := s.Lookup(set, rsid)
	if !result.Found {
		return false, ""
	}
	if target == "" {
		return true, result.Genotype
	}
	return sortedGenotype(target) == sortedGenotype(result.Genotype), result.Genotype
}

// Predict infers a trait from every catalogued supporting variant present
// in the set. The call with strictly highest confidence wins; ties keep
// the first-encountered catalog order (the sort is stable and keys on
// confidence alone).
func (s *Service) Predict(set genome.VariantSet, trait string) (*genome.TraitPrediction, error) {
	rsids, ok := traitVariants[trait]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrait, trait)
	}

	var (
		supporting  []genome.SNPResult
		predictions []GenotypeCall
	)
	for _, rsid := range rsids {
		result := s.Lookup(set, rsid)
		if !result.Found {
			continue
		}
		supporting = append(supporting, result)

		entry := variantCatalog[rsid]
		if call, ok := entry.Genotypes[result.Genotype]; ok {
			predictions = append(predictions, call)
		}
	}

	if len(predictions) == 0 {
		return nil, nil
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	best := predictions[0]

	return &genome.TraitPrediction{
		Trait:          trait,
		Prediction:     best.Prediction,
		Confidence:     best.Confidence,
		SupportingSNPs: supporting,
		Description:    variantCatalog[rsids[0]].Description,
	}, nil
}

// Analyze dispatches a query over the closed request union. Batch searches
// disclose only booleans and a count, never genotype strings.
func (s *Service) Analyze(set genome.VariantSet, req genome.AnalysisRequest) (*genome.AnalysisResult, error) {
	switch q := req.(type) {
	case genome.VariantCheck:
		if strings.TrimSpace(q.RSID) == "" {
			return nil, fmt.Errorf("%w: rsid", ErrMissingParameter)
		}
		// With a target genotype, found carries the match outcome, not raw
		// presence. A non-matching variant must read as absent.
		matched, _ := s.CheckMatch(set, q.RSID, q.Genotype)
		return &genome.AnalysisResult{
			QueryType:  "variant_check",
			RSID:       q.RSID,
			Found:      matched,
			Matches:    matched,
			HasVariant: matched,
		}, nil

	case genome.TraitQuery:
		if strings.TrimSpace(q.Trait) == "" {
			return nil, fmt.Errorf("%w: trait", ErrMissingParameter)
		}
		prediction, err := s.Predict(set, q.Trait)
		if errors.Is(err, ErrUnknownTrait) {
			s.log.WithField("trait", q.Trait).Warn("trait not in knowledge base")
			return &genome.AnalysisResult{QueryType: "trait_query", Trait: q.Trait, Found: false}, nil
		}
		if err != nil {
			return nil, err
		}
		if prediction == nil {
			return &genome.AnalysisResult{QueryType: "trait_query", Trait: q.Trait, Found: false}, nil
		}
		return &genome.AnalysisResult{
			QueryType:  "trait_query",
			Trait:      q.Trait,
			Found:      true,
			Prediction: prediction.Prediction,
			Confidence: prediction.Confidence,
		}, nil

	case genome.BatchVariantSearch:
		results := make(map[string]bool, len(q.RSIDs))
		total := 0
		for _, rsid := range q.RSIDs {
			found, _ := s.CheckMatch(set, rsid, "")
			results[rsid] = found
			if found {
				total++
			}
		}
		return &genome.AnalysisResult{
			QueryType:  "variant_search",
			Results:    results,
			TotalFound: total,
		}, nil

	case nil:
		return nil, ErrUnknownQueryType
	}

	return nil, fmt.Errorf("%w: %T", ErrUnknownQueryType, req)
}

// sortedGenotype upper-cases a genotype and sorts its characters so allele
// order never affects comparison.
func sortedGenotype(genotype string) string {
	chars := []byte(strings.ToUpper(genotype))
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return string(chars)
}
