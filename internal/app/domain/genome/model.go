// Package genome defines the domain types for genetic variant data and the
// query surface the agent answers over it.
package genome

import "time"

// FileFormat identifies a supported raw genetic data file layout.
type FileFormat string

const (
	FormatUnknown  FileFormat = "unknown"
	Format23andMe  FileFormat = "23andme"
	FormatAncestry FileFormat = "ancestry"
	FormatVCF      FileFormat = "vcf"
)

// VariantRecord is the observation for a single rsID. Genotype is an
// uppercase allele string with no ordering guarantee.
type VariantRecord struct {
	Chromosome string
	Position   int64
	Genotype   string
}

// VariantSet holds parsed records keyed by lowercase rsID. It is strictly
// session-scoped: populated by one parse, wiped at the end of the query.
type VariantSet map[string]VariantRecord

// Clear removes every record in place so no genotype survives the session.
func (s VariantSet) Clear() {
	for k := range s {
		delete(s, k)
	}
}

// SNPResult is the outcome of a single-variant lookup.
type SNPResult struct {
	RSID           string `json:"rsid"`
	Chromosome     string `json:"chromosome,omitempty"`
	Position       int64  `json:"position,omitempty"`
	Genotype       string `json:"genotype,omitempty"`
	Found          bool   `json:"found"`
	Gene           string `json:"gene,omitempty"`
	Trait          string `json:"trait,omitempty"`
	Interpretation string `json:"interpretation,omitempty"`
}

// TraitPrediction is a confidence-ranked call for one trait.
type TraitPrediction struct {
	Trait          string      `json:"trait"`
	Prediction     string      `json:"prediction"`
	Confidence     float64     `json:"confidence"`
	SupportingSNPs []SNPResult `json:"supporting_snps,omitempty"`
	Description    string      `json:"description,omitempty"`
}

// AnalysisRequest is the closed set of query kinds the agent answers.
// The sealed marker method keeps dispatch exhaustive at compile time.
type AnalysisRequest interface {
	analysisRequest()
}

// VariantCheck asks whether an rsID is present, optionally matching a
// target genotype (allele order insensitive).
type VariantCheck struct {
	RSID     string
	Genotype string // optional target
}

// TraitQuery asks for the prediction of a named trait. Expected narrows a
// bounty match to one predicted value; analysis itself ignores it.
type TraitQuery struct {
	Trait    string
	Expected string // optional
}

// BatchVariantSearch asks which of a list of rsIDs are present. The answer
// carries only booleans and a count, never genotypes.
type BatchVariantSearch struct {
	RSIDs []string
}

func (VariantCheck) analysisRequest()       {}
func (TraitQuery) analysisRequest()         {}
func (BatchVariantSearch) analysisRequest() {}

// AnalysisResult is the disclosed outcome of a query. Everything here is
// considered public once returned; raw genotypes must never appear in it
// except for the caller's own variant-check echo of the queried rsID.
type AnalysisResult struct {
	QueryType  string          `json:"query_type"`
	RSID       string          `json:"rsid,omitempty"`
	Found      bool            `json:"found"`
	Matches    bool            `json:"matches,omitempty"`
	HasVariant bool            `json:"has_variant,omitempty"`
	Trait      string          `json:"trait,omitempty"`
	Prediction string          `json:"prediction,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Results    map[string]bool `json:"results,omitempty"`
	TotalFound int             `json:"total_found,omitempty"`
}

// QueryStatus tracks a query through the session pipeline.
type QueryStatus string

const (
	StatusPending    QueryStatus = "pending"
	StatusProcessing QueryStatus = "processing"
	StatusCompleted  QueryStatus = "completed"
	StatusFailed     QueryStatus = "failed"
	StatusRejected   QueryStatus = "rejected"
)

// Query is a request routed to the session orchestrator.
type Query struct {
	QueryID   string
	TokenID   int64
	Request   AnalysisRequest
	Requester string
	Timestamp time.Time
}

// QueryResponse is what the orchestrator hands back. Proof carries the
// transport encoding of the commitment proof.
type QueryResponse struct {
	QueryID      string
	Status       QueryStatus
	Result       *AnalysisResult
	Proof        []byte
	ResponseHash string
	Timestamp    time.Time
	Err          string
}
