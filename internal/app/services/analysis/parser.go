package analysis

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/HelixVault/agent_layer/internal/app/domain/genome"
)

// ParseStats summarises one parse run. Skipped counts individually
// malformed lines, which never abort the rest of the file.
type ParseStats struct {
	Format  genome.FileFormat
	Parsed  int
	Skipped int
}

// DetectFormat inspects at most the first 20 lines for distinguishing
// header tokens, then falls back to a structural heuristic.
func (s *Service) DetectFormat(data []byte) genome.FileFormat {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) > 20 {
		lines = lines[:20]
	}

	for _, line := range lines {
		if bytes.HasPrefix(line, []byte("# rsid")) || bytes.Contains(bytes.ToLower(line), []byte("chromosome\tposition\tgenotype")) {
			return genome.Format23andMe
		}
		if bytes.Contains(line, []byte("rsID\tchromosome\tposition\tallele1\tallele2")) {
			return genome.FormatAncestry
		}
		if bytes.HasPrefix(line, []byte("##fileformat=VCF")) {
			return genome.FormatVCF
		}
	}

	// No header matched; look for a bare tab-delimited rs row.
	for _, line := range lines {
		if bytes.HasPrefix(line, []byte("#")) {
			continue
		}
		parts := bytes.Split(line, []byte("\t"))
		if len(parts) >= 4 && bytes.HasPrefix(parts[0], []byte("rs")) {
			return genome.Format23andMe
		}
	}

	return genome.FormatUnknown
}

// Parse extracts variant records from a raw genetic data file. The buffer is
// scanned in place, never copied whole into a string, so zeroing it after
// the call leaves no full-file plaintext behind. Keys are lowercased rsIDs;
// genotypes are uppercased. An unknown format yields an empty set rather
// than an error, so downstream lookups simply miss.
func (s *Service) Parse(data []byte) (genome.VariantSet, ParseStats) {
	format := s.DetectFormat(data)
	set := make(genome.VariantSet)
	stats := ParseStats{Format: format}

	if format == genome.FormatUnknown {
		s.log.Warn("unrecognized genetic data format")
		return set, stats
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		rsid, record, ok := parseLine(format, line)
		if !ok {
			stats.Skipped++
			continue
		}
		set[rsid] = record
	}

	stats.Parsed = len(set)
	s.log.Debugf("parsed %d variants from %s format (%d lines skipped)", stats.Parsed, format, stats.Skipped)
	return set, stats
}

func parseLine(format genome.FileFormat, line []byte) (string, genome.VariantRecord, bool) {
	parts := bytes.Split(line, []byte("\t"))
	field := func(i int) string {
		return string(bytes.TrimSpace(parts[i]))
	}

	switch format {
	case genome.Format23andMe:
		if len(parts) < 4 {
			return "", genome.VariantRecord{}, false
		}
		position, err := strconv.ParseInt(field(2), 10, 64)
		if err != nil {
			return "", genome.VariantRecord{}, false
		}
		return normalizeRSID(field(0)), genome.VariantRecord{
			Chromosome: field(1),
			Position:   position,
			Genotype:   strings.ToUpper(field(3)),
		}, true

	case genome.FormatAncestry:
		if len(parts) < 5 {
			return "", genome.VariantRecord{}, false
		}
		position, err := strconv.ParseInt(field(2), 10, 64)
		if err != nil {
			return "", genome.VariantRecord{}, false
		}
		return normalizeRSID(field(0)), genome.VariantRecord{
			Chromosome: field(1),
			Position:   position,
			Genotype:   strings.ToUpper(field(3) + field(4)),
		}, true

	case genome.FormatVCF:
		if len(parts) < 10 || !bytes.HasPrefix(parts[2], []byte("rs")) {
			return "", genome.VariantRecord{}, false
		}
		position, err := strconv.ParseInt(field(1), 10, 64)
		if err != nil {
			return "", genome.VariantRecord{}, false
		}
		genotype, ok := vcfGenotype(field(3), field(4), field(9))
		if !ok {
			return "", genome.VariantRecord{}, false
		}
		return normalizeRSID(field(2)), genome.VariantRecord{
			Chromosome: strings.TrimPrefix(field(0), "chr"),
			Position:   position,
			Genotype:   strings.ToUpper(genotype),
		}, true
	}

	return "", genome.VariantRecord{}, false
}

// vcfGenotype reconstructs the allele string from REF/ALT and the sample's
// GT field. Missing-allele markers (".") are dropped from the result.
func vcfGenotype(ref, alt, sample string) (string, bool) {
	alleles := append([]string{ref}, strings.Split(alt, ",")...)

	gt := sample
	if idx := strings.Index(gt, ":"); idx >= 0 {
		gt = gt[:idx]
	}
	gt = strings.ReplaceAll(gt, "|", "/")

	var b strings.Builder
	for _, field := range strings.Split(gt, "/") {
		if field == "." {
			continue
		}
		i, err := strconv.Atoi(field)
		if err != nil || i < 0 || i >= len(alleles) {
			return "", false
		}
		b.WriteString(alleles[i])
	}
	return b.String(), true
}

func normalizeRSID(rsid string) string {
	return strings.ToLower(strings.TrimSpace(rsid))
}
