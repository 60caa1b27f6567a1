package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/shl-matching/internal/match"
)

// Output file names written by ExportAll
const (
	FullDataFile  = "matching_full_data.csv"
	EnrichedFile  = "primary_enriched.json"
	StatsCSVFile  = "matching_stats.csv"
	StatsYAMLFile = "matching_stats.yaml"
)

// Report formats for the statistics file
const (
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// Separator is the field delimiter of every CSV output
const Separator = ';'

// fullDataHeader is the column order of the full data CSV
var fullDataHeader = []string{
	"id", "id_scraped", "score", "score_name", "name", "name_scraped",
	"score_anschrift", "anschrift", "anschrift_scraped", "ort", "ort_scraped",
}

// statsLabels names the tier rows of the statistics CSV
var statsLabels = map[match.Tier]string{
	match.TierPerfect:  "perfectMatch",
	match.TierSimilar:  "similarMatch",
	match.TierLikely:   "likelyMatch",
	match.TierUnlikely: "unlikelyMatch",
	match.TierNoMatch:  "noMatch",
	match.TierRest:     "Rest",
}

// Exporter writes the results of a matching pass to an output directory
type Exporter struct {
	outputDir      string
	minEnrichScore float64
	logger         *zap.Logger
}

// NewExporter creates a new exporter. Enriched records whose best score is
// below minEnrichScore are written without a candidate.
func NewExporter(outputDir string, minEnrichScore float64, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{outputDir: outputDir, minEnrichScore: minEnrichScore, logger: logger}
}

// ExportAll writes the full data CSV, the enriched primary JSON and the
// statistics file in the requested format
func (e *Exporter) ExportAll(outcome *match.Outcome, format string) error {
	if format != FormatCSV && format != FormatYAML {
		return fmt.Errorf("unknown report format %q", format)
	}

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	err := e.writeFile(FullDataFile, func(w io.Writer) error {
		return WriteFullData(w, outcome.Primary, outcome.Candidates, outcome.Results)
	})
	if err != nil {
		return err
	}

	err = e.writeFile(EnrichedFile, func(w io.Writer) error {
		return WriteEnriched(w, outcome.Primary, outcome.Results, e.minEnrichScore)
	})
	if err != nil {
		return err
	}

	if format == FormatYAML {
		return e.writeFile(StatsYAMLFile, func(w io.Writer) error {
			return WriteStatsYAML(w, outcome.Report)
		})
	}
	return e.writeFile(StatsCSVFile, func(w io.Writer) error {
		return WriteStatsCSV(w, outcome.Report)
	})
}

func (e *Exporter) writeFile(name string, write func(io.Writer) error) error {
	path := filepath.Join(e.outputDir, name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	e.logger.Info("Wrote output file", zap.String("path", path))
	return nil
}

// WriteFullData writes one row per primary record whose best candidate is in
// the candidate catalog. Unmatched primary records are left out.
func WriteFullData(w io.Writer, primary, candidates []match.Record, results []match.MatchResult) error {
	byPrimaryID := make(map[string]match.Record, len(primary))
	for _, p := range primary {
		byPrimaryID[p.ID] = p
	}
	byCandidateID := make(map[string]match.Record, len(candidates))
	for _, c := range candidates {
		byCandidateID[c.ID] = c
	}

	writer := csv.NewWriter(w)
	writer.Comma = Separator

	if err := writer.Write(fullDataHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range results {
		p, ok := byPrimaryID[r.PrimaryID]
		if !ok {
			continue
		}
		c, ok := byCandidateID[r.CandidateID]
		if !ok {
			continue
		}

		row := []string{
			p.ID, c.ID,
			formatScore(r.Score), formatScore(r.NameScore),
			p.Name, c.Name,
			formatScore(r.AddressScore),
			p.StreetAddress, c.StreetAddress,
			p.City, c.City,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", p.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// enrichedRecord is a primary record with its best candidate attached
type enrichedRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Anschrift   string   `json:"anschrift"`
	PLZ         string   `json:"plz"`
	Ort         string   `json:"ort"`
	CandidateID *string  `json:"id_scraped"`
	Score       *float64 `json:"score"`
}

// WriteEnriched writes every primary record, in input order, with the id and
// score of its best candidate. Results scoring below minScore carry nulls.
func WriteEnriched(w io.Writer, primary []match.Record, results []match.MatchResult, minScore float64) error {
	byPrimaryID := make(map[string]match.MatchResult, len(results))
	for _, r := range results {
		byPrimaryID[r.PrimaryID] = r
	}

	rows := make([]enrichedRecord, 0, len(primary))
	for _, p := range primary {
		row := enrichedRecord{
			ID:        p.ID,
			Name:      p.Name,
			Anschrift: p.StreetAddress,
			PLZ:       p.PostalCode,
			Ort:       p.City,
		}
		if r, ok := byPrimaryID[p.ID]; ok && r.Score >= minScore {
			id, score := r.CandidateID, r.Score
			row.CandidateID = &id
			row.Score = &score
		}
		rows = append(rows, row)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(rows)
}

// WriteStatsCSV writes the quality report as header-less rows of
// label, count and fraction. A truncated row follows the tiers only when
// a deadline cut off at least one record.
func WriteStatsCSV(w io.Writer, report match.QualityReport) error {
	writer := csv.NewWriter(w)
	writer.Comma = Separator

	rows := [][]string{
		{"Runtime", report.Elapsed.String(), ""},
		{"totalSchools", strconv.Itoa(report.Total), ""},
	}
	for _, tier := range match.Tiers {
		stat := report.Stat(tier)
		rows = append(rows, []string{
			statsLabels[tier],
			strconv.Itoa(stat.Count),
			strconv.FormatFloat(stat.Percent, 'f', -1, 64),
		})
	}
	if report.Truncated > 0 {
		rows = append(rows, []string{
			"truncated",
			strconv.Itoa(report.Truncated),
			strconv.FormatFloat(float64(report.Truncated)/float64(report.Total), 'f', -1, 64),
		})
	}

	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write statistics: %w", err)
	}
	return nil
}

// statsDocument is the YAML form of the quality report
type statsDocument struct {
	Runtime   string           `yaml:"runtime"`
	Total     int              `yaml:"total_schools"`
	Truncated int              `yaml:"truncated,omitempty"`
	Tiers     []match.TierStat `yaml:"tiers"`
}

// WriteStatsYAML writes the quality report as a YAML document
func WriteStatsYAML(w io.Writer, report match.QualityReport) error {
	doc := statsDocument{
		Runtime:   report.Elapsed.String(),
		Total:     report.Total,
		Truncated: report.Truncated,
		Tiers:     report.Tiers,
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// formatScore prints scores without trailing zeros, so 100 and 96.5 stay short
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
