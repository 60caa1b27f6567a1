package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shl-matching/internal/debug"
	"github.com/shl-matching/internal/match"
	"github.com/shl-matching/internal/normalize"
)

var (
	// ErrNoInput is returned when a candidate directory holds no JSON files
	ErrNoInput = errors.New("no input files")

	// ErrInvalidRecord is returned for records that fail validation after normalization
	ErrInvalidRecord = errors.New("invalid record")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// text is a JSON scalar read as a string. Source files carry ids and postal
// codes both as strings and as numbers.
type text string

// UnmarshalJSON accepts strings and numbers. Integral numbers lose any
// fractional zeros so that 1067.0 reads as "1067".
func (t *text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = text(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		*t = text(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*t = text(n.String())
	return nil
}

func (t *text) value() string {
	if t == nil {
		return ""
	}
	return string(*t)
}

func (t *text) ptr() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

// primaryJSON is one object of the primary dataset file
type primaryJSON struct {
	ID        *text `json:"id"`
	Name      *text `json:"name"`
	Anschrift *text `json:"anschrift"`
	PLZ       *text `json:"plz"`
	Ort       *text `json:"ort"`
}

// candidateJSON is one object of a scraped candidate file
type candidateJSON struct {
	Info struct {
		ID          *text `json:"id"`
		Name        *text `json:"name"`
		Address     *text `json:"address"`
		Address2    *text `json:"address2"`
		Zip         *text `json:"zip"`
		City        *text `json:"city"`
		Website     *text `json:"website"`
		Email       *text `json:"email"`
		SchoolType  *text `json:"school_type"`
		LegalStatus *text `json:"legal_status"`
		Provider    *text `json:"provider"`
		Fax         *text `json:"fax"`
		Phone       *text `json:"phone"`
		Director    *text `json:"director"`
	} `json:"info"`
}

// Loader reads and normalizes both catalogs
type Loader struct {
	logger     *zap.Logger
	localDebug bool
}

// NewLoader creates a new catalog loader
func NewLoader(logger *zap.Logger, localDebug bool) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger, localDebug: localDebug}
}

// LoadPrimary loads the primary dataset from a JSON array file.
// Every primary record must validate, since each one gets a match result.
func (l *Loader) LoadPrimary(path string) ([]match.Record, error) {
	debug.DebugHeader(l.localDebug)
	defer debug.DebugFooter(l.localDebug)

	var rows []primaryJSON
	if err := readJSON(path, &rows); err != nil {
		return nil, err
	}

	records := make([]match.Record, 0, len(rows))
	for i, row := range rows {
		rec := match.Record{
			ID:            normalize.CleanField(row.ID.value()),
			Name:          normalize.Text(row.Name.value()),
			StreetAddress: normalize.StreetDebug(l.localDebug, row.Anschrift.value()),
			PostalCode:    normalize.PostalCode(row.PLZ.value()),
			City:          normalize.Text(row.Ort.value()),
		}
		if err := validateRecord(rec); err != nil {
			return nil, fmt.Errorf("primary record %d in %s: %w", i, path, err)
		}
		records = append(records, rec)
	}

	l.logger.Info("Loaded primary records", zap.String("path", path), zap.Int("records", len(records)))
	return records, nil
}

// LoadCandidates loads every *.json file in dir in lexical file name order.
// Candidates that fail validation are skipped and logged.
func (l *Loader) LoadCandidates(dir string) ([]match.Record, error) {
	debug.DebugHeader(l.localDebug)
	defer debug.DebugFooter(l.localDebug)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate directory %s: %w", dir, err)
	}

	var records []match.Record
	files, skipped := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files++

		path := filepath.Join(dir, entry.Name())
		var rows []candidateJSON
		if err := readJSON(path, &rows); err != nil {
			return nil, err
		}

		for _, row := range rows {
			rec := candidateRecord(row, l.localDebug)
			if err := validateRecord(rec); err != nil {
				l.logger.Warn("Skipping candidate", zap.String("file", entry.Name()), zap.Error(err))
				skipped++
				continue
			}
			records = append(records, rec)
		}
		debug.DebugOutput(l.localDebug, "Read %s: %d candidates so far", entry.Name(), len(records))
	}

	if files == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoInput)
	}

	l.logger.Info("Loaded candidate records",
		zap.String("dir", dir),
		zap.Int("files", files),
		zap.Int("records", len(records)),
		zap.Int("skipped", skipped))
	return records, nil
}

func candidateRecord(row candidateJSON, localDebug bool) match.Record {
	info := row.Info
	return match.Record{
		ID:            normalize.CleanField(info.ID.value()),
		Name:          normalize.Text(info.Name.value()),
		StreetAddress: normalize.StreetDebug(localDebug, info.Address.value()),
		PostalCode:    normalize.PostalCode(normalize.CleanField(info.Zip.value())),
		City:          normalize.Text(info.City.value()),
		Attributes: match.Attributes{
			Address2:    normalize.Optional(info.Address2.ptr()),
			Website:     normalize.Optional(info.Website.ptr()),
			Email:       normalize.Optional(info.Email.ptr()),
			SchoolType:  normalize.Optional(info.SchoolType.ptr()),
			LegalStatus: normalize.Optional(info.LegalStatus.ptr()),
			Provider:    normalize.Optional(info.Provider.ptr()),
			Fax:         normalize.Optional(info.Fax.ptr()),
			Phone:       normalize.Optional(info.Phone.ptr()),
			Director:    normalize.Optional(info.Director.ptr()),
		},
	}
}

func validateRecord(rec match.Record) error {
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRecord, rec.ID, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
