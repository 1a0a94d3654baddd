package command

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-errors"

	"github.com/salmanaghayev/text-csv-or-excel/export"
	"github.com/salmanaghayev/text-csv-or-excel/textnorm"
)

// Normalization holds the line settings shared by single-file commands.
// Empty values fall back to the environment configuration.
type Normalization struct {
	Delimiter string
	RulesFile string
	SkipBlank bool
}

func (n Normalization) validate() error {
	if n.Delimiter == "" {
		return nil
	}
	if _, err := textnorm.ParseDelimiter(n.Delimiter); err != nil {
		return err
	}
	return nil
}

// NormalizeLines rewrites a text file with every line normalized.
type NormalizeLines struct {
	Input  string
	Output string
	Normalization
}

// NormalizeResult reports what NormalizeLines wrote. The handler stores it
// in the context result when one is attached.
type NormalizeResult struct {
	Lines int
	Bytes int64
}

func (NormalizeLines) Type() string { return "logsheet:normalize" }

func (msg NormalizeLines) Validate() error {
	if strings.TrimSpace(msg.Input) == "" {
		return errors.New("input file is required", errors.CategoryValidation).
			WithTextCode("INPUT_REQUIRED")
	}
	if strings.TrimSpace(msg.Output) == "" {
		return errors.New("output file is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_REQUIRED")
	}
	return msg.Normalization.validate()
}

// WriteSheet writes one text file, optionally enriched, as a sheet of a
// workbook.
type WriteSheet struct {
	Input     string
	Auxiliary string
	Workbook  string
	// Sheet defaults to the input file name.
	Sheet string
	Normalization
}

func (WriteSheet) Type() string { return "logsheet:sheet" }

func (msg WriteSheet) Validate() error {
	if strings.TrimSpace(msg.Input) == "" {
		return errors.New("input file is required", errors.CategoryValidation).
			WithTextCode("INPUT_REQUIRED")
	}
	if strings.TrimSpace(msg.Workbook) == "" {
		return errors.New("workbook path is required", errors.CategoryValidation).
			WithTextCode("WORKBOOK_REQUIRED")
	}
	if !strings.EqualFold(filepath.Ext(msg.Workbook), ".xlsx") {
		return errors.New("workbook must be an .xlsx file", errors.CategoryValidation).
			WithTextCode("WORKBOOK_EXTENSION")
	}
	return msg.Normalization.validate()
}

// ExportSheet renders one text file into an artifact of the given format.
type ExportSheet struct {
	Input     string
	Auxiliary string
	Format    export.Format
	OutDir    string
	Sheet     string
	// NameTemplate names the artifact, see export.RendererSink.
	NameTemplate string
	Normalization
}

func (ExportSheet) Type() string { return "logsheet:export" }

func (msg ExportSheet) Validate() error {
	if strings.TrimSpace(msg.Input) == "" {
		return errors.New("input file is required", errors.CategoryValidation).
			WithTextCode("INPUT_REQUIRED")
	}
	if strings.TrimSpace(msg.OutDir) == "" {
		return errors.New("output directory is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_REQUIRED")
	}
	if err := validateFormat(msg.Format); err != nil {
		return err
	}
	return msg.Normalization.validate()
}

// RunBatch writes every sheet of a manifest. Sheets go into a workbook
// unless Format is set, in which case each becomes an artifact in OutDir.
type RunBatch struct {
	Manifest string
	// Workbook overrides the manifest's workbook.
	Workbook string
	Format   export.Format
	OutDir   string
	// Parallel overrides LOGSHEET_PARALLEL when positive.
	Parallel int
}

func (RunBatch) Type() string { return "logsheet:batch" }

func (msg RunBatch) Validate() error {
	if strings.TrimSpace(msg.Manifest) == "" {
		return errors.New("manifest is required", errors.CategoryValidation).
			WithTextCode("MANIFEST_REQUIRED")
	}
	if msg.Parallel < 0 {
		return errors.New("parallel must not be negative", errors.CategoryValidation).
			WithTextCode("PARALLEL_INVALID")
	}
	if msg.Format == "" {
		if msg.OutDir != "" {
			return errors.New("output directory needs a format", errors.CategoryValidation).
				WithTextCode("FORMAT_REQUIRED")
		}
		return nil
	}
	if err := validateFormat(msg.Format); err != nil {
		return err
	}
	if strings.TrimSpace(msg.OutDir) == "" {
		return errors.New("output directory is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_REQUIRED")
	}
	return nil
}

// WatchBatch re-runs a batch whenever its manifest or inputs change.
type WatchBatch struct {
	RunBatch
	// Debounce overrides LOGSHEET_WATCH_DEBOUNCE when positive.
	Debounce time.Duration
}

func (WatchBatch) Type() string { return "logsheet:watch" }

func (msg WatchBatch) Validate() error {
	if err := msg.RunBatch.Validate(); err != nil {
		return err
	}
	if msg.Debounce < 0 {
		return errors.New("debounce must not be negative", errors.CategoryValidation).
			WithTextCode("DEBOUNCE_INVALID")
	}
	return nil
}

func validateFormat(format export.Format) error {
	switch format {
	case export.FormatCSV, export.FormatJSON, export.FormatNDJSON, export.FormatXLSX, export.FormatSQLite:
		return nil
	case "":
		return errors.New("format is required", errors.CategoryValidation).
			WithTextCode("FORMAT_REQUIRED")
	default:
		return errors.New("unsupported format "+string(format), errors.CategoryValidation).
			WithTextCode("FORMAT_UNSUPPORTED")
	}
}
