package exporttext

import (
	"context"

	"github.com/salmanaghayev/text-csv-or-excel/enrich"
	"github.com/salmanaghayev/text-csv-or-excel/export"
	"github.com/salmanaghayev/text-csv-or-excel/textnorm"
)

// Enrichment appends the "Extra Info" column, joining each data row on its
// first field against an index built from the auxiliary file at path. The
// index is built once per run, when the pipeline is wired.
func Enrichment(path string, opts ...enrich.Option) export.LookupTransformer {
	return export.NewLookupTransformer(enrich.ExtraColumn, func(ctx context.Context) (export.LookupFunc, error) {
		file, err := openFile(path, "auxiliary")
		if err != nil {
			return nil, err
		}
		defer file.Close()

		idx, err := enrich.BuildFromReader(ctx, file, opts...)
		if err != nil {
			return nil, err
		}
		enricher := enrich.NewEnricher(idx)
		return func(row export.Row) string {
			return enricher.Extra(row)
		}, nil
	})
}

// JobConfig holds the settings shared by every sheet of a run.
type JobConfig struct {
	Normalizer *textnorm.Normalizer
	SkipBlank  bool
	// OnSkip observes malformed auxiliary lines.
	OnSkip enrich.SkipFunc
}

// NewJob pairs a primary file with an optional auxiliary file.
func NewJob(name, input, auxiliary string, cfg JobConfig) export.SheetJob {
	job := export.SheetJob{
		Name: name,
		Source: NewFileSource(input,
			WithNormalizer(cfg.Normalizer),
			WithSkipBlank(cfg.SkipBlank),
		),
	}
	if auxiliary != "" {
		job.Transformers = append(job.Transformers, Enrichment(auxiliary,
			enrich.WithNormalizer(cfg.Normalizer),
			enrich.WithSkipHook(cfg.OnSkip),
		))
	}
	return job
}
