package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/domain/intervention"
	"github.com/oxycare/oxycare/internal/platform/apperror"
	"github.com/oxycare/oxycare/internal/platform/blobstore"
	"github.com/oxycare/oxycare/internal/platform/metrics"
)

// Source loads intervention graphs under the caller's access scope and
// records where the generated report lives.
type Source interface {
	Get(ctx context.Context, id uuid.UUID) (*intervention.Detail, error)
	RecordReport(ctx context.Context, id uuid.UUID, url string) error
}

// Result describes a stored report.
type Result struct {
	InterventionID uuid.UUID `json:"intervention_id"`
	ReportURL      string    `json:"report_url"`
	Key            string    `json:"key"`
	ContentType    string    `json:"content_type"`
	Size           int64     `json:"size"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Generator compiles, renders and stores intervention reports.
type Generator struct {
	src     Source
	store   blobstore.Store
	urlTTL  time.Duration
	apiBase string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewGenerator builds a Generator. apiBase is the API prefix used to build
// the download link when the store cannot issue direct URLs.
func NewGenerator(src Source, store blobstore.Store, urlTTL time.Duration, apiBase string, logger zerolog.Logger) *Generator {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &Generator{
		src:     src,
		store:   store,
		urlTTL:  urlTTL,
		apiBase: apiBase,
		logger:  logger.With().Str("component", "report").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// Key is the storage key of an intervention's report.
func Key(id uuid.UUID) string {
	return fmt.Sprintf("reports/intervention_%s.xlsx", id)
}

// Preview compiles the document without storing anything.
func (g *Generator) Preview(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := g.load(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := Compile(d, g.now().UTC())
	return &doc, nil
}

// Generate compiles and renders the report, stores it and records its URL
// on the intervention.
func (g *Generator) Generate(ctx context.Context, id uuid.UUID) (res *Result, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ReportsGeneratedTotal.WithLabelValues(result).Inc()
	}()

	doc, err := g.Preview(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := RenderXLSX(*doc)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("render report: %w", err))
	}

	key := Key(id)
	info, err := g.store.Put(ctx, key, bytes.NewReader(content), ContentTypeXLSX)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("store report: %w", err))
	}

	url, err := g.store.URL(ctx, key, g.urlTTL)
	if errors.Is(err, blobstore.ErrUnsupported) {
		url, err = g.downloadPath(id), nil
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("report url: %w", err))
	}

	if err := g.src.RecordReport(ctx, id, url); err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("intervention_id", id.String()).
		Str("key", key).
		Int64("size", info.Size).
		Msg("report generated")

	return &Result{
		InterventionID: id,
		ReportURL:      url,
		Key:            key,
		ContentType:    ContentTypeXLSX,
		Size:           info.Size,
		GeneratedAt:    doc.GeneratedAt,
	}, nil
}

// Open streams a previously generated report. The caller must close the
// reader.
func (g *Generator) Open(ctx context.Context, id uuid.UUID) (blobstore.Info, io.ReadCloser, error) {
	if _, err := g.src.Get(ctx, id); err != nil {
		return blobstore.Info{}, nil, err
	}
	info, rc, err := g.store.Get(ctx, Key(id))
	if errors.Is(err, blobstore.ErrNotFound) {
		return blobstore.Info{}, nil, apperror.NotFound("report", id)
	}
	if err != nil {
		return blobstore.Info{}, nil, apperror.Internal(fmt.Errorf("read report: %w", err))
	}
	return info, rc, nil
}

func (g *Generator) load(ctx context.Context, id uuid.UUID) (*intervention.Detail, error) {
	d, err := g.src.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != intervention.StatusCompleted {
		return nil, apperror.Validation(apperror.Violation{
			Field:   "status",
			Code:    "invalid_state",
			Message: "a report can only be generated once the intervention is Completed",
		})
	}
	return d, nil
}

func (g *Generator) downloadPath(id uuid.UUID) string {
	return fmt.Sprintf("%s/interventions/%s/rapport/fichier", g.apiBase, id)
}
