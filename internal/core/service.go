package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/reportsheets/internal/backend"
	"github.com/JonMunkholm/reportsheets/internal/facets"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/sheet"
	"github.com/JonMunkholm/reportsheets/internal/store"
	"github.com/JonMunkholm/reportsheets/internal/validators"
)

var (
	// ErrTemplateNotFound is returned when no source knows the template.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrErrorLogNotFound is returned for unknown or expired error log IDs.
	ErrErrorLogNotFound = errors.New("error log not found")
)

// TemplateSource fetches template definitions.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*schema.Template, error)
}

// RecordStore reads and writes the records collected with a published
// template.
type RecordStore interface {
	MergedData(ctx context.Context, pubTemID, email string) ([]schema.Record, error)
	LoadRecords(ctx context.Context, req backend.LoadRequest) (int, error)
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	MaxRows int
	Author  string
	// Timeout bounds one export or import including source calls.
	Timeout time.Duration

	MaxConcurrent int
	MaxWaitTime   time.Duration

	TemplateCacheSize int
	TemplateCacheTTL  time.Duration
	ErrorLogSize      int
	ErrorLogTTL       time.Duration
}

func (o *Options) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	if o.TemplateCacheSize <= 0 {
		o.TemplateCacheSize = 256
	}
	if o.ErrorLogSize <= 0 {
		o.ErrorLogSize = 500
	}
	if o.ErrorLogTTL <= 0 {
		o.ErrorLogTTL = time.Hour
	}
}

// Service runs the export and import pipelines against a template source,
// a record store and the validator registry.
type Service struct {
	templates TemplateSource
	records   RecordStore
	registry  *validators.Registry

	cache     *TemplateCache
	errorLogs *ErrorLogStore
	limiter   *CodecLimiter

	opts   Options
	logger *slog.Logger
}

// NewService wires a Service. records may be nil for offline use; submit
// and producer exports then fail.
func NewService(templates TemplateSource, records RecordStore, registry *validators.Registry, opts Options, logger *slog.Logger) *Service {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = validators.NewStaticRegistry(nil)
	}
	return &Service{
		templates: templates,
		records:   records,
		registry:  registry,
		cache:     NewTemplateCache(opts.TemplateCacheSize, opts.TemplateCacheTTL),
		errorLogs: NewErrorLogStore(opts.ErrorLogSize, opts.ErrorLogTTL),
		limiter:   NewCodecLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		opts:      opts,
		logger:    logger.With(slog.String("component", "service")),
	}
}

// Registry exposes the validator registry.
func (s *Service) Registry() *validators.Registry {
	return s.registry
}

// Limiter exposes the codec limiter for health reporting and shutdown.
func (s *Service) Limiter() *CodecLimiter {
	return s.limiter
}

// Template returns a validated template, from cache when possible.
func (s *Service) Template(ctx context.Context, id string) (schema.Template, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return schema.Template{}, fmt.Errorf("%w: empty id", ErrTemplateNotFound)
	}
	if tpl, ok := s.cache.Get(id); ok {
		return tpl, nil
	}

	got, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
			return schema.Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		return schema.Template{}, fmt.Errorf("get template %s: %w", id, err)
	}
	if got == nil {
		return schema.Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	tpl := *got
	if tpl.ID == "" {
		tpl.ID = id
	}
	if err := tpl.Validate(); err != nil {
		return schema.Template{}, err
	}
	s.cache.Set(id, tpl)
	return tpl, nil
}

// InvalidateTemplate drops a cached template after it was edited.
func (s *Service) InvalidateTemplate(id string) {
	s.cache.Invalidate(id)
}

// validatorSet resolves names against the template's embedded validators
// first and the shared registry second.
func (s *Service) validatorSet(ctx context.Context, tpl schema.Template) schema.ValidatorSet {
	s.registry.Load(ctx)
	if len(tpl.Validators) == 0 {
		return s.registry
	}
	return layeredSet{schema.Validators(tpl.Validators), s.registry}
}

type layeredSet []schema.ValidatorSet

func (l layeredSet) Lookup(name string) (schema.Validator, bool) {
	for _, vs := range l {
		if v, ok := vs.Lookup(name); ok {
			return v, true
		}
	}
	return schema.Validator{}, false
}

// Workbook is a generated .xlsx file.
type Workbook struct {
	FileName string
	Data     []byte
}

// ExportTemplate builds the empty administrator workbook for a template.
func (s *Service) ExportTemplate(ctx context.Context, id string, guide bool) (*Workbook, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	tpl, err := s.Template(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.export(ctx, "template", tpl, nil, sheet.ExportOptions{
		IncludeGuide: guide,
		ListSheet:    sheet.ListSheetAdmin,
	})
	if err != nil {
		return nil, err
	}
	return &Workbook{FileName: WorkbookFileName(tpl, ""), Data: data}, nil
}

// ExportProducerWorkbook builds the workbook a producer fills in, pre-filled
// with the records already loaded for the published template.
func (s *Service) ExportProducerWorkbook(ctx context.Context, id, pubTemID, email string, guide bool) (*Workbook, error) {
	if s.records == nil {
		return nil, errors.New("producer export: no record store configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	tpl, err := s.Template(ctx, id)
	if err != nil {
		return nil, err
	}
	if pubTemID == "" {
		pubTemID = id
	}

	records, err := s.records.MergedData(ctx, pubTemID, email)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("merged data: %w", err)
	}

	data, err := s.export(ctx, "producer", tpl, records, sheet.ExportOptions{
		IncludeGuide: guide,
		ListSheet:    sheet.ListSheetProducer,
	})
	if err != nil {
		return nil, err
	}
	return &Workbook{FileName: WorkbookFileName(tpl, email), Data: data}, nil
}

func (s *Service) export(ctx context.Context, kind string, tpl schema.Template, records []schema.Record, opts sheet.ExportOptions) ([]byte, error) {
	vs := s.validatorSet(ctx, tpl)
	opts.Author = s.opts.Author
	opts.Logger = s.logger

	var data []byte
	err := s.limiter.Do(ctx, func() error {
		start := time.Now()
		defer func() { codecDuration.WithLabelValues("export").Observe(time.Since(start).Seconds()) }()

		var err error
		data, err = sheet.ExportBytes(tpl, records, vs, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	workbooksExported.WithLabelValues(kind).Inc()
	s.logger.Info("workbook exported",
		slog.String("kind", kind),
		slog.String("template_id", tpl.ID),
		slog.Int("records", len(records)),
		slog.Int("bytes", len(data)),
	)
	return data, nil
}

// ImportRejectedError means an upload was refused and the reasons were
// saved as an error log.
type ImportRejectedError struct {
	LogID string
	Err   error
}

func (e *ImportRejectedError) Error() string {
	return fmt.Sprintf("import rejected (error log %s): %v", e.LogID, e.Err)
}

func (e *ImportRejectedError) Unwrap() error {
	return e.Err
}

// ImportWorkbook parses a workbook against a template without submitting
// it. Unknown columns produce an *ImportRejectedError wrapping the
// *sheet.HeaderError.
func (s *Service) ImportWorkbook(ctx context.Context, id, fileName string, r io.Reader) (*sheet.ImportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	tpl, err := s.Template(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.parse(ctx, tpl, fileName, r)
}

func (s *Service) parse(ctx context.Context, tpl schema.Template, fileName string, r io.Reader) (*sheet.ImportResult, error) {
	vs := s.validatorSet(ctx, tpl)

	// Read the upload before taking a slot so slow clients do not hold one.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	var result *sheet.ImportResult
	err = s.limiter.Do(ctx, func() error {
		start := time.Now()
		defer func() { codecDuration.WithLabelValues("import").Observe(time.Since(start).Seconds()) }()

		var err error
		result, err = sheet.Import(bytes.NewReader(data), tpl, vs, sheet.ImportOptions{
			MaxRows: s.opts.MaxRows,
			Logger:  s.logger,
		})
		return err
	})
	if err != nil {
		var herr *sheet.HeaderError
		if errors.As(err, &herr) {
			workbooksImported.WithLabelValues(outcomeHeader).Inc()
			logID := s.errorLogs.Save(headerErrorLog(tpl, fileName, herr))
			s.logger.Warn("workbook has rejected columns",
				slog.String("template_id", tpl.ID),
				slog.Int("columns", len(herr.Columns)),
				slog.String("error_log_id", logID),
			)
			return nil, &ImportRejectedError{LogID: logID, Err: err}
		}
		workbooksImported.WithLabelValues(outcomeFailed).Inc()
		return nil, err
	}

	workbooksImported.WithLabelValues(outcomeOK).Inc()
	return result, nil
}

// SubmitRequest is an upload of a filled-in producer workbook.
type SubmitRequest struct {
	TemplateID string
	PubTemID   string
	Email      string
	Edit       bool
	FileName   string
	File       io.Reader
}

// SubmitResult reports a successful upload.
type SubmitResult struct {
	RecordsLoaded int `json:"recordsLoaded"`
	RowsRead      int `json:"rowsRead"`
	SkippedRows   int `json:"skippedRows"`
}

// SubmitWorkbook parses an upload and loads its records into the backend.
// Header problems and backend rejections are saved as error logs and
// returned as *ImportRejectedError.
func (s *Service) SubmitWorkbook(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if s.records == nil {
		return nil, errors.New("submit: no record store configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	tpl, err := s.Template(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	parsed, err := s.parse(ctx, tpl, req.FileName, req.File)
	if err != nil {
		return nil, err
	}

	pubTemID := req.PubTemID
	if pubTemID == "" {
		pubTemID = tpl.ID
	}
	data := parsed.Records
	if data == nil {
		data = []schema.Record{}
	}

	loaded, err := s.records.LoadRecords(ctx, backend.LoadRequest{
		Email:    req.Email,
		PubTemID: pubTemID,
		Data:     data,
		Edit:     req.Edit,
	})
	if err != nil {
		var rej *backend.RejectionError
		if errors.As(err, &rej) {
			workbooksImported.WithLabelValues(outcomeRejected).Inc()
			logID := s.errorLogs.Save(rejectionErrorLog(tpl, req.FileName, rej))
			s.logger.Warn("backend rejected records",
				slog.String("template_id", tpl.ID),
				slog.Int("columns", len(rej.Details)),
				slog.String("error_log_id", logID),
			)
			return nil, &ImportRejectedError{LogID: logID, Err: err}
		}
		return nil, fmt.Errorf("load records: %w", err)
	}

	recordsSubmitted.Add(float64(loaded))
	s.logger.Info("records submitted",
		slog.String("template_id", tpl.ID),
		slog.String("pub_tem_id", pubTemID),
		slog.Int("records", loaded),
		slog.Bool("edit", req.Edit),
	)
	return &SubmitResult{
		RecordsLoaded: loaded,
		RowsRead:      parsed.RowsRead,
		SkippedRows:   parsed.SkippedRows,
	}, nil
}

// ErrorLog returns a saved error log.
func (s *Service) ErrorLog(id string) (*ErrorLog, error) {
	log, ok := s.errorLogs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrErrorLogNotFound, id)
	}
	return log, nil
}

// Facets derives filter widgets for a template from a sample of records.
func (s *Service) Facets(ctx context.Context, id string, records []schema.Record) ([]facets.Filter, error) {
	tpl, err := s.Template(ctx, id)
	if err != nil {
		return nil, err
	}
	s.registry.Load(ctx)
	return facets.Derive(tpl.Fields, records, s.registry), nil
}

// EnrichValues labels observed values of a field. loose enables structural
// matching when the field has no exact validator mapping.
func (s *Service) EnrichValues(ctx context.Context, field string, values []string, loose bool) []validators.Option {
	s.registry.Load(ctx)
	if loose {
		return s.registry.EnrichValuesLoose(field, values)
	}
	return s.registry.EnrichValues(field, values)
}

// WorkbookFileName names a download after the template file name, falling
// back to its name. suffix, when set, is appended before the extension.
func WorkbookFileName(tpl schema.Template, suffix string) string {
	base := strings.TrimSpace(tpl.FileName)
	if base == "" {
		base = strings.TrimSpace(tpl.Name)
	}
	if base == "" {
		base = "plantilla"
	}
	base = strings.TrimSuffix(base, ".xlsx")
	if suffix != "" {
		if at := strings.IndexByte(suffix, '@'); at > 0 {
			suffix = suffix[:at]
		}
		base += "_" + suffix
	}
	return sanitizeFileName(base) + ".xlsx"
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}
