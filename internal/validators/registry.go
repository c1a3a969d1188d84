// Package validators caches validator lookup tables and answers the
// question "which validator explains these values, and what are their
// human-readable labels?".
//
// Every resolution step is soft-fail: a missing validator, column or code
// degrades to the literal value and is never an error.
package validators

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/reportsheets/internal/schema"
)

var (
	validatorsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reportsheets_validators_loaded",
		Help: "Number of validator tables held by the registry.",
	})
	validatorLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportsheets_validator_load_failures_total",
		Help: "Validator registry loads that failed and left the registry empty.",
	})
)

// Default paging for Load.
const (
	DefaultPageSize = 100
	DefaultMaxPages = 200
)

// Source fetches one page of validators. Pages are 1-based.
type Source interface {
	ListValidators(ctx context.Context, page, limit int) ([]schema.Validator, error)
}

// Registry holds every validator table, loaded once per process.
type Registry struct {
	source   Source
	logger   *slog.Logger
	pageSize int
	maxPages int

	// loadMu serializes Load so concurrent callers share one fetch.
	loadMu sync.Mutex

	mu         sync.RWMutex
	loaded     bool
	validators []schema.Validator
	byName     map[string]int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPageSize sets the page size used by Load.
func WithPageSize(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithMaxPages bounds the number of pages Load will request.
func WithMaxPages(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxPages = n
		}
	}
}

// NewRegistry creates an empty registry backed by source.
func NewRegistry(source Source, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		source:   source,
		logger:   logger.With(slog.String("component", "validator_registry")),
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
		byName:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewStaticRegistry creates a registry that is already loaded with vs.
// Useful for offline tooling and tests.
func NewStaticRegistry(vs []schema.Validator) *Registry {
	r := NewRegistry(nil, nil)
	r.set(vs)
	return r
}

// Load fetches all validators once. Subsequent calls are no-ops after a
// successful load. On failure the error is logged, the registry stays
// empty and the next call tries again; callers treat "no validator" as a
// normal outcome, so Load never returns an error.
func (r *Registry) Load(ctx context.Context) {
	if r.Loaded() {
		return
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	// Another caller may have finished while we waited.
	if r.Loaded() {
		return
	}

	if r.source == nil {
		r.logger.Warn("validator registry has no source")
		return
	}

	all, err := r.fetchAll(ctx)
	if err != nil {
		validatorLoadFailures.Inc()
		r.logger.Error("failed to load validators", slog.String("error", err.Error()))
		return
	}

	r.set(all)
	r.logger.Info("validators loaded", slog.Int("count", len(all)))
}

// fetchAll walks pages until a short page is returned.
func (r *Registry) fetchAll(ctx context.Context) ([]schema.Validator, error) {
	var all []schema.Validator
	for page := 1; page <= r.maxPages; page++ {
		batch, err := r.source.ListValidators(ctx, page, r.pageSize)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, batch...)
		if len(batch) < r.pageSize {
			return all, nil
		}
	}
	r.logger.Warn("validator paging stopped at page limit",
		slog.Int("max_pages", r.maxPages),
		slog.Int("count", len(all)),
	)
	return all, nil
}

func (r *Registry) set(vs []schema.Validator) {
	byName := make(map[string]int, len(vs))
	for i, v := range vs {
		key := schema.Normalize(v.Name)
		if _, exists := byName[key]; !exists {
			byName[key] = i
		}
	}

	r.mu.Lock()
	r.validators = vs
	r.byName = byName
	r.loaded = true
	r.mu.Unlock()

	validatorsLoaded.Set(float64(len(vs)))
}

// Loaded reports whether a load has completed successfully.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// All returns the cached validators in load order.
func (r *Registry) All() []schema.Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.Validator, len(r.validators))
	copy(out, r.validators)
	return out
}

// Lookup finds a validator by name ignoring case and accents.
// It implements schema.ValidatorSet.
func (r *Registry) Lookup(name string) (schema.Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[schema.Normalize(name)]
	if !ok {
		return schema.Validator{}, false
	}
	return r.validators[i], true
}

// ResolveValidatorName maps a field name to a validator name using the
// static exact-match table. Unmapped fields return false.
func (r *Registry) ResolveValidatorName(fieldName string) (string, bool) {
	name, ok := mappingIndex[schema.Normalize(fieldName)]
	return name, ok
}
