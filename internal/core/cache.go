package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/JonMunkholm/reportsheets/internal/backend"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/sheet"
)

// TemplateCache keeps recently used templates for a bounded time so a
// download followed by an upload fetches the template once.
type TemplateCache struct {
	cache *expirable.LRU[string, schema.Template]
}

// NewTemplateCache creates a cache of at most size templates that expire
// after ttl. A zero ttl keeps entries until they are evicted.
func NewTemplateCache(size int, ttl time.Duration) *TemplateCache {
	return &TemplateCache{cache: expirable.NewLRU[string, schema.Template](size, nil, ttl)}
}

// Get returns a cached template.
func (c *TemplateCache) Get(id string) (schema.Template, bool) {
	tpl, ok := c.cache.Get(id)
	if ok {
		templateCacheHits.Inc()
		return tpl, true
	}
	templateCacheMisses.Inc()
	return schema.Template{}, false
}

// Set stores a template under id.
func (c *TemplateCache) Set(id string, tpl schema.Template) {
	c.cache.Add(id, tpl)
}

// Invalidate drops one template.
func (c *TemplateCache) Invalidate(id string) {
	c.cache.Remove(id)
}

// RowProblem is a backend rejection of one cell.
type RowProblem struct {
	Column   string `json:"column"`
	Register int    `json:"register"`
	Message  string `json:"message"`
}

// ErrorLog records why an upload was refused so the user can review it
// on a separate page.
type ErrorLog struct {
	ID           string              `json:"id"`
	TemplateID   string              `json:"template_id"`
	TemplateName string              `json:"template_name"`
	FileName     string              `json:"file_name"`
	CreatedAt    time.Time           `json:"created_at"`
	Columns      []sheet.ColumnError `json:"columns,omitempty"`
	ValidColumns []string            `json:"valid_columns,omitempty"`
	Rows         []RowProblem        `json:"rows,omitempty"`
}

// Total is the number of problems in the log.
func (l *ErrorLog) Total() int {
	return len(l.Columns) + len(l.Rows)
}

func headerErrorLog(tpl schema.Template, fileName string, herr *sheet.HeaderError) *ErrorLog {
	return &ErrorLog{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		FileName:     fileName,
		Columns:      herr.Columns,
		ValidColumns: herr.Valid,
	}
}

func rejectionErrorLog(tpl schema.Template, fileName string, rej *backend.RejectionError) *ErrorLog {
	log := &ErrorLog{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		FileName:     fileName,
	}
	for _, d := range rej.Details {
		for _, e := range d.Errors {
			log.Rows = append(log.Rows, RowProblem{Column: d.Column, Register: e.Register, Message: e.Message})
		}
	}
	return log
}

// ErrorLogStore holds error logs in memory under random IDs.
type ErrorLogStore struct {
	logs *expirable.LRU[string, *ErrorLog]
	now  func() time.Time
}

// NewErrorLogStore keeps at most size logs for ttl each.
func NewErrorLogStore(size int, ttl time.Duration) *ErrorLogStore {
	return &ErrorLogStore{
		logs: expirable.NewLRU[string, *ErrorLog](size, nil, ttl),
		now:  time.Now,
	}
}

// Save assigns an ID and creation time to log and stores it.
func (s *ErrorLogStore) Save(log *ErrorLog) string {
	log.ID = uuid.NewString()
	log.CreatedAt = s.now().UTC()
	s.logs.Add(log.ID, log)
	return log.ID
}

// Get returns a stored log.
func (s *ErrorLogStore) Get(id string) (*ErrorLog, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	return s.logs.Get(id)
}
