package scriptcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Amund211/scriptcache/internal/adapters/document"
	"github.com/Amund211/scriptcache/internal/domain"
	"github.com/Amund211/scriptcache/internal/future"
	"github.com/Amund211/scriptcache/internal/logging"
	"github.com/Amund211/scriptcache/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type RegistrationStatus string

const (
	// A new record was created and its load started
	StatusStarted RegistrationStatus = "started"
	// The name was already registered, its record was reused
	StatusExisting RegistrationStatus = "existing"
	// The document already had a script for the url, nothing was registered
	StatusSkipped RegistrationStatus = "skipped"
)

type Registration struct {
	domain.Entry
	Status RegistrationStatus
}

type Callback func(err error, record *Record)

// AllCallback receives either errs or records, never both
type AllCallback func(errs []error, records []*Record)

// Stub bundles a registered script with a notifier bound to its name
type Stub struct {
	Name      string
	SourceURL string
	Record    *Record
	OnLoad    func(cb Callback)
}

// SettleHook is called after a record settles and its subscribers have run
type SettleHook func(ctx context.Context, record *Record)

// Cache loads each script name at most once into a document.
//
// Create one per document at startup. Records are never removed.
type Cache struct {
	doc     document.Document
	nowFunc func() time.Time
	hooks   []SettleHook
	tracer  trace.Tracer

	mu      sync.Mutex
	records map[string]*Record
	// Registration order of records, used when iterating the registry
	order []*Record
	// Urls this cache has inserted. Checked alongside the document so two
	// concurrent registrations can't both insert the same url.
	urls  map[string]bool
	stubs map[string]Stub
}

type Option func(*Cache)

func WithSettleHook(hook SettleHook) Option {
	return func(c *Cache) {
		c.hooks = append(c.hooks, hook)
	}
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(c *Cache) {
		c.nowFunc = nowFunc
	}
}

func New(doc document.Document, opts ...Option) *Cache {
	c := &Cache{
		doc:     doc,
		nowFunc: time.Now,
		tracer:  otel.Tracer("scriptcache/scriptcache"),
		records: make(map[string]*Record),
		urls:    make(map[string]bool),
		stubs:   make(map[string]Stub),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache registers every entry, in order. Entries whose name is already
// registered, or whose url is already in the document, start no load.
// Entries that end up with a record get a stub.
func (c *Cache) Cache(ctx context.Context, entries []domain.Entry) []Registration {
	registrations := make([]Registration, 0, len(entries))

	for _, entry := range entries {
		record, status := c.getScript(ctx, entry.URL, entry.Name)

		metrics.registrationCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(status)),
		))
		logging.FromContext(ctx).InfoContext(
			ctx,
			"Registering script",
			slog.String("name", entry.Name),
			slog.String("url", entry.URL),
			slog.String("status", string(status)),
		)

		registrations = append(registrations, Registration{Entry: entry, Status: status})

		if record == nil {
			continue
		}

		name := entry.Name
		stub := Stub{
			Name:      name,
			SourceURL: entry.URL,
			Record:    record,
			OnLoad: func(cb Callback) {
				c.OnLoad(name, cb)
			},
		}

		c.mu.Lock()
		c.stubs[name] = stub
		c.mu.Unlock()
	}

	return registrations
}

// GetScript returns the record for name, starting a load of url if the name is
// new. Returns false if the name is new but the url is already in the document.
func (c *Cache) GetScript(ctx context.Context, url, name string) (*Record, bool) {
	record, _ := c.getScript(ctx, url, name)
	return record, record != nil
}

func (c *Cache) GetScriptStub(name string) (Stub, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stub, ok := c.stubs[name]
	return stub, ok
}

// Records returns every record in registration order
func (c *Cache) Records() []*Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*Record{}, c.order...)
}

func (c *Cache) lookup(name string) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.records[name]
	return record, ok
}

func (c *Cache) getScript(ctx context.Context, url, name string) (*Record, RegistrationStatus) {
	c.mu.Lock()

	if existing, ok := c.records[name]; ok {
		c.mu.Unlock()
		return existing, StatusExisting
	}

	if c.urls[url] || c.doc.HasScript(url) {
		c.mu.Unlock()
		return nil, StatusSkipped
	}

	loadCtx, span := c.tracer.Start(
		logging.AddScriptToContext(context.WithoutCancel(ctx), name, url),
		"scriptcache.Load",
		trace.WithAttributes(
			attribute.String("script.name", name),
			attribute.String("script.url", url),
		),
	)

	signal := future.New[*Record]()

	el := c.doc.CreateScript()
	el.Async = false
	el.Type = document.TypeJavaScript
	el.Src = url

	observer := c.newCompletionObserver(loadCtx, span, name, url, signal)
	el.AddEventListener(document.EventLoad, observer)
	el.AddEventListener(document.EventError, observer)

	record := &Record{
		name:      name,
		url:       url,
		element:   el,
		signal:    signal,
		startedAt: c.nowFunc(),
	}

	// The record must be in the registry before the load can possibly settle
	c.records[name] = record
	c.order = append(c.order, record)
	c.urls[url] = true
	c.mu.Unlock()

	// Not holding the lock, documents may settle synchronously
	c.doc.AppendChild(loadCtx, el)

	return record, StatusStarted
}

func (c *Cache) newCompletionObserver(
	ctx context.Context,
	span trace.Span,
	name, url string,
	signal *future.Future[*Record],
) func(document.Event) {
	return func(event document.Event) {
		record, ok := c.lookup(name)
		if !ok {
			if signal.Reject(ErrScriptDoesNotExist) {
				reporting.Report(ctx, ErrScriptDoesNotExist, map[string]string{
					"name": name,
					"url":  url,
				})
				span.SetStatus(codes.Error, ErrScriptDoesNotExist.Error())
				span.End()
			}
			return
		}

		switch event.Type {
		case document.EventLoad:
			if !record.markLoaded(c.nowFunc()) {
				return
			}
			signal.Resolve(record)
		case document.EventError:
			loadErr := &LoadError{Name: name, URL: url, Err: event.Err}
			if !record.markRejected(loadErr, c.nowFunc()) {
				return
			}
			signal.Reject(record.Err())
		default:
			return
		}

		c.observeSettlement(ctx, span, record)
	}
}

func (c *Cache) observeSettlement(ctx context.Context, span trace.Span, record *Record) {
	defer span.End()

	outcome := domain.LoadStatusLoaded
	if record.WasRejected() {
		outcome = domain.LoadStatusRejected
	}

	duration := record.SettledAt().Sub(record.StartedAt())
	attributes := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	metrics.loadCount.Add(ctx, 1, attributes)
	metrics.loadDuration.Record(ctx, duration.Seconds(), attributes)

	logger := logging.FromContext(ctx).With(
		slog.String("outcome", string(outcome)),
		slog.Duration("duration", duration),
	)

	if err := record.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "script failed to load")
		reporting.Report(ctx, err, map[string]string{
			"name": record.Name(),
			"url":  record.URL(),
		})
	} else {
		span.SetStatus(codes.Ok, "")
		logger.InfoContext(ctx, "Script loaded")
	}

	for _, hook := range c.hooks {
		hook(ctx, record)
	}
}
