// Package mirror walks a report-server catalog depth first and mirrors it
// into a storage.Writer, keeping only files whose name carries a date in range.
package mirror

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"pbimirror/internal/catalog"
	"pbimirror/internal/config"
	"pbimirror/internal/datefilter"
	apperrors "pbimirror/internal/errors"
	"pbimirror/internal/infrastructure"
	"pbimirror/internal/storage"
)

// Catalog is the remote side of a walk.
type Catalog interface {
	List(ctx context.Context, ref catalog.FolderRef) (*catalog.Listing, error)
	FetchContent(ctx context.Context, itemID string) ([]byte, error)
}

// Context is the state threaded through the walk. Dir is relative to the
// writer root and changes per level; the rest is fixed for a run.
type Context struct {
	RemoteBase string
	LocalBase  string
	Dir        string
	Range      datefilter.Range
}

func (c Context) child(name string) Context {
	c.Dir = path.Join(c.Dir, name)
	return c
}

// frame is one level of the explicit walk stack.
type frame struct {
	items []catalog.Item
	next  int
	tc    Context
}

// Walker mirrors a catalog tree. A Walker runs one walk at a time.
type Walker struct {
	catalog  Catalog
	writer   storage.Writer
	cfg      config.MirrorConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.MirrorMetrics
	observer Observer

	current atomic.Pointer[Report]
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the walker logger
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTracer sets the tracer for mirror.walk and mirror.download spans
func WithTracer(tracer trace.Tracer) Option {
	return func(w *Walker) {
		if tracer != nil {
			w.tracer = tracer
		}
	}
}

// WithMetrics records walk metrics
func WithMetrics(metrics *infrastructure.MirrorMetrics) Option {
	return func(w *Walker) {
		w.metrics = metrics
	}
}

// WithObserver receives walk events
func WithObserver(observer Observer) Option {
	return func(w *Walker) {
		if observer != nil {
			w.observer = observer
		}
	}
}

// NewWalker creates a walker reading from cat and writing to writer.
func NewWalker(cat Catalog, writer storage.Writer, cfg config.MirrorConfig, opts ...Option) *Walker {
	w := &Walker{
		catalog:  cat,
		writer:   writer,
		cfg:      cfg,
		logger:   infrastructure.GetLogger(),
		tracer:   tracenoop.NewTracerProvider().Tracer("mirror"),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = infrastructure.WithComponent(w.logger, "walker")
	return w
}

// Status returns a snapshot of the running or last finished walk.
func (w *Walker) Status() (Summary, bool) {
	report := w.current.Load()
	if report == nil {
		return Summary{}, false
	}
	return report.Snapshot(), true
}

// Run lists the folder at ref and walks it. A NETWORK failure on that first
// listing is returned because it means the server could not be reached or
// refused the credentials. Any other root failure yields an empty report.
func (w *Walker) Run(ctx context.Context, ref catalog.FolderRef, rng datefilter.Range) (*Report, error) {
	listing, err := w.catalog.List(ctx, ref)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeNetwork) {
			return nil, err
		}
		ctx = infrastructure.EnsureTraceID(ctx)
		report := w.begin(ctx, rng)
		w.recordListFailure(ctx, report, ref, err)
		w.complete(ctx, report, false)
		return report, nil
	}
	return w.WalkListing(ctx, listing, rng), nil
}

// Walk mirrors the given root items.
func (w *Walker) Walk(ctx context.Context, root []catalog.Item, rng datefilter.Range) *Report {
	return w.WalkListing(ctx, &catalog.Listing{Items: root}, rng)
}

// WalkListing mirrors an already fetched root listing, including its malformed entries.
func (w *Walker) WalkListing(ctx context.Context, root *catalog.Listing, rng datefilter.Range) *Report {
	ctx = infrastructure.EnsureTraceID(ctx)
	report := w.begin(ctx, rng)

	ctx, span := w.tracer.Start(ctx, "mirror.walk", trace.WithAttributes(
		attribute.String("mirror.run_id", infrastructure.GetTraceID(ctx)),
		attribute.String("mirror.range", rng.String()),
	))
	defer span.End()

	start := time.Now()
	tc := Context{
		RemoteBase: w.remoteBase(),
		LocalBase:  w.writer.Location(""),
		Range:      rng,
	}

	w.logger.InfoContext(ctx, "Starting walk",
		slog.String("remote_base", tc.RemoteBase),
		slog.String("local_base", tc.LocalBase),
		slog.String("range", rng.String()),
		slog.Int("root_items", len(root.Items)))

	w.recordMalformed(ctx, report, root.Malformed)
	canceled := w.walk(ctx, root.Items, tc, report)

	w.metrics.RecordWalk(ctx, time.Since(start))
	w.complete(ctx, report, canceled)

	summary := report.Snapshot()
	span.SetAttributes(
		attribute.Int("mirror.downloaded", summary.Counts.Downloaded),
		attribute.Int("mirror.items", summary.Counts.Items),
		attribute.Bool("mirror.canceled", canceled),
	)
	return report
}

// walk runs the depth-first pre-order loop and reports whether ctx stopped it.
func (w *Walker) walk(ctx context.Context, root []catalog.Item, tc Context, report *Report) bool {
	visited := make(map[string]struct{})
	stack := []frame{{items: root, tc: tc}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			w.logger.WarnContext(ctx, "Walk interrupted", slog.String("error", err.Error()))
			return true
		}

		top := &stack[len(stack)-1]
		if top.next >= len(top.items) {
			stack = stack[:len(stack)-1]
			continue
		}
		item := top.items[top.next]
		top.next++

		if child, ok := w.visit(ctx, item, top.tc, visited, report); ok {
			stack = append(stack, child)
		}
	}
	return false
}

// visit handles one item and returns the frame to descend into for folders.
func (w *Walker) visit(ctx context.Context, item catalog.Item, tc Context, visited map[string]struct{}, report *Report) (frame, bool) {
	report.item()
	w.metrics.RecordItem(ctx, item.Kind.String())
	w.logger.InfoContext(ctx, "Processing item",
		slog.String("name", item.Name),
		slog.String("type", item.Type))

	if _, seen := visited[item.ID]; seen {
		report.duplicate()
		w.logger.WarnContext(ctx, "Item already visited",
			slog.String("id", item.ID),
			slog.String("name", item.Name))
		return frame{}, false
	}
	visited[item.ID] = struct{}{}

	switch item.Kind {
	case catalog.KindFolder:
		return w.visitFolder(ctx, item, tc, report)

	case catalog.KindWorkbook, catalog.KindResource:
		if err := validateName(item.Name); err != nil {
			w.reject(ctx, report, item, err)
			return frame{}, false
		}
		report.record(w.DownloadIfInRange(ctx, item.ID, item.Filename(), tc.Dir, tc.Range))
		return frame{}, false

	default:
		report.unknownKind()
		err := apperrors.NewUnknownItemKindError(item.Type)
		w.logger.WarnContext(ctx, "Unknown item type",
			slog.String("name", item.Name),
			slog.String("type", item.Type))
		w.observer.OnEvent(ctx, w.event(ctx, EventUnknownKind, item, "", err))
		return frame{}, false
	}
}

func (w *Walker) visitFolder(ctx context.Context, item catalog.Item, tc Context, report *Report) (frame, bool) {
	if err := validateName(item.Name); err != nil {
		w.reject(ctx, report, item, err)
		return frame{}, false
	}

	child := tc.child(item.Name)
	if err := w.writer.EnsureDir(ctx, child.Dir); err != nil {
		report.folderWriteError()
		w.logger.ErrorContext(ctx, "Failed to create folder",
			slog.String("path", w.writer.Location(child.Dir)),
			slog.String("error", err.Error()))
		return frame{}, false
	}
	report.folder()
	location := w.writer.Location(child.Dir)
	w.logger.InfoContext(ctx, "Created folder", slog.String("path", location))
	ev := w.event(ctx, EventFolderCreated, item, "", nil)
	ev.Path = location
	w.observer.OnEvent(ctx, ev)

	ref := catalog.ByID(item.ID)
	listing, err := w.catalog.List(ctx, ref)
	if err != nil {
		w.recordListFailure(ctx, report, ref, err)
		return frame{}, false
	}
	w.recordMalformed(ctx, report, listing.Malformed)

	return frame{items: listing.Items, tc: child}, true
}

func (w *Walker) reject(ctx context.Context, report *Report, item catalog.Item, err error) {
	report.rejected()
	w.logger.WarnContext(ctx, "Unexpected item format",
		slog.String("id", item.ID),
		slog.String("name", item.Name),
		slog.String("error", err.Error()))
	w.observer.OnEvent(ctx, w.event(ctx, EventMalformedItem, item, "", err))
}

func (w *Walker) recordListFailure(ctx context.Context, report *Report, ref catalog.FolderRef, err error) {
	report.listFailure()
	w.metrics.RecordListFailure(ctx, string(apperrors.TypeOf(err)))
	w.logger.WarnContext(ctx, "Failed to retrieve folder items",
		slog.String("folder", ref.String()),
		slog.String("error", err.Error()))
	w.observer.OnEvent(ctx, Event{
		Type:  EventListFailed,
		Time:  time.Now().UTC(),
		RunID: infrastructure.GetTraceID(ctx),
		Name:  ref.String(),
		Error: err.Error(),
	})
}

func (w *Walker) recordMalformed(ctx context.Context, report *Report, entries []catalog.MalformedEntry) {
	if len(entries) == 0 {
		return
	}
	report.malformed(len(entries))
	for _, m := range entries {
		w.logger.WarnContext(ctx, "Unexpected item format",
			slog.String("entry", string(m.Raw)),
			slog.String("error", m.Err.Error()))
		w.observer.OnEvent(ctx, Event{
			Type:  EventMalformedItem,
			Time:  time.Now().UTC(),
			RunID: infrastructure.GetTraceID(ctx),
			Error: m.Err.Error(),
		})
	}
}

func (w *Walker) begin(ctx context.Context, rng datefilter.Range) *Report {
	report := NewReport(infrastructure.GetTraceID(ctx), rng)
	w.current.Store(report)
	return report
}

func (w *Walker) complete(ctx context.Context, report *Report, canceled bool) {
	report.finish(canceled)
	summary := report.Snapshot()
	w.logger.InfoContext(ctx, "Walk finished",
		slog.Int("items", summary.Counts.Items),
		slog.Int("downloaded", summary.Counts.Downloaded),
		slog.Int("out_of_range", summary.Counts.OutOfRange),
		slog.Int("list_failures", summary.Counts.ListFailures),
		slog.Bool("canceled", canceled))
	w.observer.OnEvent(ctx, Event{
		Type:   EventRunComplete,
		Time:   time.Now().UTC(),
		RunID:  summary.RunID,
		Counts: &summary.Counts,
	})
}

func (w *Walker) event(ctx context.Context, t EventType, item catalog.Item, reason string, err error) Event {
	e := Event{
		Type:   t,
		Time:   time.Now().UTC(),
		RunID:  infrastructure.GetTraceID(ctx),
		ItemID: item.ID,
		Name:   item.Name,
		Reason: reason,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func (w *Walker) remoteBase() string {
	if b, ok := w.catalog.(interface{ BaseURL() string }); ok {
		return b.BaseURL()
	}
	return ""
}

// validateName rejects names that could not be a single path element.
func validateName(name string) error {
	switch {
	case name == "":
		return apperrors.NewUnexpectedItemShapeError("item name is empty")
	case name == "." || name == "..":
		return apperrors.NewUnexpectedItemShapeError("item name is a relative path element").WithContext("name", name)
	case strings.ContainsAny(name, `/\`):
		return apperrors.NewUnexpectedItemShapeError("item name contains a path separator").WithContext("name", name)
	}
	return nil
}
