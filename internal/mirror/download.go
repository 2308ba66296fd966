package mirror

import (
	"context"
	"log/slog"
	"path"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pbimirror/internal/catalog"
	"pbimirror/internal/datefilter"
	apperrors "pbimirror/internal/errors"
	"pbimirror/internal/infrastructure"
)

// DownloadIfInRange fetches one file item and writes it to dir/filename when
// the date in filename lies in rng. Files without a parsable date are never
// written. With CheckDateFirst the date is checked before any request is made.
func (w *Walker) DownloadIfInRange(ctx context.Context, itemID, filename, dir string, rng datefilter.Range) Outcome {
	rel := path.Join(dir, filename)
	outcome := Outcome{
		ItemID:   itemID,
		Filename: filename,
		Path:     w.writer.Location(rel),
	}

	ctx, span := w.tracer.Start(ctx, "mirror.download", trace.WithAttributes(
		attribute.String("catalog.item_id", itemID),
		attribute.String("mirror.filename", filename),
	))
	defer span.End()

	var data []byte
	if w.cfg.CheckDateFirst {
		if !w.checkDate(ctx, &outcome, rng) {
			return w.finish(ctx, span, outcome)
		}
		if !w.fetch(ctx, &outcome, &data) {
			return w.finish(ctx, span, outcome)
		}
	} else {
		if !w.fetch(ctx, &outcome, &data) {
			return w.finish(ctx, span, outcome)
		}
		if !w.checkDate(ctx, &outcome, rng) {
			return w.finish(ctx, span, outcome)
		}
	}

	n, err := w.writer.WriteFile(ctx, rel, data)
	if err != nil {
		outcome.Reason = ReasonWriteError
		outcome.Err = err
		return w.finish(ctx, span, outcome)
	}

	outcome.Succeeded = true
	outcome.BytesWritten = n
	return w.finish(ctx, span, outcome)
}

func (w *Walker) fetch(ctx context.Context, outcome *Outcome, data *[]byte) bool {
	body, err := w.catalog.FetchContent(ctx, outcome.ItemID)
	if err != nil {
		outcome.Reason = ReasonHTTPError
		outcome.Err = err
		return false
	}
	*data = body
	return true
}

func (w *Walker) checkDate(ctx context.Context, outcome *Outcome, rng datefilter.Range) bool {
	date, err := datefilter.ExtractDate(outcome.Filename)
	if err != nil {
		outcome.Reason = ReasonUnparsableDate
		outcome.Err = err
		return false
	}
	outcome.Date = date
	if !rng.Contains(date) {
		outcome.Reason = ReasonOutOfRange
		return false
	}
	return true
}

// finish logs, measures and publishes an outcome.
func (w *Walker) finish(ctx context.Context, span trace.Span, o Outcome) Outcome {
	span.SetAttributes(attribute.String("mirror.outcome", o.Label()))
	w.metrics.RecordOutcome(ctx, o.Label(), o.BytesWritten)

	switch {
	case o.Succeeded:
		w.logger.InfoContext(ctx, "Downloaded file",
			slog.String("path", o.Path),
			slog.Int("bytes", o.BytesWritten))
	case o.Reason == ReasonOutOfRange:
		w.logger.InfoContext(ctx, "Skipping file outside of date range",
			slog.String("filename", o.Filename),
			slog.String("date", o.Date.Format(time.DateOnly)))
	case o.Reason == ReasonUnparsableDate:
		msg := "Incorrect date format in filename"
		if apperrors.IsType(o.Err, apperrors.ErrTypeMalformedFilename) {
			msg = "Error extracting date from filename"
		}
		w.logger.WarnContext(ctx, msg,
			slog.String("filename", o.Filename),
			slog.String("error", o.ErrorMessage()))
	case o.Reason == ReasonHTTPError:
		infrastructure.RecordSpanError(span, o.Err)
		w.logger.WarnContext(ctx, "Failed to download content",
			slog.String("url", catalog.ContentURL(w.remoteBase(), o.ItemID)),
			slog.String("error", o.ErrorMessage()))
	case o.Reason == ReasonWriteError:
		infrastructure.RecordSpanError(span, o.Err)
		w.logger.ErrorContext(ctx, "Failed to save file",
			slog.String("path", o.Path),
			slog.String("error", o.ErrorMessage()))
	}

	e := Event{
		Type:   EventFileSkipped,
		Time:   time.Now().UTC(),
		RunID:  infrastructure.GetTraceID(ctx),
		ItemID: o.ItemID,
		Name:   o.Filename,
		Path:   o.Path,
		Error:  o.ErrorMessage(),
	}
	if o.Succeeded {
		e.Type = EventFileDownloaded
		e.Bytes = o.BytesWritten
	} else {
		e.Reason = o.Reason.String()
	}
	w.observer.OnEvent(ctx, e)

	return o
}
