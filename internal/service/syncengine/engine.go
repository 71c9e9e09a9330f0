// Package syncengine pulls remote calendar changes into the local calendar
// store, one calendar at a time.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"calsync/internal/auth"
	"calsync/internal/domain"
	"calsync/internal/remote"
	"calsync/internal/store"
)

const (
	DefaultCalendarPrefix  = "GCal: "
	DefaultFullSyncHorizon = 365 * 24 * time.Hour
)

// ErrCalendarsFailed is returned by Run when at least one calendar could not
// be synced while the others were.
var ErrCalendarsFailed = errors.New("some calendars failed to sync")

// RemoteClient is the part of the remote service the engine reads from.
type RemoteClient interface {
	ListCalendars(ctx context.Context) ([]domain.RemoteCalendar, error)
	ListEvents(ctx context.Context, req remote.ListEventsRequest) (remote.Page, error)
}

type Options struct {
	// CalendarPrefix is prepended to the remote display name to form the
	// local calendar name.
	CalendarPrefix string
	// LookupWindow is the span either side of now searched for existing
	// counterparts.
	LookupWindow time.Duration
	// FullSyncHorizon is how far back a full fetch reaches.
	FullSyncHorizon time.Duration
	PageSize        int
	Now             func() time.Time
	Logger          *slog.Logger
}

type Engine struct {
	remote    RemoteClient
	calendars store.CalendarStore
	cursors   store.CursorStore
	opts      Options
	log       *slog.Logger
}

func New(rc RemoteClient, calendars store.CalendarStore, cursors store.CursorStore, opts Options) *Engine {
	if opts.CalendarPrefix == "" {
		opts.CalendarPrefix = DefaultCalendarPrefix
	}
	if opts.LookupWindow <= 0 {
		opts.LookupWindow = store.DefaultLookupWindow
	}
	if opts.FullSyncHorizon <= 0 {
		opts.FullSyncHorizon = DefaultFullSyncHorizon
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		remote:    rc,
		calendars: calendars,
		cursors:   cursors,
		opts:      opts,
		log:       log.With(slog.String("component", "sync.engine")),
	}
}

// LocalName is the local calendar name used for a remote calendar.
func (e *Engine) LocalName(cal domain.RemoteCalendar) string {
	return e.opts.CalendarPrefix + cal.DisplayName()
}

// Run syncs every participating remote calendar. Errors that make the whole
// run pointless are returned immediately; per-calendar failures are recorded
// in the report and summarized as ErrCalendarsFailed.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	report := Report{StartedAt: e.opts.Now()}

	cals, err := e.remote.ListCalendars(ctx)
	if err != nil {
		return report, fmt.Errorf("list remote calendars: %w", err)
	}

	for _, cal := range cals {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !cal.Participates() {
			e.log.Debug("calendar skipped", slog.String("calendar_id", cal.ID))
			report.Skipped = append(report.Skipped, cal.ID)
			continue
		}

		cr, err := e.syncCalendar(ctx, cal)
		if err != nil {
			if isRunFatal(err) {
				e.log.Error("sync aborted", slog.String("calendar_id", cal.ID), slog.Any("err", err))
				return report, err
			}
			cr.Err = err
			e.log.Error("calendar sync failed", slog.String("calendar_id", cal.ID), slog.Any("err", err))
		}
		report.Calendars = append(report.Calendars, cr)
	}

	report.FinishedAt = e.opts.Now()
	if err := e.cursors.MarkRun(ctx, report.FinishedAt); err != nil {
		return report, fmt.Errorf("record run time: %w", err)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("%d of %d calendars: %w", len(failed), len(report.Calendars), ErrCalendarsFailed)
	}
	return report, nil
}

func (e *Engine) syncCalendar(ctx context.Context, cal domain.RemoteCalendar) (CalendarReport, error) {
	cr := CalendarReport{CalendarID: cal.ID, Name: e.LocalName(cal)}
	log := e.log.With(slog.String("calendar_id", cal.ID))

	local, err := e.calendars.FindOrCreateCalendar(ctx, cr.Name, cal.Color)
	if err != nil {
		return cr, fmt.Errorf("open local calendar %q: %w", cr.Name, err)
	}

	cursor, err := e.cursors.LoadCursor(ctx, cal.ID)
	if err != nil {
		return cr, fmt.Errorf("load cursor: %w", err)
	}
	cr.FullSync = cursor == ""

	next, err := e.pull(ctx, local, cal.ID, cursor, &cr.Counts)
	if errors.Is(err, remote.ErrCursorInvalid) && cursor != "" {
		log.Warn("cursor rejected, restarting with a full fetch")
		if err := e.cursors.ClearCursor(ctx, cal.ID); err != nil {
			return cr, fmt.Errorf("clear cursor: %w", err)
		}
		cursor = ""
		cr.FullSync = true
		next, err = e.pull(ctx, local, cal.ID, "", &cr.Counts)
	}
	if err != nil {
		return cr, err
	}

	if next != "" && next != cursor {
		if err := e.cursors.SaveCursor(ctx, cal.ID, next); err != nil {
			return cr, fmt.Errorf("save cursor: %w", err)
		}
	}

	log.Info("calendar synced",
		slog.Bool("full", cr.FullSync),
		slog.Int("created", cr.Created),
		slog.Int("updated", cr.Updated),
		slog.Int("deleted", cr.Deleted),
		slog.Int("unchanged", cr.Unchanged),
	)
	return cr, nil
}

// pull walks every page of one listing, reconciling records as each page
// arrives, and returns the cursor carried by the final page.
func (e *Engine) pull(ctx context.Context, local domain.LocalCalendar, calendarID, cursor string, counts *Counts) (string, error) {
	req := remote.ListEventsRequest{
		CalendarID: calendarID,
		Cursor:     cursor,
		PageSize:   e.opts.PageSize,
	}
	if cursor == "" {
		req.TimeMin = e.opts.Now().Add(-e.opts.FullSyncHorizon)
	}

	for {
		page, err := e.remote.ListEvents(ctx, req)
		if err != nil {
			return "", fmt.Errorf("list events: %w", err)
		}
		for _, rec := range page.Records {
			if err := e.reconcile(ctx, local, rec, counts); err != nil {
				return "", fmt.Errorf("event %s: %w", rec.ID, err)
			}
		}

		if page.NextPageToken == "" {
			return page.NextCursor, nil
		}
		if page.NextPageToken == req.PageToken {
			return "", &remote.ProtocolError{Op: "list events", Err: errors.New("continuation token did not advance")}
		}
		req.PageToken = page.NextPageToken
	}
}

func (e *Engine) reconcile(ctx context.Context, local domain.LocalCalendar, rec domain.RemoteChangeRecord, counts *Counts) error {
	window := domain.WindowAround(e.opts.Now(), e.opts.LookupWindow)
	existing, err := e.calendars.FindEventByCorrelation(ctx, local.ID, rec.ID, window)
	found := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if rec.Cancelled() {
		if !found {
			return nil
		}
		if err := e.calendars.DeleteEvent(ctx, existing); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		counts.Deleted++
		return nil
	}

	in := domain.TranslateEvent(rec)
	if found {
		updated := existing
		in.ApplyTo(&updated)
		if updated.SameContent(existing) {
			counts.Unchanged++
			return nil
		}
		if err := e.calendars.UpdateEvent(ctx, updated); err != nil {
			return err
		}
		counts.Updated++
		return nil
	}

	ev := domain.LocalEvent{CalendarID: local.ID}
	in.ApplyTo(&ev)
	if _, err := e.calendars.CreateEvent(ctx, ev); err != nil {
		return err
	}
	counts.Created++
	return nil
}

// Purge deletes every event from the local calendars carrying the engine's
// prefix. Calendars themselves are kept.
func (e *Engine) Purge(ctx context.Context) ([]PurgedCalendar, error) {
	cals, err := e.calendars.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local calendars: %w", err)
	}

	var out []PurgedCalendar
	for _, cal := range cals {
		if !strings.HasPrefix(cal.Name, e.opts.CalendarPrefix) {
			continue
		}
		n, err := e.calendars.DeleteAllEvents(ctx, cal.ID)
		if err != nil {
			return out, fmt.Errorf("purge %q: %w", cal.Name, err)
		}
		e.log.Info("calendar purged", slog.String("calendar", cal.Name), slog.Int("deleted", n))
		out = append(out, PurgedCalendar{Name: cal.Name, Deleted: n})
	}
	return out, nil
}

func isRunFatal(err error) bool {
	if store.IsRunFatal(err) {
		return true
	}
	var credErr *auth.CredentialError
	if errors.As(err, &credErr) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
