package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"calsync/internal/domain"
	"calsync/internal/store"
)

// CalendarRepo is a store.CalendarStore backed by SQLite or Postgres.
type CalendarRepo struct {
	db *bun.DB
}

var _ store.CalendarStore = (*CalendarRepo)(nil)

func NewCalendarRepo(db *bun.DB) *CalendarRepo {
	return &CalendarRepo{db: db}
}

func (r *CalendarRepo) Close() error {
	return Close(r.db)
}

func (r *CalendarRepo) FindOrCreateCalendar(ctx context.Context, name, color string) (domain.LocalCalendar, error) {
	var out domain.LocalCalendar
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.lockCalendarName(ctx, tx, name); err != nil {
			return err
		}

		err := tx.NewSelect().
			Model(&out).
			Where("name = ?", name).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			out = domain.LocalCalendar{Name: name, Color: color}
			_, err = tx.NewInsert().Model(&out).Exec(ctx)
			return err
		}
		if err != nil {
			return err
		}

		if color != "" && out.Color != color {
			out.Color = color
			_, err = tx.NewUpdate().
				Model(&out).
				Column("color", "updated_at").
				WherePK().
				Exec(ctx)
		}
		return err
	})
	if err != nil {
		return domain.LocalCalendar{}, classify(err)
	}
	return out, nil
}

// lockCalendarName serializes find-or-create for one name across processes
// sharing a Postgres database. SQLite already has a single writer.
func (r *CalendarRepo) lockCalendarName(ctx context.Context, tx bun.Tx, name string) error {
	if r.db.Dialect().Name() != dialect.PG {
		return nil
	}
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", name).Exec(ctx)
	return err
}

func (r *CalendarRepo) ListCalendars(ctx context.Context) ([]domain.LocalCalendar, error) {
	var rows []domain.LocalCalendar
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (r *CalendarRepo) FindEventByCorrelation(ctx context.Context, calendarID uuid.UUID, remoteID string, window domain.TimeWindow) (domain.LocalEvent, error) {
	// LIKE narrows the scan; "_" in ids may over-match, HasCorrelation is exact.
	var rows []domain.LocalEvent
	err := r.db.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		Where("notes LIKE ?", "%"+domain.CorrelationSentinel(remoteID)+"%").
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return domain.LocalEvent{}, classify(err)
	}

	for _, ev := range rows {
		if domain.HasCorrelation(ev.Notes, remoteID) && ev.VisibleIn(window) {
			return ev, nil
		}
	}
	return domain.LocalEvent{}, store.ErrNotFound
}

func (r *CalendarRepo) CreateEvent(ctx context.Context, ev domain.LocalEvent) (domain.LocalEvent, error) {
	if _, err := r.db.NewInsert().Model(&ev).Exec(ctx); err != nil {
		return domain.LocalEvent{}, classify(err)
	}
	return ev, nil
}

func (r *CalendarRepo) UpdateEvent(ctx context.Context, ev domain.LocalEvent) error {
	res, err := r.db.NewUpdate().
		Model(&ev).
		ExcludeColumn("id", "calendar_id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return classify(err)
	}
	return expectAffected(res)
}

func (r *CalendarRepo) DeleteEvent(ctx context.Context, ev domain.LocalEvent) error {
	res, err := r.db.NewDelete().
		Model((*domain.LocalEvent)(nil)).
		Where("id = ?", ev.ID).
		Exec(ctx)
	if err != nil {
		return classify(err)
	}
	return expectAffected(res)
}

func (r *CalendarRepo) DeleteAllEvents(ctx context.Context, calendarID uuid.UUID) (int, error) {
	res, err := r.db.NewDelete().
		Model((*domain.LocalEvent)(nil)).
		Where("calendar_id = ?", calendarID).
		Exec(ctx)
	if err != nil {
		return 0, classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
