// Package google lists calendars and event changes from the Google Calendar
// API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"calsync/internal/auth"
	"calsync/internal/domain"
	"calsync/internal/remote"
)

const DefaultPageSize = 250

// CredentialProvider hands out a current access token.
type CredentialProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

type Client struct {
	svc            *calendar.Service
	requestTimeout time.Duration
}

type Options struct {
	// RequestTimeout bounds each API call; zero means no extra bound.
	RequestTimeout time.Duration
}

// New builds a client authorized through creds. Extra client options come
// last and may override the transport, as tests do.
func New(ctx context.Context, creds CredentialProvider, o Options, opts ...option.ClientOption) (*Client, error) {
	all := make([]option.ClientOption, 0, len(opts)+1)
	if creds != nil {
		all = append(all, option.WithTokenSource(providerTokenSource{ctx: context.WithoutCancel(ctx), creds: creds}))
	}
	all = append(all, opts...)

	svc, err := calendar.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Client{svc: svc, requestTimeout: o.RequestTimeout}, nil
}

// providerTokenSource adapts a CredentialProvider to oauth2. The provider
// does its own caching, so every call is passed through.
type providerTokenSource struct {
	ctx   context.Context
	creds CredentialProvider
}

func (s providerTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.creds.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func (c *Client) ListCalendars(ctx context.Context) ([]domain.RemoteCalendar, error) {
	var out []domain.RemoteCalendar
	pageToken := ""
	for {
		call := c.svc.CalendarList.List().ShowHidden(true)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		reqCtx, cancel := c.withTimeout(ctx)
		list, err := call.Context(reqCtx).Do()
		cancel()
		if err != nil {
			return nil, classify("list calendars", err)
		}

		for _, item := range list.Items {
			if item == nil {
				continue
			}
			out = append(out, toRemoteCalendar(item))
		}
		if list.NextPageToken == "" {
			return out, nil
		}
		pageToken = list.NextPageToken
	}
}

func (c *Client) ListEvents(ctx context.Context, req remote.ListEventsRequest) (remote.Page, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	call := c.svc.Events.List(req.CalendarID).
		ShowDeleted(true).
		SingleEvents(true).
		MaxResults(int64(pageSize))
	switch {
	case req.Cursor != "":
		call = call.SyncToken(req.Cursor)
	case !req.TimeMin.IsZero():
		call = call.TimeMin(req.TimeMin.UTC().Format(time.RFC3339))
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}

	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	events, err := call.Context(reqCtx).Do()
	if err != nil {
		return remote.Page{}, classify("list events", err)
	}

	page := remote.Page{
		Records:       make([]domain.RemoteChangeRecord, 0, len(events.Items)),
		NextPageToken: events.NextPageToken,
		NextCursor:    events.NextSyncToken,
	}
	for _, ev := range events.Items {
		if ev == nil || ev.Id == "" {
			continue
		}
		page.Records = append(page.Records, toChangeRecord(ev))
	}
	return page, nil
}

func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusGone:
			return fmt.Errorf("%s: %w", op, remote.ErrCursorInvalid)
		case http.StatusUnauthorized:
			return &auth.CredentialError{Reason: "remote rejected the access token", Err: err}
		}
		return &remote.ProtocolError{Op: op, StatusCode: apiErr.Code, Err: err}
	}

	var credErr *auth.CredentialError
	if errors.As(err, &credErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &remote.ProtocolError{Op: op, Err: err}
}

func toRemoteCalendar(item *calendar.CalendarListEntry) domain.RemoteCalendar {
	name := item.SummaryOverride
	if strings.TrimSpace(name) == "" {
		name = item.Summary
	}
	return domain.RemoteCalendar{
		ID:       item.Id,
		Summary:  name,
		Color:    domain.NormalizeColor(item.BackgroundColor),
		Selected: item.Selected,
		Hidden:   item.Hidden,
		Primary:  item.Primary,
	}
}

func toChangeRecord(ev *calendar.Event) domain.RemoteChangeRecord {
	rec := domain.RemoteChangeRecord{
		ID:          ev.Id,
		Status:      domain.EventStatusActive,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       toRemoteTime(ev.Start),
		End:         toRemoteTime(ev.End),
		Recurrence:  ev.Recurrence,
		HTMLLink:    ev.HtmlLink,
	}
	if ev.Status == "cancelled" {
		rec.Status = domain.EventStatusCancelled
	}

	for _, a := range ev.Attendees {
		if a != nil && a.Email != "" {
			rec.Attendees = append(rec.Attendees, a.Email)
		}
	}

	if ev.Reminders != nil {
		rec.Reminders = &domain.RemoteReminders{UseDefault: ev.Reminders.UseDefault}
		for _, o := range ev.Reminders.Overrides {
			if o != nil {
				rec.Reminders.Overrides = append(rec.Reminders.Overrides, int(o.Minutes))
			}
		}
	}

	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep != nil {
				rec.ConferenceURIs = append(rec.ConferenceURIs, ep.Uri)
			}
		}
	}
	return rec
}

func toRemoteTime(t *calendar.EventDateTime) *domain.RemoteTime {
	if t == nil {
		return nil
	}
	return &domain.RemoteTime{
		Date:     t.Date,
		DateTime: t.DateTime,
		TimeZone: t.TimeZone,
	}
}
