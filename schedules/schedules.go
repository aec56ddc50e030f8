// Package schedules holds calendar entries: a resources.Store of backend schedules
// with date normalisation and per-day filtering.
package schedules

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/resources"
)

const ResourceName = "schedules"

// LocalLayout is the format of an HTML datetime-local input.
const LocalLayout = "2006-01-02T15:04"

type Schedule struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Memo      string    `json:"memo,omitempty"`
	Location  string    `json:"location"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func (s Schedule) ItemID() int64 { return s.ID }

// NewSchedule is the writable part of a Schedule.
type NewSchedule struct {
	Title    string
	Memo     string
	Location string
	Date     time.Time
}

type writeRequest struct {
	Title    string `json:"title"`
	Memo     string `json:"memo"`
	Location string `json:"location"`
	Date     string `json:"date"`
}

func (n NewSchedule) request() (writeRequest, error) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return writeRequest{}, errors.Wrapf(errors.ErrInvalidInput, "title is required")
	}
	if n.Date.IsZero() {
		return writeRequest{}, errors.Wrapf(errors.ErrInvalidInput, "date is required")
	}
	return writeRequest{
		Title:    title,
		Memo:     n.Memo,
		Location: strings.TrimSpace(n.Location),
		Date:     n.Date.UTC().Format(time.RFC3339),
	}, nil
}

// ParseDate accepts RFC 3339 or a datetime-local value interpreted in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(LocalLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", errors.ErrInvalidInput, value)
	}
	return t, nil
}

type Store struct {
	*resources.Store[Schedule]
}

func NewStore(client resources.Doer, tokens resources.TokenSource, nav resources.Navigator) *Store {
	coll := resources.NewCollection[Schedule](client, ResourceName)
	return &Store{Store: resources.NewStore(ResourceName, coll, tokens, nav)}
}

func (s *Store) Add(ctx context.Context, n NewSchedule) (Schedule, error) {
	req, err := n.request()
	if err != nil {
		return Schedule{}, err
	}
	return s.Create(ctx, req)
}

func (s *Store) Edit(ctx context.Context, id int64, n NewSchedule) (Schedule, error) {
	req, err := n.request()
	if err != nil {
		return Schedule{}, err
	}
	return s.Update(ctx, id, req)
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.Delete(ctx, id)
}

// OnDay returns the entries falling on day's calendar date in day's location,
// earliest first.
func (s *Store) OnDay(day time.Time) []Schedule {
	y, m, d := day.Date()
	loc := day.Location()

	var out []Schedule
	for _, sc := range s.Items() {
		sy, sm, sd := sc.Date.In(loc).Date()
		if sy == y && sm == m && sd == d {
			out = append(out, sc)
		}
	}
	slices.SortStableFunc(out, func(a, b Schedule) int {
		return a.Date.Compare(b.Date)
	})
	return out
}
