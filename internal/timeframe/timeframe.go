// Package timeframe parses the date-range query parameters accepted by
// the analytics API into concrete UTC instants.
package timeframe

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for startDate and endDate parameters.
const DateLayout = "2006-01-02"

// TimeProvider abstracts "now" so range defaults are testable.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// Range is a closed date range in UTC.
type Range struct {
	From time.Time
	To   time.Time
}

// Parser turns startDate/endDate strings into a Range.
type Parser struct {
	timeProvider TimeProvider
}

// NewParser creates a parser. A nil or omitted provider means the
// system clock.
func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	return &Parser{timeProvider: provider}
}

// Parse interprets the parameters. An empty startDate means the whole
// history; an empty endDate means now. endDate is inclusive of its
// whole day, so startDate == endDate selects one full day.
func (p *Parser) Parse(startDate, endDate string) (Range, error) {
	r := Range{To: p.timeProvider.Now()}

	if startDate != "" {
		from, err := time.ParseInLocation(DateLayout, startDate, time.UTC)
		if err != nil {
			return Range{}, fmt.Errorf("invalid startDate %q: expected YYYY-MM-DD", startDate)
		}
		r.From = from
	}

	if endDate != "" {
		to, err := time.ParseInLocation(DateLayout, endDate, time.UTC)
		if err != nil {
			return Range{}, fmt.Errorf("invalid endDate %q: expected YYYY-MM-DD", endDate)
		}
		r.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	if !r.From.IsZero() && r.To.Before(r.From) {
		return Range{}, fmt.Errorf("endDate precedes startDate")
	}

	return r, nil
}
