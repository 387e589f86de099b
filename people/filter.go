package people

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/unkn0wn-root/filtercache"
)

// Accepted filter ranges on birthday.
const (
	MinMonth = 1
	MaxMonth = 12
	MinYear  = 1900
	MaxYear  = 2022
)

var ErrOutOfRange = errors.New("people: filter value out of range")

// FilterError names the filter that failed validation.
type FilterError struct {
	Field string
	Value int
}

func (e *FilterError) Error() string {
	lo, hi := MinMonth, MaxMonth
	if e.Field == "year" {
		lo, hi = MinYear, MaxYear
	}
	return fmt.Sprintf("people: %s=%d not in %d..%d", e.Field, e.Value, lo, hi)
}

func (e *FilterError) Unwrap() error { return ErrOutOfRange }

// Filter selects people by birthday month and/or year. A nil field is not applied.
type Filter struct {
	Month *int `json:"month,omitempty"`
	Year  *int `json:"year,omitempty"`
}

var _ filtercache.FilterContext = Filter{}

// NewFilter treats 0 as "not applied", which is what flag parsing hands over.
func NewFilter(month, year int) Filter {
	var f Filter
	if month != 0 {
		f.Month = &month
	}
	if year != 0 {
		f.Year = &year
	}
	return f
}

func (f Filter) Validate() error {
	if f.Month != nil && (*f.Month < MinMonth || *f.Month > MaxMonth) {
		return &FilterError{Field: "month", Value: *f.Month}
	}
	if f.Year != nil && (*f.Year < MinYear || *f.Year > MaxYear) {
		return &FilterError{Field: "year", Value: *f.Year}
	}
	return nil
}

// FilterKey is "<month>:<year>", an unapplied part left empty.
func (f Filter) FilterKey() (filtercache.FilterKey, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	return filtercache.KeyOf(itoa(f.Month), itoa(f.Year))
}

// Match reports whether p passes every applied filter.
func (f Filter) Match(p Person) bool {
	if f.Month != nil && int(p.Birthday.Month()) != *f.Month {
		return false
	}
	if f.Year != nil && p.Birthday.Year() != *f.Year {
		return false
	}
	return true
}

func itoa(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
