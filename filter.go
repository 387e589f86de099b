package filtercache

import (
	"fmt"
	"strings"
)

// KeyDelimiter separates the components of a FilterKey.
const KeyDelimiter = ":"

// FilterKey is the canonical form of the applied filter values, in a fixed order,
// joined by KeyDelimiter. Absent values are empty strings.
type FilterKey string

// KeyOf builds a FilterKey from ordered filter values. An empty value means "not applied".
func KeyOf(values ...string) (FilterKey, error) {
	for i, v := range values {
		if strings.Contains(v, KeyDelimiter) {
			return "", fmt.Errorf("%w: component %d = %q", ErrInvalidFilterValue, i, v)
		}
	}
	return FilterKey(strings.Join(values, KeyDelimiter)), nil
}

// Active reports whether any component is set. The all-absent key never caches.
func (k FilterKey) Active() bool {
	return strings.Trim(string(k), KeyDelimiter) != ""
}

func (k FilterKey) String() string { return string(k) }

// FilterContext yields the FilterKey of the currently applied filters.
// Implementations must be pure functions of their filter state.
type FilterContext interface {
	FilterKey() (FilterKey, error)
}

// HasActiveFilter reports whether fc has at least one applied filter.
func HasActiveFilter(fc FilterContext) (bool, error) {
	k, err := fc.FilterKey()
	if err != nil {
		return false, err
	}
	return k.Active(), nil
}
