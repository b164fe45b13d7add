package bucket

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoRange is returned when a value is not covered by any configured range.
// With a valid configuration this never happens, so it signals a config bug.
var ErrNoRange = errors.New("no range matches value")

// ErrInvalidRanges is returned by Validate and Parse for unusable configurations.
var ErrInvalidRanges = errors.New("invalid range configuration")

// Range is a half-open interval [Lower, Upper). When Unbounded is set the
// range has no upper limit and Upper is ignored.
type Range struct {
	Lower     uint64
	Upper     uint64
	Unbounded bool
}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v uint64) bool {
	if v < r.Lower {
		return false
	}
	return r.Unbounded || v < r.Upper
}

func (r Range) String() string {
	if r.Unbounded {
		return fmt.Sprintf("[%d, ∞)", r.Lower)
	}
	return fmt.Sprintf("[%d, %d)", r.Lower, r.Upper)
}

// Ranges is an ordered range configuration.
type Ranges []Range

// Default returns the vote count ranges used by the histogram command.
func Default() Ranges {
	return Ranges{
		{Lower: 0, Upper: 10},
		{Lower: 10, Upper: 100},
		{Lower: 100, Upper: 1000},
		{Lower: 1000, Upper: 10000},
		{Lower: 10000, Unbounded: true},
	}
}

// Parse builds contiguous ranges from a comma separated list of ascending
// boundaries. "0,10,100" yields [0,10) [10,100) [100,∞).
func Parse(spec string) (Ranges, error) {
	fields := strings.Split(spec, ",")
	bounds := make([]uint64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		b, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad boundary %q: %v", ErrInvalidRanges, f, err)
		}
		bounds = append(bounds, b)
	}
	if len(bounds) == 0 {
		return nil, fmt.Errorf("%w: no boundaries given", ErrInvalidRanges)
	}

	ranges := make(Ranges, 0, len(bounds))
	for i, lo := range bounds {
		if i == len(bounds)-1 {
			ranges = append(ranges, Range{Lower: lo, Unbounded: true})
			break
		}
		ranges = append(ranges, Range{Lower: lo, Upper: bounds[i+1]})
	}
	if err := ranges.Validate(); err != nil {
		return nil, err
	}
	return ranges, nil
}

// Validate checks that the ranges are ordered, non-overlapping, start at zero
// and end with an unbounded range so every non-negative value is covered.
func (rs Ranges) Validate() error {
	if len(rs) == 0 {
		return fmt.Errorf("%w: no ranges", ErrInvalidRanges)
	}
	if rs[0].Lower != 0 {
		return fmt.Errorf("%w: first range starts at %d, not 0", ErrInvalidRanges, rs[0].Lower)
	}
	for i, r := range rs {
		last := i == len(rs)-1
		if r.Unbounded != last {
			if last {
				return fmt.Errorf("%w: last range %s must be unbounded", ErrInvalidRanges, r)
			}
			return fmt.Errorf("%w: only the last range may be unbounded, got %s at %d", ErrInvalidRanges, r, i)
		}
		if !r.Unbounded && r.Upper <= r.Lower {
			return fmt.Errorf("%w: empty range %s", ErrInvalidRanges, r)
		}
		if i > 0 && r.Lower != rs[i-1].Upper {
			return fmt.Errorf("%w: %s does not follow %s", ErrInvalidRanges, r, rs[i-1])
		}
	}
	return nil
}

// Classify returns the index of the first range containing v.
func (rs Ranges) Classify(v uint64) (int, error) {
	for i, r := range rs {
		if r.Contains(v) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d", ErrNoRange, v)
}
