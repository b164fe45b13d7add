package profile

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/pprof/profile"
)

// Fold decodes a pprof profile and renders it as folded stacks, one
// "root;caller;leaf count" line per distinct stack, sorted by stack.
func Fold(r io.Reader) ([]byte, error) {
	prof, err := profile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return FoldProfile(prof), nil
}

// FoldProfile folds an already decoded profile using its first sample value.
func FoldProfile(prof *profile.Profile) []byte {
	counts := make(map[string]int64)
	for _, s := range prof.Sample {
		if len(s.Value) == 0 || s.Value[0] == 0 {
			continue
		}
		stack := frames(s)
		if len(stack) == 0 {
			continue
		}
		counts[strings.Join(stack, ";")] += s.Value[0]
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s %d\n", k, counts[k])
	}
	return buf.Bytes()
}

// frames lists function names from the root of the call stack to the leaf.
// Locations are stored leaf first, and within a location inlined callees
// come before their callers.
func frames(s *profile.Sample) []string {
	var out []string
	for i := len(s.Location) - 1; i >= 0; i-- {
		loc := s.Location[i]
		if len(loc.Line) == 0 {
			out = append(out, fmt.Sprintf("0x%x", loc.Address))
			continue
		}
		for j := len(loc.Line) - 1; j >= 0; j-- {
			fn := loc.Line[j].Function
			if fn == nil {
				out = append(out, "?")
				continue
			}
			out = append(out, strings.ReplaceAll(fn.Name, ";", ":"))
		}
	}
	return out
}
