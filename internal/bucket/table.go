package bucket

// Table holds one counter per configured range, indexed like Ranges.
type Table struct {
	ranges Ranges
	counts []int
	total  int
}

// NewTable returns a table with every count at zero.
func NewTable(ranges Ranges) *Table {
	return &Table{
		ranges: ranges,
		counts: make([]int, len(ranges)),
	}
}

// Add classifies v and increments the matching bucket.
func (t *Table) Add(v uint64) (int, error) {
	idx, err := t.ranges.Classify(v)
	if err != nil {
		return -1, err
	}
	t.counts[idx]++
	t.total++
	return idx, nil
}

// AddAll classifies every value, stopping at the first unmatched one.
func (t *Table) AddAll(values []uint64) error {
	for _, v := range values {
		if _, err := t.Add(v); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the count of the bucket at idx.
func (t *Table) Count(idx int) int {
	if idx < 0 || idx >= len(t.counts) {
		return 0
	}
	return t.counts[idx]
}

// Counts returns a copy of all counts in range order.
func (t *Table) Counts() []int {
	out := make([]int, len(t.counts))
	copy(out, t.counts)
	return out
}

func (t *Table) Ranges() Ranges { return t.ranges }

func (t *Table) Total() int { return t.total }
