package shared

// ListFilter bounds list queries.
type ListFilter struct {
	Limit  int
	Offset int
}

// Normalize clamps the filter to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
