package value

import "fmt"

// Range is an inclusive integer range written as (from..to) in templates.
// A range whose end lies before its start is empty.
type Range struct {
	From int64
	To   int64
}

// Len returns the number of integers in the range.
func (r Range) Len() int {
	if r.To < r.From {
		return 0
	}
	return int(r.To-r.From) + 1
}

// At returns the i-th element. Negative indexes count from the end.
func (r Range) At(i int) (any, bool) {
	n := r.Len()
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, false
	}
	return r.From + int64(i), true
}

// Items materializes the range.
func (r Range) Items() []any {
	return r.Window(0, -1)
}

// Window returns up to limit elements starting at offset. A negative limit
// means the rest of the range.
func (r Range) Window(offset, limit int) []any {
	n := r.Len()
	if offset < 0 {
		offset = 0
	}
	if offset >= n {
		return []any{}
	}
	end := n
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]any, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, r.From+int64(i))
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.From, r.To)
}
