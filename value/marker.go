package value

// Marker is one of the comparison sentinels blank and empty. A marker equals
// any enumerable with no elements, including the empty string.
type Marker string

const (
	Blank Marker = "blank"
	Empty Marker = "empty"
)

func (m Marker) String() string { return "" }

// MatchesMarker reports whether v compares equal to the marker m. The two
// markers compare equal to each other.
func MatchesMarker(m Marker, v any) bool {
	if _, ok := v.(Marker); ok {
		return true
	}
	return IsEmptyEnumerable(v)
}
