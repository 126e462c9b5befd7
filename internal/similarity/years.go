// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

// YearResult classifies how two publication years compare.
type YearResult int

const (
	// YearUnknown means at least one side has no year.
	YearUnknown YearResult = iota
	YearExact
	// YearNear means the years differ by no more than the tolerance.
	YearNear
	YearMismatch
)

func (r YearResult) String() string {
	switch r {
	case YearExact:
		return "exact"
	case YearNear:
		return "near"
	case YearMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// CompareYears classifies a and b. Zero means absent.
func CompareYears(a, b, tolerance int) YearResult {
	if a <= 0 || b <= 0 {
		return YearUnknown
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	switch {
	case d == 0:
		return YearExact
	case d <= tolerance:
		return YearNear
	default:
		return YearMismatch
	}
}

// YearMatches reports whether two years agree within one year. Preprint
// and proceedings dates commonly differ by one.
func YearMatches(a, b int) bool {
	r := CompareYears(a, b, 1)
	return r == YearExact || r == YearNear
}
