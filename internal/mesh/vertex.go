package mesh

import (
	"math"
	"strconv"
	"strings"
)

// Vertex is a point in 3D space. Vertices compare by value.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// String renders the vertex as "(x, y, z)".
// Coordinates follow the JVM double rendering so digests match nodes
// running the JVM desktop client.
func (v Vertex) String() string {
	var b strings.Builder
	b.Grow(32)

	b.WriteByte('(')
	b.WriteString(formatCoord(v.X))
	b.WriteString(", ")
	b.WriteString(formatCoord(v.Y))
	b.WriteString(", ")
	b.WriteString(formatCoord(v.Z))
	b.WriteByte(')')

	return b.String()
}

// formatCoord renders f the way java.lang.Double.toString does:
// plain decimal with at least one fractional digit for 1e-3 <= |f| < 1e7,
// computerized scientific notation ("1.0E-4", "1.25E7") otherwise.
func formatCoord(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(f, 'E', -1, 64)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}

	e, err := strconv.Atoi(exp)
	if err != nil {
		return s
	}

	return mant + "E" + strconv.Itoa(e)
}

// Face is an ordered vertex loop forming one polygon.
// Two faces are the same face only if their sequences match exactly.
type Face []Vertex

// String renders the face as "[v0, v1, ...]".
func (f Face) String() string {
	var b strings.Builder

	b.WriteByte('[')
	for i, v := range f {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(']')

	return b.String()
}
