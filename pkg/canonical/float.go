package canonical

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// writeFloat implements the float canonicalization rule: 17 significant
// digits, -0.0 collapsed to 0.0, and NaN/+Inf/-Inf emitted as the JSON
// string literals "NaN"/"Infinity"/"-Infinity" so the output round-trips
// through any standard JSON parser.
//
// 17 significant digits is the minimum that guarantees a lossless
// round-trip through an IEEE-754 double; Go's %g/%e verbs default to the
// shortest round-trippable representation, which is usually fewer
// digits and not enough here.
func writeFloat(buf *bytes.Buffer, f float64) error {
	switch {
	case math.IsNaN(f):
		buf.WriteString(`"NaN"`)
		return nil
	case math.IsInf(f, 1):
		buf.WriteString(`"Infinity"`)
		return nil
	case math.IsInf(f, -1):
		buf.WriteString(`"-Infinity"`)
		return nil
	}

	if f == 0 {
		// Collapses both +0.0 and -0.0 to the same canonical form.
		f = 0
	}

	s := strconv.FormatFloat(f, 'g', 17, 64)
	if !strings.ContainsAny(s, ".eE") {
		// Keeps the float encoding visibly distinct from the integer
		// encoding of the same magnitude (canon(1.0) != canon(1)).
		s += ".0"
	}
	buf.WriteString(s)
	return nil
}
