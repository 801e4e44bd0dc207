// Package cigar parses CIGAR strings into edit lists.
//
// A CIGAR string is a run-length encoding of how a query aligns against a
// reference, e.g. "3S10M1D5M2I". Each run is a decimal length followed by a
// single operation letter. Only the operations that can appear in a
// reference-anchored projection are accepted: M, I, D, S, H, = and X.
// Skips (N), pads (P) and back-steps (B) are rejected.
//
// Edit lists are represented with the sam.Cigar type from
// github.com/grailbio/hts/sam, so they interoperate with BAM records.
package cigar

import (
	"fmt"
	"strings"

	"github.com/grailbio/hts/sam"
)

// maxOpLen is the largest run length a sam.CigarOp can hold.
const maxOpLen = 1<<28 - 1

// opTypes maps operation letters to hts operation types. Unlisted bytes are
// invalid.
var opTypes = [256]sam.CigarOpType{}

var validOp = [256]bool{}

func init() {
	for _, e := range []struct {
		c byte
		t sam.CigarOpType
	}{
		{'M', sam.CigarMatch},
		{'I', sam.CigarInsertion},
		{'D', sam.CigarDeletion},
		{'S', sam.CigarSoftClipped},
		{'H', sam.CigarHardClipped},
		{'=', sam.CigarEqual},
		{'X', sam.CigarMismatch},
	} {
		opTypes[e.c] = e.t
		validOp[e.c] = true
	}
}

// ParseError is returned by Parse for malformed CIGAR strings.
type ParseError struct {
	// Cigar is the offending string.
	Cigar string
	// Offset is the byte offset in Cigar where parsing failed.
	Offset int
	// Reason describes the failure.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cigar: malformed %q at offset %d: %s", e.Cigar, e.Offset, e.Reason)
}

// Parse converts s into an edit list, in left-to-right (genomic) order.
// It returns a *ParseError if s is empty, contains an unsupported operation,
// or ends with a digit run that has no operation letter.
func Parse(s string) (sam.Cigar, error) {
	if len(s) == 0 {
		return nil, &ParseError{Cigar: s, Reason: "empty string"}
	}
	c := make(sam.Cigar, 0, len(s)/2)
	n, start := 0, 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		if '0' <= b && b <= '9' {
			n = n*10 + int(b-'0')
			if n > maxOpLen {
				return nil, &ParseError{Cigar: s, Offset: start, Reason: "run length overflows"}
			}
			continue
		}
		if i == start {
			return nil, &ParseError{Cigar: s, Offset: i, Reason: fmt.Sprintf("operation %q has no length", b)}
		}
		if !validOp[b] {
			return nil, &ParseError{Cigar: s, Offset: i, Reason: fmt.Sprintf("unknown operation %q", b)}
		}
		c = append(c, sam.NewCigarOp(opTypes[b], n))
		n, start = 0, i+1
	}
	if start != len(s) {
		return nil, &ParseError{Cigar: s, Offset: start, Reason: "length without operation"}
	}
	return c, nil
}

// Format is the inverse of Parse. An empty edit list formats as "".
func Format(c sam.Cigar) string {
	var sb strings.Builder
	for _, op := range c {
		fmt.Fprintf(&sb, "%d%s", op.Len(), op.Type())
	}
	return sb.String()
}

// ConsumesQuery reports whether t advances the query cursor. Hard clips
// count as query-consuming: aligners that emit H ops here keep the clipped
// bases in SEQ.
func ConsumesQuery(t sam.CigarOpType) bool {
	switch t {
	case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch,
		sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarHardClipped:
		return true
	}
	return false
}

// ConsumesRef reports whether t advances the reference cursor.
func ConsumesRef(t sam.CigarOpType) bool {
	switch t {
	case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion:
		return true
	}
	return false
}

// RefLen returns the number of reference positions c spans.
func RefLen(c sam.Cigar) int {
	n := 0
	for _, op := range c {
		if ConsumesRef(op.Type()) {
			n += op.Len()
		}
	}
	return n
}

// QueryLen returns the number of query characters c consumes.
func QueryLen(c sam.Cigar) int {
	n := 0
	for _, op := range c {
		if ConsumesQuery(op.Type()) {
			n += op.Len()
		}
	}
	return n
}
