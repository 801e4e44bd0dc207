// Package aln reads pairwise read-to-reference alignments from SAM and BAM
// files as a stream of flat records.
package aln

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
)

// Column indexes of the SAM fields used here.
const (
	colID    = 0
	colFlag  = 1
	colPos   = 3
	colCigar = 5
	colSeq   = 9

	minCols = colSeq + 1
)

// Record is one alignment line.
type Record struct {
	// ID is the query (read) name.
	ID string
	// Flags is the SAM FLAG field.
	Flags sam.Flags
	// Pos is the 0-based reference position of the first aligned base.
	Pos int
	// Cigar is the raw CIGAR text.
	Cigar string
	// Seq is the query sequence as stored in the record. Reverse-strand
	// records already hold the reverse complement.
	Seq string
	// Line is the 1-based line number in the source, or 0 for BAM input.
	Line int
}

// IsPrimary reports whether r is a primary, mapped alignment: its flags are
// exactly 0 (forward) or 16 (reverse). Secondary, supplementary, unmapped
// and paired records are all rejected.
func (r *Record) IsPrimary() bool {
	return r.Flags == 0 || r.Flags == sam.Reverse
}

// ParseLine parses one line of SAM text. It returns ok=false for blank lines
// and header lines (those starting with '@').
func ParseLine(line string) (rec Record, ok bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 || line[0] == '@' {
		return rec, false, nil
	}
	cols := strings.SplitN(line, "\t", minCols+1)
	if len(cols) < minCols {
		return rec, false, fmt.Errorf("aln: record has %d fields, want at least %d", len(cols), minCols)
	}
	flags, err := strconv.ParseUint(cols[colFlag], 10, 16)
	if err != nil {
		return rec, false, fmt.Errorf("aln: record %s: invalid flag %q", cols[colID], cols[colFlag])
	}
	pos, err := strconv.Atoi(cols[colPos])
	if err != nil {
		return rec, false, fmt.Errorf("aln: record %s: invalid position %q", cols[colID], cols[colPos])
	}
	rec = Record{
		ID:    strings.TrimSpace(cols[colID]),
		Flags: sam.Flags(flags),
		Pos:   pos - 1,
		Cigar: strings.TrimSpace(cols[colCigar]),
		Seq:   strings.TrimSpace(cols[colSeq]),
	}
	if rec.Seq == "*" {
		rec.Seq = ""
	}
	return rec, true, nil
}
