// Package fastq writes FASTQ files, and converts FASTA input to FASTQ for
// aligners that only accept FASTQ.
package fastq

import (
	"io"
	"strings"
)

var newline = []byte{'\n'}

// DefaultQual is the quality character assigned to every base of a read
// converted from FASTA.
const DefaultQual = '~'

// A Read is a FASTQ read, comprising an ID (without the leading '@'), a
// sequence and a quality string of the same length.
type Read struct {
	ID, Seq, Qual string
}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format.
// An error is returned if the write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln("@", r.ID)
	w.writeln("", r.Seq)
	w.writeln("", "+")
	w.writeln("", r.Qual)
	return w.err
}

func (w *Writer) writeln(prefix, line string) {
	if w.err != nil {
		return
	}
	if prefix != "" {
		if _, w.err = io.WriteString(w.w, prefix); w.err != nil {
			return
		}
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}

// NewRead creates a read whose bases all have quality qual.
func NewRead(id, seq string, qual byte) *Read {
	return &Read{ID: id, Seq: seq, Qual: strings.Repeat(string(qual), len(seq))}
}
