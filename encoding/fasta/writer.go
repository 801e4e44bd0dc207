package fasta

import "io"

var (
	newline = []byte{'\n'}
	gt      = []byte{'>'}
)

// Writer writes (gapped) FASTA records with each sequence on a single line.
type Writer struct {
	w   io.Writer
	err error
	n   int
}

// NewWriter constructs a new FASTA writer that writes records to the
// underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the record ">id\nseq\n".
// An error is returned if the write failed.
func (w *Writer) Write(id string, seq []byte) error {
	w.write(gt)
	w.writeString(id)
	w.write(newline)
	w.write(seq)
	w.write(newline)
	if w.err == nil {
		w.n++
	}
	return w.err
}

// WriteReference writes ref with its full original header line.
func (w *Writer) WriteReference(ref *Reference) error {
	return w.Write(ref.Header, []byte(ref.Seq))
}

// Records returns the number of records written so far.
func (w *Writer) Records() int { return w.n }

// Err returns the first write error, if any.
func (w *Writer) Err() error { return w.err }

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}
