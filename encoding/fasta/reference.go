package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Reference is a single-record FASTA file held in memory.
type Reference struct {
	// Name is the first word of the header.
	Name string
	// Header is the full header line without the leading '>'.
	Header string
	// Seq is the concatenation of all sequence lines.
	Seq string
}

// Len returns the number of bases in the reference.
func (r *Reference) Len() int { return len(r.Seq) }

// ReadReference reads a FASTA file that must contain exactly one sequence.
func ReadReference(r io.Reader) (*Reference, error) {
	fa, err := New(r)
	if err != nil {
		return nil, err
	}
	names := fa.SeqNames()
	if len(names) != 1 {
		return nil, errors.Errorf("reference must have exactly 1 sequence, found %d", len(names))
	}
	ref := &Reference{Name: names[0]}
	if ref.Header, err = fa.Header(ref.Name); err != nil {
		return nil, err
	}
	n, err := fa.Len(ref.Name)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.Errorf("reference %s is empty", ref.Name)
	}
	if ref.Seq, err = fa.Get(ref.Name, 0, n); err != nil {
		return nil, err
	}
	return ref, nil
}

// CountRecords returns the number of header ('>') lines in r.
func CountRecords(r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	n := 0
	atLineStart := true
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if atLineStart && chunk[0] == '>' {
				n++
			}
			atLineStart = bytes.HasSuffix(chunk, []byte{'\n'})
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, errors.Wrap(err, "couldn't count FASTA records")
		}
	}
}
