// Package fasta contains code for parsing FASTA files and writing gapped
// FASTA alignments. FASTA files consist of a number of named sequences that
// may be interrupted by newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appear after a space are ignored.
// For example, '>chr1 A viral sequence' becomes 'chr1'. The complete header
// line is still available through Header().
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, which are treated as a 0-based half-open interval
	// [start, end). Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// Header returns the full header line of the given sequence, without the
	// leading '>'.
	Header(seqName string) (string, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

type fasta struct {
	seqs     map[string]string
	headers  map[string]string
	seqNames []string
}

// New creates a new Fasta that holds all the FASTA data from the given reader
// in memory.
func New(r io.Reader) (Fasta, error) {
	f := &fasta{seqs: make(map[string]string), headers: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var seqName, header string
	var seq strings.Builder
	seen := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if seen {
				if err := f.add(seqName, header, seq.String()); err != nil {
					return nil, err
				}
				seq.Reset()
			}
			header = line[1:]
			seqName = strings.Split(header, " ")[0]
			seen = true
		} else {
			if !seen {
				return nil, errors.Errorf("malformed FASTA file: sequence data before the first header")
			}
			seq.WriteString(strings.TrimSpace(line))
		}
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	if !seen {
		return nil, errors.Errorf("empty FASTA file")
	}
	if err := f.add(seqName, header, seq.String()); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *fasta) add(seqName, header, seq string) error {
	if _, ok := f.seqs[seqName]; ok {
		return errors.Errorf("duplicate sequence name: %s", seqName)
	}
	f.seqs[seqName] = seq
	f.headers[seqName] = header
	f.seqNames = append(f.seqNames, seqName)
	return nil
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", fmt.Errorf("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seq string) (uint64, error) {
	s, ok := f.seqs[seq]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seq)
	}
	return uint64(len(s)), nil
}

// Header implements Fasta.Header().
func (f *fasta) Header(seq string) (string, error) {
	h, ok := f.headers[seq]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seq)
	}
	return h, nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}
