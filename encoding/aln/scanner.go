package aln

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/viralmsa/encoding/cigar"
)

// MaxLineSize bounds a single SAM line. Whole viral genomes are stored on one
// line, so the default bufio limit is far too small.
const MaxLineSize = 1 << 30

// ErrPAF is returned for PAF input.
var ErrPAF = errors.E(errors.NotSupported, "PAF alignments are not yet supported")

// Scanner iterates over alignment records. Scanners are not threadsafe.
//
//   for s.Scan() {
//     rec := s.Record()
//     ...
//   }
//   if err := s.Err(); err != nil { ... }
type Scanner interface {
	// Scan advances to the next record. It returns false at the end of input
	// or on error.
	Scan() bool
	// Record returns the current record. The pointer is valid until the next
	// call to Scan.
	Record() *Record
	// Err returns the first error encountered.
	Err() error
	// Close releases the underlying input.
	Close() error
}

// NewScanner returns a scanner that reads records in the given format from
// r. Only SAM and BAM are supported.
func NewScanner(r io.Reader, format Format) (Scanner, error) {
	switch format {
	case SAM:
		return NewSAMScanner(r), nil
	case BAM:
		s, err := NewBAMScanner(r)
		if err != nil {
			return nil, err
		}
		return s, nil
	case PAF:
		return nil, ErrPAF
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("invalid alignment format: %v", format))
	}
}

// SAMScanner reads SAM text.
type SAMScanner struct {
	sc   *bufio.Scanner
	rec  Record
	line int
	err  error
}

// NewSAMScanner returns a scanner over SAM text in r. Blank and header lines
// are skipped.
func NewSAMScanner(r io.Reader) *SAMScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, MaxLineSize)
	return &SAMScanner{sc: sc}
}

// Scan implements Scanner.Scan.
func (s *SAMScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.sc.Scan() {
		s.line++
		rec, ok, err := ParseLine(s.sc.Text())
		if err != nil {
			s.err = errors.E(errors.Invalid, fmt.Sprintf("line %d", s.line), err)
			return false
		}
		if !ok {
			continue
		}
		rec.Line = s.line
		s.rec = rec
		return true
	}
	if err := s.sc.Err(); err != nil {
		s.err = errors.E(err, "reading SAM")
	}
	return false
}

// Record implements Scanner.Record.
func (s *SAMScanner) Record() *Record { return &s.rec }

// Err implements Scanner.Err.
func (s *SAMScanner) Err() error { return s.err }

// Close implements Scanner.Close.
func (s *SAMScanner) Close() error { return nil }

// BAMScanner reads BAM records through github.com/grailbio/hts/bam and
// flattens them into Records. The CIGAR is re-serialized to text so that
// both formats share a single parsing path.
type BAMScanner struct {
	r   *bam.Reader
	rec Record
	err error
}

// NewBAMScanner reads the BAM header from r and returns a scanner over its
// records.
func NewBAMScanner(r io.Reader) (*BAMScanner, error) {
	br, err := bam.NewReader(r, 1)
	if err != nil {
		return nil, errors.E(err, "reading BAM header")
	}
	return &BAMScanner{r: br}, nil
}

// Scan implements Scanner.Scan.
func (s *BAMScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	r, err := s.r.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		s.err = errors.E(err, "reading BAM")
		return false
	}
	s.rec = Record{
		ID:    r.Name,
		Flags: r.Flags,
		Pos:   r.Pos,
		Cigar: cigar.Format(r.Cigar),
		Seq:   string(r.Seq.Expand()),
	}
	return true
}

// Record implements Scanner.Record.
func (s *BAMScanner) Record() *Record { return &s.rec }

// Err implements Scanner.Err.
func (s *BAMScanner) Err() error { return s.err }

// Close implements Scanner.Close.
func (s *BAMScanner) Close() error { return s.r.Close() }

// Open opens the alignment file at path. If format is Unknown it is guessed
// from the extension. PAF input fails with a NotSupported error, and an
// unrecognized extension fails with an Invalid error; neither reads any data.
func Open(ctx context.Context, path string, format Format) (Scanner, error) {
	if format == Unknown {
		format = GuessFormat(path)
	}
	if err := CheckFormat(path, format); err != nil {
		return nil, err
	}
	in, err := openInput(ctx, path, format == SAM)
	if err != nil {
		return nil, err
	}
	var s Scanner
	if format == SAM {
		s = NewSAMScanner(in)
	} else if s, err = NewBAMScanner(in); err != nil {
		_ = in.Close()
		return nil, err
	}
	return &fileScanner{Scanner: s, in: in}, nil
}

// OpenText opens the SAM file at path for raw line access, decompressing it
// if needed. The caller must close the result.
func OpenText(ctx context.Context, path string) (io.ReadCloser, error) {
	return openInput(ctx, path, true)
}

// CheckFormat validates that format can be projected, reporting path in the
// error otherwise.
func CheckFormat(path string, format Format) error {
	switch format {
	case SAM, BAM:
		return nil
	case PAF:
		return errors.E(errors.NotSupported, "PAF alignments are not yet supported:", path)
	default:
		return errors.E(errors.Invalid, "invalid alignment extension:", path)
	}
}

// input is a file.File plus an optional decompressor stacked on top of it.
type input struct {
	io.Reader
	ctx context.Context
	f   file.File
	zr  io.ReadCloser
}

func openInput(ctx context.Context, path string, decompress bool) (*input, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	in := &input{Reader: f.Reader(ctx), ctx: ctx, f: f}
	if decompress {
		in.zr, _ = compress.NewReader(in.Reader)
		in.Reader = in.zr
	}
	return in, nil
}

func (in *input) Close() error {
	var err error
	if in.zr != nil {
		err = in.zr.Close()
	}
	if e := in.f.Close(in.ctx); e != nil && err == nil {
		err = e
	}
	return err
}

type fileScanner struct {
	Scanner
	in *input
}

func (s *fileScanner) Close() error {
	err := s.Scanner.Close()
	if e := s.in.Close(); e != nil && err == nil {
		err = e
	}
	return err
}
