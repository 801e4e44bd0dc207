// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package msa projects pairwise read-to-reference alignments onto the
// reference coordinate frame, producing a multiple sequence alignment in
// gapped-FASTA form. Every output row has exactly the reference length:
// insertions relative to the reference are dropped, and unaligned reference
// positions are filled with gaps.
package msa

import (
	"context"
	"fmt"
	"io"

	"github.com/dgryski/go-farm"
	"github.com/exascience/pargo/pipeline"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/viralmsa/encoding/aln"
	"github.com/grailbio/viralmsa/encoding/cigar"
	"github.com/grailbio/viralmsa/encoding/fasta"
)

type Opts struct {
	// OmitRef suppresses the leading reference row.
	OmitRef bool
	// Parallelism is the number of goroutines that parse and project SAM
	// text. Values <= 1 select the single-threaded streaming loop.
	Parallelism int
	// SkipMalformed skips records with a malformed CIGAR or position instead
	// of aborting the run.
	SkipMalformed bool
	// Format overrides the alignment format guessed from the file extension.
	Format aln.Format
}

var DefaultOpts = Opts{
	Parallelism: 1,
}

// Stats tallies the records seen by a Projector.
type Stats struct {
	// Accepted is the number of alignment rows written, not counting the
	// reference row.
	Accepted int
	// Filtered counts records dropped because their flag was not exactly 0
	// or 16.
	Filtered int
	// Truncated counts accepted rows whose edits ran past the reference end.
	Truncated int
	// ShortQuery counts accepted rows whose query was shorter than its CIGAR
	// required.
	ShortQuery int
	// Malformed counts records skipped under Opts.SkipMalformed.
	Malformed int
	// DuplicateIDs counts accepted records whose id was already written.
	DuplicateIDs int
}

func (s Stats) String() string {
	return fmt.Sprintf("accepted=%d filtered=%d malformed=%d truncated=%d shortquery=%d dupids=%d",
		s.Accepted, s.Filtered, s.Malformed, s.Truncated, s.ShortQuery, s.DuplicateIDs)
}

// RecordError reports a record that could not be projected. Err is a
// *cigar.ParseError for malformed CIGAR strings.
type RecordError struct {
	// ID is the record's query name.
	ID string
	// Line is the 1-based line of the record in SAM input, or 0 if unknown.
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("record %s (line %d): %v", e.ID, e.Line, e.Err)
	}
	return fmt.Sprintf("record %s: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *RecordError) Unwrap() error { return e.Err }

// Cause returns the underlying error, for github.com/pkg/errors.
func (e *RecordError) Cause() error { return e.Err }

// Reporter receives user-facing warnings, such as skipped records. A
// *runlog.Log satisfies it.
type Reporter interface {
	Printf(format string, v ...interface{})
}

type stdReporter struct{}

func (stdReporter) Printf(format string, v ...interface{}) { log.Printf(format, v...) }

// Projector turns alignment records into MSA rows against one reference.
// A Projector is not threadsafe; each Project call resets its tally.
type Projector struct {
	ref   *fasta.Reference
	opts  Opts
	rep   Reporter
	stats Stats
	seen  map[uint64]struct{}
}

// NewProjector returns a projector for ref. Warnings go to rep, or to
// grailbio/base/log if rep is nil.
func NewProjector(ref *fasta.Reference, opts Opts, rep Reporter) *Projector {
	if rep == nil {
		rep = stdReporter{}
	}
	return &Projector{ref: ref, opts: opts, rep: rep}
}

// result is a projected record, waiting to be written in input order.
type result struct {
	rec      aln.Record
	row      []byte
	status   RowStatus
	filtered bool
	// recErr is a record-level failure that SkipMalformed may skip.
	recErr error
	// err is a fatal failure, such as an unparseable SAM line.
	err error
}

// project builds the row for rec into buf.
func (p *Projector) project(rec *aln.Record, buf []byte) result {
	r := result{rec: *rec}
	if !rec.IsPrimary() {
		r.filtered = true
		return r
	}
	if rec.Pos < 0 {
		r.recErr = errors.E(errors.Invalid, fmt.Sprintf("invalid position %d", rec.Pos+1))
		return r
	}
	edits, err := cigar.Parse(rec.Cigar)
	if err != nil {
		r.recErr = err
		return r
	}
	r.row, r.status = ProjectRow(buf[:0], rec.Pos, edits, rec.Seq, p.ref.Len())
	return r
}

func (p *Projector) reset(w *fasta.Writer) error {
	p.stats = Stats{}
	p.seen = make(map[uint64]struct{})
	if p.opts.OmitRef {
		return nil
	}
	return w.WriteReference(p.ref)
}

// commit writes r to w and updates the tally.
func (p *Projector) commit(r *result, w *fasta.Writer) error {
	if r.err != nil {
		return r.err
	}
	if r.filtered {
		p.stats.Filtered++
		return nil
	}
	if r.recErr != nil {
		err := &RecordError{ID: r.rec.ID, Line: r.rec.Line, Err: r.recErr}
		if !p.opts.SkipMalformed {
			return err
		}
		p.stats.Malformed++
		p.rep.Printf("WARNING: skipping %v", err)
		return nil
	}
	fp := farm.Fingerprint64([]byte(r.rec.ID))
	if _, ok := p.seen[fp]; ok {
		p.stats.DuplicateIDs++
		p.rep.Printf("WARNING: duplicate sequence ID %s", r.rec.ID)
	} else {
		p.seen[fp] = struct{}{}
	}
	if r.status.Truncated {
		p.stats.Truncated++
		log.Debug.Printf("msa: %s: alignment runs past reference end (%d), truncated", r.rec.ID, p.ref.Len())
	}
	if r.status.ShortQuery {
		p.stats.ShortQuery++
		log.Debug.Printf("msa: %s: query shorter than CIGAR %s, padded with gaps", r.rec.ID, r.rec.Cigar)
	}
	if err := w.Write(r.rec.ID, r.row); err != nil {
		return errors.E(err, "writing MSA row", r.rec.ID)
	}
	p.stats.Accepted++
	return nil
}

// Project writes the reference row (unless omitted) followed by one row per
// accepted record in s, in input order. It returns the tally even on error.
func (p *Projector) Project(ctx context.Context, s aln.Scanner, w *fasta.Writer) (Stats, error) {
	if err := p.reset(w); err != nil {
		return p.stats, errors.E(err, "writing reference row")
	}
	buf := make([]byte, 0, p.ref.Len())
	for s.Scan() {
		if err := ctx.Err(); err != nil {
			return p.stats, err
		}
		r := p.project(s.Record(), buf)
		if err := p.commit(&r, w); err != nil {
			return p.stats, err
		}
		if r.row != nil {
			buf = r.row
		}
	}
	return p.stats, s.Err()
}

// batch is the output of the parallel stage for one chunk of SAM lines.
type batch struct {
	lines   int
	results []result
}

// ProjectSAM is Project for SAM text read from r. Lines are parsed and
// projected by up to Opts.Parallelism goroutines; rows are written in input
// order by a single stage.
func (p *Projector) ProjectSAM(ctx context.Context, r io.Reader, w *fasta.Writer) (Stats, error) {
	if err := p.reset(w); err != nil {
		return p.stats, errors.E(err, "writing reference row")
	}
	refLen := p.ref.Len()
	src := pipeline.NewScanner(r)
	src.Buffer(nil, aln.MaxLineSize)

	var pl pipeline.Pipeline
	pl.Source(src)
	pl.Add(pipeline.LimitedPar(p.opts.Parallelism, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		b := &batch{lines: len(lines)}
		for i, line := range lines {
			rec, ok, err := aln.ParseLine(line)
			if err != nil {
				b.results = append(b.results, result{rec: aln.Record{Line: i + 1}, err: err})
				continue
			}
			if !ok {
				continue
			}
			rec.Line = i + 1
			b.results = append(b.results, p.project(&rec, make([]byte, 0, refLen)))
		}
		return b
	})))
	offset := 0
	var failed bool
	pl.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		if failed {
			return nil
		}
		if err := ctx.Err(); err != nil {
			failed = true
			pl.SetErr(err)
			return nil
		}
		b := data.(*batch)
		for i := range b.results {
			r := &b.results[i]
			r.rec.Line += offset
			if r.err != nil {
				r.err = errors.E(errors.Invalid, fmt.Sprintf("line %d", r.rec.Line), r.err)
			}
			if err := p.commit(r, w); err != nil {
				failed = true
				pl.SetErr(err)
				return nil
			}
		}
		offset += b.lines
		return nil
	})))
	pl.Run()
	return p.stats, pl.Err()
}
