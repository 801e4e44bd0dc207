package msa

import (
	"bufio"
	"context"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/viralmsa/encoding/aln"
	"github.com/grailbio/viralmsa/encoding/bgzf"
	"github.com/grailbio/viralmsa/encoding/fasta"
	"github.com/klauspost/compress/flate"
)

// LoadReference reads the single-record FASTA at path. Gzipped input is
// decompressed transparently.
func LoadReference(ctx context.Context, path string) (ref *fasta.Reference, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "opening reference", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	r, _ := compress.NewReader(f.Reader(ctx))
	defer r.Close() // nolint: errcheck
	if ref, err = fasta.ReadReference(r); err != nil {
		return nil, errors.E(errors.Invalid, err, "reading reference", path)
	}
	return ref, nil
}

// ProjectFiles projects the alignments in alnPath onto the reference in
// refPath and writes the MSA to outPath. outPath is BGZF-compressed when it
// ends in ".gz". Unsupported alignment formats fail before outPath is
// created.
func ProjectFiles(ctx context.Context, refPath, alnPath, outPath string, opts Opts, rep Reporter) (stats Stats, err error) {
	format := opts.Format
	if format == aln.Unknown {
		format = aln.GuessFormat(alnPath)
	}
	if err = aln.CheckFormat(alnPath, format); err != nil {
		return
	}
	ref, err := LoadReference(ctx, refPath)
	if err != nil {
		return
	}
	log.Debug.Printf("msa: reference %s, %d bases", ref.Name, ref.Len())

	out, err := file.Create(ctx, outPath)
	if err != nil {
		return stats, errors.E(err, "creating MSA", outPath)
	}
	defer file.CloseAndReport(ctx, out, &err)
	var zw *bgzf.Writer
	bw := bufio.NewWriterSize(out.Writer(ctx), 1<<20)
	if strings.HasSuffix(outPath, ".gz") {
		if zw, err = bgzf.NewWriter(out.Writer(ctx), flate.DefaultCompression); err != nil {
			return
		}
		bw = bufio.NewWriterSize(zw, 1<<20)
	}
	w := fasta.NewWriter(bw)

	p := NewProjector(ref, opts, rep)
	if format == aln.SAM && opts.Parallelism > 1 {
		in, e := aln.OpenText(ctx, alnPath)
		if e != nil {
			return stats, e
		}
		stats, err = p.ProjectSAM(ctx, in, w)
		if e := in.Close(); e != nil && err == nil {
			err = e
		}
	} else {
		s, e := aln.Open(ctx, alnPath, format)
		if e != nil {
			return stats, e
		}
		stats, err = p.Project(ctx, s, w)
		if e := s.Close(); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return
	}
	if err = bw.Flush(); err != nil {
		return
	}
	if zw != nil {
		err = zw.Close()
	}
	return
}
