package fasta

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// IndexSuffix is appended to a FASTA path to name its index.
const IndexSuffix = ".fai"

// indexEntry is one line of a .fai file.
type indexEntry struct {
	name      string
	length    int64 // bases in the sequence
	offset    int64 // byte offset of the first base
	lineBases int64 // bases per line
	lineWidth int64 // bytes per line, including the terminator
}

func (e *indexEntry) write(w *tsv.Writer) error {
	w.WriteString(e.name)
	w.WriteInt64(e.length)
	w.WriteInt64(e.offset)
	w.WriteInt64(e.lineBases)
	w.WriteInt64(e.lineWidth)
	return w.EndLine()
}

// GenerateIndex generates an index (*.fai) from FASTA, in the format defined
// by "samtools faidx" (http://www.htslib.org/doc/faidx.html): one line per
// sequence holding "<name>\t<length>\t<offset>\t<bases per line>\t<bytes per
// line>".
func GenerateIndex(out io.Writer, in io.Reader) error {
	var (
		w       = tsv.NewWriter(out)
		r       = bufio.NewReader(in)
		cur     *indexEntry
		cumByte int64
	)
	for {
		fullLine, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return errors.E(err, "reading FASTA")
		}
		eof := err == io.EOF
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		switch {
		case len(line) == 0:
		case line[0] == '>':
			if cur != nil {
				if err := cur.write(w); err != nil {
					return err
				}
			}
			cur = &indexEntry{
				name:   strings.Split(string(line[1:]), " ")[0],
				offset: cumByte,
			}
		case cur == nil:
			return errors.E(errors.Invalid, "malformed FASTA file: sequence data before the first header")
		default:
			if cur.lineWidth == 0 {
				cur.lineWidth = int64(len(fullLine))
				cur.lineBases = int64(len(line))
			}
			cur.length += int64(len(line))
		}
		if eof {
			break
		}
	}
	if cur == nil {
		return errors.E(errors.Invalid, "empty FASTA file")
	}
	if err := cur.write(w); err != nil {
		return err
	}
	return w.Flush()
}

// WriteIndexFile creates fastaPath+".fai" unless it already exists. It
// reports whether a new index was written.
func WriteIndexFile(ctx context.Context, fastaPath string) (created bool, err error) {
	indexPath := fastaPath + IndexSuffix
	if _, err := file.Stat(ctx, indexPath); err == nil {
		return false, nil
	}
	in, err := file.Open(ctx, fastaPath)
	if err != nil {
		return false, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return false, err
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = GenerateIndex(out.Writer(ctx), in.Reader(ctx)); err != nil {
		return false, errors.E(err, "generating index for", fastaPath)
	}
	return true, nil
}
