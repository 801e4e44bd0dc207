package fastq

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// FromFASTA copies every FASTA record in r to w as a FASTQ read with
// constant quality qual. Multi-line sequences are joined. It returns the
// number of reads written.
func FromFASTA(w io.Writer, r io.Reader, qual byte) (int, error) {
	var (
		fw      = NewWriter(w)
		scanner = bufio.NewScanner(r)
		id      string
		seq     strings.Builder
		n       int
	)
	scanner.Buffer(nil, 1<<30)
	started := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) > 0 && line[0] == '>' {
			if started {
				if err := fw.Write(NewRead(id, seq.String(), qual)); err != nil {
					return n, err
				}
				n++
			}
			started = true
			id = strings.TrimSpace(line[1:])
			seq.Reset()
			continue
		}
		if !started {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return n, errors.E(errors.Invalid, "malformed FASTA: sequence data before the first header")
		}
		seq.WriteString(strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return n, errors.E(err, "reading FASTA")
	}
	if started {
		if err := fw.Write(NewRead(id, seq.String(), qual)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ConvertFile converts the FASTA file at faPath to FASTQ at fqPath. Input is
// decompressed transparently; output is gzipped when fqPath ends in ".gz".
func ConvertFile(ctx context.Context, faPath, fqPath string, qual byte) (n int, err error) {
	in, err := file.Open(ctx, faPath)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := r.Close(); e != nil && err == nil {
			err = e
		}
	}()
	out, err := file.Create(ctx, fqPath)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, out, &err)
	if !strings.HasSuffix(strings.ToLower(fqPath), ".gz") {
		return FromFASTA(out.Writer(ctx), r, qual)
	}
	gz := gzip.NewWriter(out.Writer(ctx))
	n, err = FromFASTA(gz, r, qual)
	if e := gz.Close(); e != nil && err == nil {
		err = e
	}
	return n, err
}
