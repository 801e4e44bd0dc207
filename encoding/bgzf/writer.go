// Package bgzf writes block-gzipped (BGZF) files. A BGZF file is a series of
// complete gzip members, each holding at most 64KB of uncompressed data,
// followed by a fixed 28-byte empty member that marks the end of the file.
// Any gzip reader can decompress it, and samtools can index it, so gzipped
// MSA output is written in this format.
//
// For the format details, see the SAM/BAM spec:
// https://samtools.github.io/hts-specs/SAMv1.pdf
//
//   w, err := bgzf.NewWriter(out, flate.DefaultCompression)
//   _, err = w.Write(rows)
//   err = w.Close()
package bgzf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

const (
	// DefaultUncompressedBlockSize is the block payload size used by
	// samtools and biogo.
	DefaultUncompressedBlockSize = 0x0ff00

	// maxCompressedBlockSize bounds the size of one gzip member.
	maxCompressedBlockSize = 0x10000

	// extraOffset is the offset of the Extra field in a gzip header.
	extraOffset = 12
)

var (
	// extra is the BGZF subfield (ids 66, 67, length 2). The last two bytes
	// are patched with the member size - 1.
	extra       = [...]byte{66, 67, 2, 0, 0, 0}
	extraPrefix = [...]byte{66, 67, 2, 0}

	// terminator is the empty member that ends a BGZF file.
	terminator = []byte{
		0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00, 0x42, 0x43,
		0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
)

// Writer compresses its input into BGZF blocks. It is not threadsafe.
type Writer struct {
	w          io.Writer
	level      int
	blockSize  int
	gz         *gzip.Writer
	pending    bytes.Buffer
	compressed bytes.Buffer
}

// NewWriter returns a writer that compresses to w with the given
// klauspost/compress/flate level.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	gz, err := gzip.NewWriterLevel(nil, level)
	if err != nil {
		return nil, fmt.Errorf("bgzf: %v", err)
	}
	return &Writer{w: w, level: level, blockSize: DefaultUncompressedBlockSize, gz: gz}, nil
}

// Write buffers buf and writes out every full block.
func (w *Writer) Write(buf []byte) (int, error) {
	for i := 0; i < len(buf); {
		end := i + w.blockSize - w.pending.Len()
		if end > len(buf) {
			end = len(buf)
		}
		n, _ := w.pending.Write(buf[i:end])
		i += n
		if err := w.flush(false); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

// Close writes the remaining data and the terminator. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if err := w.flush(true); err != nil {
		return err
	}
	_, err := w.w.Write(terminator)
	return err
}

// flush compresses full blocks, and the partial last block when final is set.
func (w *Writer) flush(final bool) error {
	for w.pending.Len() >= w.blockSize || (final && w.pending.Len() > 0) {
		w.compressed.Reset()
		w.gz.Reset(&w.compressed)
		w.gz.Header.Extra = append(w.gz.Header.Extra[:0], extra[:]...)
		w.gz.Header.OS = 0xff
		if _, err := w.gz.Write(w.pending.Next(w.blockSize)); err != nil {
			return err
		}
		if err := w.gz.Close(); err != nil {
			return err
		}
		b := w.compressed.Bytes()
		if len(b) < extraOffset+len(extra) || !bytes.Equal(b[extraOffset:extraOffset+len(extraPrefix)], extraPrefix[:]) {
			log.Panicf("bgzf: missing BGZF extra field in gzip header")
		}
		bsize := len(b) - 1
		if bsize >= maxCompressedBlockSize {
			return fmt.Errorf("bgzf: compressed block is too big: %d > %d", bsize, maxCompressedBlockSize)
		}
		b[extraOffset+4] = byte(bsize)
		b[extraOffset+5] = byte(bsize >> 8)
		if _, err := w.w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
