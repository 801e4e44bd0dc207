// Package refcache resolves the reference genome of a run. A reference is
// either a local single-sequence FASTA file, a built-in virus shorthand such
// as "sarscov2", or an NCBI nucleotide accession. Every reference is kept in
// its own directory under a cache root, next to the aligner indexes built
// for it.
package refcache

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/viralmsa/encoding/fasta"
	"github.com/minio/highwayhash"
)

// Ref is a resolved reference.
type Ref struct {
	// Name identifies the reference in the cache: an upper-case accession,
	// or <file>_HASH_<hash> for a local file.
	Name string
	// Dir is the cache directory of the reference.
	Dir string
	// Path is the FASTA file inside Dir.
	Path string
	// Accession is set when the reference is fetched from NCBI.
	Accession string
}

// Logger receives progress messages. A *runlog.Log satisfies it.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Cache is a directory of reference genomes.
type Cache struct {
	// Dir is the cache root, e.g. ~/.viralmsa.
	Dir     string
	Fetcher *Fetcher
	Log     Logger
}

// DefaultDir returns ~/.viralmsa.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".viralmsa"
	}
	return filepath.Join(home, ".viralmsa")
}

var hashKey [32]byte

// SeqHash returns the hex highwayhash of a reference sequence.
func SeqHash(seq string) string {
	sum := highwayhash.Sum128([]byte(seq), hashKey[:])
	return hex.EncodeToString(sum[:])
}

// Resolve maps ref to its cache location. A local FASTA file is copied into
// the cache if it is not there yet; it must hold exactly one sequence.
// Otherwise ref is a virus shorthand or an accession, and the FASTA is not
// fetched until Fetch is called.
func (c *Cache) Resolve(ctx context.Context, ref string) (*Ref, error) {
	if fi, err := os.Stat(ref); err == nil && !fi.IsDir() {
		return c.resolveFile(ctx, ref)
	}
	acc := ref
	if v, ok := LookupVirus(ref); ok {
		acc = v.Accession
	}
	acc = strings.ToUpper(acc)
	if acc == "" || strings.ContainsAny(acc, `/\`) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("invalid reference: %q", ref))
	}
	dir := filepath.Join(c.Dir, acc)
	return &Ref{Name: acc, Dir: dir, Path: filepath.Join(dir, acc+".fas"), Accession: acc}, nil
}

func (c *Cache) resolveFile(ctx context.Context, path string) (_ *Ref, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, f, &err)
	ref, err := fasta.ReadReference(f.Reader(ctx))
	if err != nil {
		return nil, errors.E(errors.Invalid, err,
			fmt.Sprintf("reference file (%s) must have exactly 1 sequence in the FASTA format", path))
	}
	base := filepath.Base(path)
	name := base + "_HASH_" + SeqHash(ref.Seq)
	r := &Ref{Name: name, Dir: filepath.Join(c.Dir, name)}
	r.Path = filepath.Join(r.Dir, base)
	if _, err := os.Stat(r.Dir); err == nil {
		return r, nil
	}
	if err := os.MkdirAll(r.Dir, 0777); err != nil {
		return nil, err
	}
	if err := copyFile(ctx, path, r.Path); err != nil {
		return nil, errors.E(err, "copying reference into cache")
	}
	return r, nil
}

// Fetch downloads the FASTA of r from NCBI unless it is already cached.
func (c *Cache) Fetch(ctx context.Context, r *Ref) error {
	if _, err := os.Stat(r.Path); err == nil {
		c.printf("Reference genome found: %s", r.Path)
		return nil
	}
	if r.Accession == "" {
		return errors.E(errors.NotExist, "reference genome missing from cache:", r.Path)
	}
	if c.Fetcher == nil {
		return errors.E(errors.Precondition, "no NCBI fetcher configured for", r.Accession)
	}
	c.printf("Downloading reference genome from NCBI...")
	seq, err := c.Fetcher.Fetch(ctx, r.Accession)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.Dir, 0777); err != nil {
		return err
	}
	if err := writeFile(ctx, r.Path, seq); err != nil {
		return errors.E(err, "writing reference genome", r.Path)
	}
	c.printf("Reference genome downloaded: %s", r.Path)
	return nil
}

func (c *Cache) printf(format string, v ...interface{}) {
	if c.Log != nil {
		c.Log.Printf(format, v...)
	}
}

func copyFile(ctx context.Context, src, dst string) error {
	data, err := file.ReadFile(ctx, src)
	if err != nil {
		return err
	}
	return writeFile(ctx, dst, data)
}

func writeFile(ctx context.Context, path string, data []byte) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, f, &err)
	_, err = f.Writer(ctx).Write(data)
	return err
}
