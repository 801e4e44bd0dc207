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

// Package pipeline runs reference-guided multiple sequence alignment end to
// end: resolve the reference, build the aligner index, align the input
// sequences, and project the alignments into a gapped-FASTA MSA.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/viralmsa/aligner"
	"github.com/grailbio/viralmsa/encoding/aln"
	"github.com/grailbio/viralmsa/encoding/fasta"
	"github.com/grailbio/viralmsa/msa"
	"github.com/grailbio/viralmsa/refcache"
	"github.com/grailbio/viralmsa/runlog"
)

// Version is the release of the pipeline.
const Version = "1.1.21"

// LogName is the run log written inside the output directory.
const LogName = "viralmsa.log"

type Opts struct {
	// Sequences is the input FASTA. It cannot be compressed.
	Sequences string
	// Reference is a FASTA path, a virus shorthand, or an NCBI accession.
	Reference string
	// Email identifies the user to NCBI when downloading the reference.
	Email string
	// Output is the output directory. It must not exist.
	Output   string
	Aligner  string
	Threads  int
	CacheDir string
	// MSA configures the projection. MSA.Format is ignored.
	MSA msa.Opts
}

var DefaultOpts = Opts{
	Aligner:  "minimap2",
	Threads:  runtime.NumCPU(),
	CacheDir: refcache.DefaultDir(),
	MSA:      msa.DefaultOpts,
}

// Validate checks opts and makes its paths absolute.
func (o *Opts) Validate() error {
	if o.Threads < 1 {
		return errors.E(errors.Invalid, "number of threads must be positive")
	}
	if _, err := aligner.Lookup(o.Aligner); err != nil {
		return err
	}
	o.Aligner = strings.ToLower(strings.TrimSpace(o.Aligner))
	if o.Reference == "" {
		return errors.E(errors.Invalid, "a reference is required")
	}
	var err error
	if o.Sequences, err = filepath.Abs(o.Sequences); err != nil {
		return err
	}
	if fi, err := os.Stat(o.Sequences); err != nil || fi.IsDir() {
		return errors.E(errors.NotExist, "sequences file not found:", o.Sequences)
	}
	if strings.HasSuffix(strings.ToLower(o.Sequences), ".gz") {
		return errors.E(errors.Invalid, "sequences cannot be compressed:", o.Sequences)
	}
	if o.Output == "" {
		return errors.E(errors.Invalid, "an output directory is required")
	}
	if o.Output, err = filepath.Abs(o.Output); err != nil {
		return err
	}
	if _, err := os.Stat(o.Output); err == nil {
		return errors.E(errors.Exists, "output directory exists:", o.Output)
	}
	if o.CacheDir, err = filepath.Abs(o.CacheDir); err != nil {
		return err
	}
	return nil
}

// Env holds the collaborators of a run. Zero fields get defaults.
type Env struct {
	// Runner runs the aligner binaries.
	Runner aligner.Runner
	// Stdout receives a copy of the run log.
	Stdout io.Writer
	// Fetcher downloads references. It defaults to NCBI, with Opts.Email.
	Fetcher *refcache.Fetcher
}

// Result describes a finished run.
type Result struct {
	// SAM and MSA are the alignment and output paths.
	SAM, MSA string
	// Inputs is the number of input sequences.
	Inputs int
	Stats  msa.Stats
}

// Run validates opts and runs the pipeline.
func Run(ctx context.Context, opts Opts, env Env) (res Result, err error) {
	if err = opts.Validate(); err != nil {
		return
	}
	tool, err := aligner.Lookup(opts.Aligner)
	if err != nil {
		return
	}
	if err = os.MkdirAll(opts.CacheDir, 0777); err != nil {
		return
	}
	if err = os.MkdirAll(opts.Output, 0777); err != nil {
		return
	}
	rl, err := runlog.Create(ctx, filepath.Join(opts.Output, LogName), env.Stdout)
	if err != nil {
		return
	}
	defer func() {
		if e := rl.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if env.Fetcher == nil {
		env.Fetcher = &refcache.Fetcher{Email: opts.Email}
	}
	cache := &refcache.Cache{Dir: opts.CacheDir, Fetcher: env.Fetcher, Log: rl}
	al := aligner.New(tool, env.Runner, rl)
	if err = al.Check(ctx); err != nil {
		return
	}
	if res.Inputs, err = countInputs(ctx, opts.Sequences); err != nil {
		return
	}
	ref, err := cache.Resolve(ctx, opts.Reference)
	if err != nil {
		return
	}

	rl.Section("run information")
	rl.Printf("ViralMSA Version: %s", Version)
	rl.Printf("Sequences: %s", opts.Sequences)
	rl.Printf("Reference: %s", ref.Name)
	rl.Printf("Email Address: %s", opts.Email)
	rl.Printf("Output Directory: %s", opts.Output)
	rl.Printf("Aligner: %s", tool.Name)
	rl.Printf("ViralMSA Cache Directory: %s", opts.CacheDir)
	rl.Blank()

	rl.Section("reference genome")
	if err = cache.Fetch(ctx, ref); err != nil {
		return
	}
	if err = al.BuildIndex(ctx, ref.Path, opts.Threads); err != nil {
		return
	}
	rl.Blank()

	rl.Section("alignment")
	base := filepath.Base(opts.Sequences)
	res.SAM = filepath.Join(opts.Output, base+".sam")
	if err = al.Align(ctx, opts.Sequences, res.SAM, ref.Path, opts.Threads); err != nil {
		return
	}
	rl.Printf("Converting alignment to FASTA...")
	res.MSA = filepath.Join(opts.Output, base+".aln")
	mopts := opts.MSA
	mopts.Format = aln.Unknown
	if res.Stats, err = msa.ProjectFiles(ctx, ref.Path, res.SAM, res.MSA, mopts, rl); err != nil {
		return
	}
	log.Debug.Printf("pipeline: %s: %v", res.MSA, res.Stats)
	rl.Printf("Multiple sequence alignment complete: %s", res.MSA)
	if res.Stats.Accepted < res.Inputs {
		rl.Printf("WARNING: Some sequences from the input are missing from the output (%d of %d). Perhaps try a different aligner or reference genome?",
			res.Inputs-res.Stats.Accepted, res.Inputs)
	}
	rl.Blank()

	rl.Section("citations")
	rl.Printf("%s", aligner.ViralMSACitation)
	rl.Printf("%s", tool.Citation)
	return
}

func countInputs(ctx context.Context, path string) (n int, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, f, &err)
	if n, err = fasta.CountRecords(f.Reader(ctx)); err != nil {
		return 0, errors.E(err, fmt.Sprintf("counting sequences in %s", path))
	}
	return n, nil
}
