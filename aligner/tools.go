package aligner

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/viralmsa/encoding/fasta"
	"github.com/grailbio/viralmsa/encoding/fastq"
)

// ViralMSACitation is printed at the end of every run.
const ViralMSACitation = `ViralMSA: Moshiri N (2021). "ViralMSA: Massively scalable reference-guided multiple sequence alignment of viral genomes." Bioinformatics. 37(5):714–716. doi:10.1093/bioinformatics/btaa743`

// pafTools are aligners that only write PAF, which carries no query
// sequence.
var pafTools = map[string]*Tool{
	"minigraph": {
		Name:     "minigraph",
		Display:  "Minigraph",
		Citation: "Minigraph: https://github.com/lh3/minigraph",
		Probes:   []Probe{{Argv: []string{"minigraph"}, Want: "Usage: minigraph", Stream: Stderr, AllowExitError: true}},
	},
}

var tools = map[string]*Tool{
	"bowtie2": {
		Name:     "bowtie2",
		Display:  "bowtie2",
		Citation: `Bowtie2: Langmead B, Salzberg SL (2012). "Fast gapped-read alignment with Bowtie 2." Nat Methods. 9(4):357-359. doi:10.1038/nmeth.1923`,
		Probes: []Probe{
			{Argv: []string{"bowtie2", "-h"}, Want: "Bowtie 2 version"},
			{Argv: []string{"bowtie2-build", "-h"}, Want: "Bowtie 2 version"},
		},
		Index:    suffixes(".bowtie2.1.bt2", ".bowtie2.2.bt2", ".bowtie2.3.bt2", ".bowtie2.4.bt2", ".bowtie2.rev.1.bt2", ".bowtie2.rev.2.bt2"),
		IndexCmd: buildInRefDir("bowtie2-build", "bowtie2"),
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			return Command{
				Argv:   []string{"bowtie2", "--very-sensitive", "-p", strconv.Itoa(threads), "-f", "-x", ref + ".bowtie2", "-U", seqs, "-S", out},
				Stderr: out + ".log",
			}
		},
	},
	"dragmap": {
		Name:     "dragmap",
		Display:  "DRAGMAP",
		Citation: "DRAGMAP: https://github.com/Illumina/DRAGMAP",
		Probes:   []Probe{{Argv: []string{"dragen-os", "-h"}, Want: "dragenos -r <reference> -b <base calls> [optional arguments]"}},
		Index:    suffixes(".DRAGMAP"),
		PrepareIndex: func(_ context.Context, ref string) error {
			return os.Mkdir(ref+".DRAGMAP", 0777)
		},
		IndexCmd: func(_ context.Context, ref string, threads int) (Command, error) {
			dir := ref + ".DRAGMAP"
			return Command{
				Argv:          []string{"dragen-os", "--build-hash-table", "true", "--ht-reference", ref, "--ht-num-threads", strconv.Itoa(threads), "--output-directory", dir},
				Stdout:        filepath.Join(dir, "index.log"),
				CombineOutput: true,
			}, nil
		},
		// DRAGMAP only reads FASTQ.
		PrepareAlign: func(ctx context.Context, seqs, out string) (string, error) {
			fq := out + ".fastq.gz"
			_, err := fastq.ConvertFile(ctx, seqs, fq, fastq.DefaultQual)
			return fq, err
		},
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			return Command{
				Argv:   []string{"dragen-os", "--num-threads", strconv.Itoa(threads), "--Aligner.sw-all", "1", "-r", ref + ".DRAGMAP", "-1", seqs},
				Stdout: out,
				Stderr: out + ".log",
			}
		},
	},
	"hisat2": {
		Name:     "hisat2",
		Display:  "HISAT2",
		Citation: `HISAT2: Kim D, Paggi JM, Park C, Bennett C, Salzberg SL (2019). "Graph-based genome alignment and genotyping with HISAT2 and HISAT-genotype." Nat Biotechnol. 37:907-915. doi:10.1038/s41587-019-0201-4`,
		Probes: []Probe{
			{Argv: []string{"hisat2", "-h"}, Want: "HISAT2 version"},
			{Argv: []string{"hisat2-build", "-h"}, Want: "HISAT2 version"},
		},
		Index:    suffixes(".hisat2.1.ht2", ".hisat2.2.ht2", ".hisat2.3.ht2", ".hisat2.4.ht2", ".hisat2.5.ht2", ".hisat2.6.ht2", ".hisat2.7.ht2", ".hisat2.8.ht2"),
		IndexCmd: buildInRefDir("hisat2-build", "hisat2"),
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			return Command{
				Argv:   []string{"hisat2", "--very-sensitive", "-p", strconv.Itoa(threads), "-f", "-x", ref + ".hisat2", "-U", seqs, "-S", out},
				Stderr: out + ".log",
			}
		},
	},
	"lra": {
		Name:     "lra",
		Display:  "LRA",
		Citation: `LRA: Ren J, Chaisson MJP (2021). "lra: A long read aligner for sequences and contigs." PLoS Comput Biol. 17(6):e1009078. doi:10.1371/journal.pcbi.1009078`,
		Probes:   []Probe{{Argv: []string{"lra", "-h"}, Want: "lra (long sequence alignment)", AllowExitError: true}},
		Index: func(ref string) [][]string {
			lraRef := ref + ".lra"
			return [][]string{{lraRef}, {lraRef + ".gli"}, {lraRef + ".mmi", lraRef + ".mms"}}
		},
		Partial:      Corrupt,
		PrepareIndex: func(ctx context.Context, ref string) error { return copyFile(ctx, ref, ref+".lra") },
		IndexCmd: func(_ context.Context, ref string, threads int) (Command, error) {
			lraRef := ref + ".lra"
			return Command{Argv: []string{"lra", "index", "-CONTIG", lraRef}, Stderr: lraRef + ".log"}, nil
		},
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			return Command{
				Argv:   []string{"lra", "align", "-t", strconv.Itoa(threads), "-CONTIG", "-p", "s", ref + ".lra", seqs},
				Stdout: out,
				Stderr: out + ".log",
			}
		},
	},
	"minimap2": {
		Name:     "minimap2",
		Display:  "Minimap2",
		Citation: `Minimap2: Li H (2018). "Minimap2: pairwise alignment for nucleotide sequences." Bioinformatics. 34(18):3094-3100. doi:10.1093/bioinformatics/bty191`,
		Probes:   []Probe{{Argv: []string{"minimap2", "-h"}, Want: "Usage: minimap2"}},
		Index:    suffixes(".mmi"),
		IndexCmd: mapIndex("minimap2", ".mmi"),
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			return Command{
				Argv:   []string{"minimap2", "-t", strconv.Itoa(threads), "--score-N=0", "--secondary=no", "--sam-hit-only", "-a", "-o", out, ref + ".mmi", seqs},
				Stderr: out + ".log",
			}
		},
	},
	"ngmlr": {
		Name:     "ngmlr",
		Display:  "NGMLR",
		Citation: `NGMLR: Sedlazeck FJ, Rescheneder P, Smolka M, Fang H, Nattestad M, von Haeseler A, Schatz MC (2018). "Accurate detection of complex structural variations using single-molecule sequencing." Nat Methods. 15:461-468. doi:10.1038/s41592-018-0001-7`,
		Probes:   []Probe{{Argv: []string{"ngmlr", "-h"}, Want: "Usage: ngmlr", Stream: Combined}},
		Index:    suffixes("-enc.2.ngm", "-ht-13-2.2.ngm"),
		Partial:  Corrupt,
		IndexCmd: func(_ context.Context, ref string, threads int) (Command, error) {
			return Command{
				Argv:   []string{"ngmlr", "-x", "pacbio", "-i", "0", "--no-smallinv", "-t", strconv.Itoa(threads), "-r", ref},
				Stderr: ref + ".NGMLR.log",
			}, nil
		},
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			return Command{
				Argv:   []string{"ngmlr", "--skip-write", "-x", "pacbio", "-i", "0", "--no-smallinv", "-t", strconv.Itoa(threads), "-r", ref, "-q", seqs, "-o", out},
				Stderr: out + ".log",
			}
		},
	},
	"star": {
		Name:     "star",
		Display:  "STAR",
		Citation: `STAR: Dobin A, Davis CA, Schlesinger F, Drehkow J, Zaleski C, Jha S, Batut P, Chaisson M, Gingeras TR (2013). "STAR: ultrafast universal RNA-seq aligner." Bioinformatics. 29(1):15-21. doi:10.1093/bioinformatics/bts635`,
		Probes:   []Probe{{Argv: []string{"STAR", "-h"}, Want: "Usage: STAR"}},
		Index:    suffixes(".STAR"),
		PrepareIndex: func(_ context.Context, ref string) error {
			return os.Mkdir(ref+".STAR", 0777)
		},
		IndexCmd: func(ctx context.Context, ref string, threads int) (Command, error) {
			n, err := refLen(ctx, ref)
			if err != nil {
				return Command{}, err
			}
			dir := ref + ".STAR"
			return Command{
				Argv: []string{"STAR", "--runMode", "genomeGenerate", "--runThreadN", strconv.Itoa(threads), "--genomeDir", dir,
					"--genomeFastaFiles", ref, "--genomeSAindexNbases", strconv.Itoa(StarSAIndexNBases(n))},
				// STAR writes Log.out to its working directory.
				Dir:           dir,
				Stdout:        filepath.Join(dir, "index.log"),
				CombineOutput: true,
			}, nil
		},
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			dir := filepath.Dir(out)
			return Command{
				Argv: []string{"STAR", "--runThreadN", strconv.Itoa(threads), "--genomeDir", ref + ".STAR", "--readFilesIn", seqs,
					"--outFileNamePrefix", starPrefix(out), "--outFilterMismatchNmax", "9999999999"},
				Dir:    dir,
				Stdout: filepath.Join(dir, "STAR.log"),
			}
		},
		FinishAlign: func(out string) error {
			return os.Rename(starPrefix(out)+"Aligned.out.sam", out)
		},
	},
	"unimap": {
		Name:     "unimap",
		Display:  "Unimap",
		Citation: `Unimap: Li H (2021). "Unimap: A fork of minimap2 optimized for assembly-to-reference alignment." https://github.com/lh3/unimap`,
		Probes:   []Probe{{Argv: []string{"unimap", "-h"}, Want: "Usage: unimap"}},
		Index:    suffixes(".umi"),
		IndexCmd: mapIndex("unimap", ".umi"),
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			return Command{
				Argv:   []string{"unimap", "-t", strconv.Itoa(threads), "--score-N=0", "--secondary=no", "--sam-hit-only", "-a", "--cs", "-o", out, ref + ".umi", seqs},
				Stderr: out + ".log",
			}
		},
	},
	"wfmash": {
		Name:     "wfmash",
		Display:  "wfmash",
		Citation: `wfmash: Jain C, Koren S, Dilthey A, Phillippy AM, Aluru S (2018). "A Fast Adaptive Algorithm for Computing Whole-Genome Homology Maps". Bioinformatics. 34(17):i748-i756. doi:10.1093/bioinformatics/bty597. Marco-Sola S, Moure JC, Moreto M, Espinosa A (2021). "Fast gap-affine pairwise alignment using the wavefront algorithm". Bioinformatics. 37(4):456-463. doi:10.1093/bioinformatics/btaa777`,
		Probes:   []Probe{{Argv: []string{"wfmash", "-h"}, Want: "wfmash [target] [queries...] {OPTIONS}"}},
		Index:    suffixes(fasta.IndexSuffix),
		PrepareIndex: func(ctx context.Context, ref string) error {
			_, err := fasta.WriteIndexFile(ctx, ref)
			return err
		},
		AlignCmd: func(seqs, out, ref string, threads int) Command {
			return Command{
				Argv:   []string{"wfmash", "-N", "--sam-format", fmt.Sprintf("--threads=%d", threads), ref, seqs},
				Stdout: out,
				Stderr: out + ".log",
			}
		},
	},
}

// suffixes returns an Index func whose artifacts are ref plus each suffix.
func suffixes(exts ...string) func(string) [][]string {
	return func(ref string) [][]string {
		paths := make([][]string, len(exts))
		for i, ext := range exts {
			paths[i] = []string{ref + ext}
		}
		return paths
	}
}

// buildInRefDir returns the IndexCmd for the bowtie2 and hisat2 builders,
// which write <ref>.<base>.* next to the reference.
func buildInRefDir(builder, base string) func(context.Context, string, int) (Command, error) {
	return func(_ context.Context, ref string, threads int) (Command, error) {
		dir, name := filepath.Split(ref)
		return Command{
			Argv:          []string{builder, "--threads", strconv.Itoa(threads), ref, name + "." + base},
			Dir:           dir,
			Stdout:        ref + "." + base + ".log",
			CombineOutput: true,
		}, nil
	}
}

// mapIndex returns the IndexCmd for minimap2 and its forks.
func mapIndex(bin, ext string) func(context.Context, string, int) (Command, error) {
	return func(_ context.Context, ref string, threads int) (Command, error) {
		idx := ref + ext
		return Command{Argv: []string{bin, "-t", strconv.Itoa(threads), "-d", idx, ref}, Stderr: idx + ".log"}, nil
	}
}

// StarSAIndexNBases returns STAR's --genomeSAindexNbases for a genome of n
// bases: min(14, log2(n)/2 - 1).
func StarSAIndexNBases(n int) int {
	if n < 2 {
		return 1
	}
	v := int(math.Log2(float64(n))/2) - 1
	if v > 14 {
		v = 14
	}
	if v < 1 {
		v = 1
	}
	return v
}

func starPrefix(out string) string {
	return strings.TrimSuffix(out, filepath.Ext(out)) + "."
}

func refLen(ctx context.Context, ref string) (n int, err error) {
	f, err := file.Open(ctx, ref)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, f, &err)
	r, err := fasta.ReadReference(f.Reader(ctx))
	if err != nil {
		return 0, err
	}
	return r.Len(), nil
}

func copyFile(ctx context.Context, src, dst string) (err error) {
	in, err := file.Open(ctx, src)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, dst)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	_, err = io.Copy(out.Writer(ctx), in.Reader(ctx))
	return err
}
