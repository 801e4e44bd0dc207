package cmd

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/viralmsa/encoding/aln"
	"github.com/grailbio/viralmsa/encoding/fasta"
	"github.com/grailbio/viralmsa/encoding/fastq"
	"github.com/grailbio/viralmsa/msa"
	"github.com/grailbio/viralmsa/pipeline"
	"v.io/x/lib/cmdline"
)

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "run",
		Short: "Align viral genomes against a reference and write the MSA",
		Long: `
Run resolves the reference genome, builds the aligner's index, aligns the
input sequences, and writes <output>/<sequences>.aln in gapped FASTA format.
Every row has the length of the reference. A run log is written to
<output>/viralmsa.log.

The reference is a FASTA file with exactly one sequence, a virus shorthand
(see "viralmsa refs"), or an NCBI accession.`,
	}
	opts := pipeline.DefaultOpts
	cmd.Flags.StringVar(&opts.Sequences, "s", "", "Input sequences (FASTA format, uncompressed)")
	cmd.Flags.StringVar(&opts.Reference, "r", "", "Reference genome: FASTA path, virus shorthand or NCBI accession")
	cmd.Flags.StringVar(&opts.Email, "e", "", "Email address, for NCBI downloads")
	cmd.Flags.StringVar(&opts.Output, "o", "", "Output directory. It must not exist")
	cmd.Flags.StringVar(&opts.Aligner, "a", opts.Aligner, "Aligner; see \"viralmsa aligners\"")
	cmd.Flags.IntVar(&opts.Threads, "t", opts.Threads, "Number of threads for the aligner")
	cmd.Flags.StringVar(&opts.CacheDir, "viralmsa-dir", opts.CacheDir, "Directory that caches references and indexes")
	cmd.Flags.BoolVar(&opts.MSA.OmitRef, "omit-ref", false, "Omit the reference sequence from the output")
	cmd.Flags.IntVar(&opts.MSA.Parallelism, "parallelism", runtime.NumCPU(), "Number of goroutines projecting SAM records")
	cmd.Flags.BoolVar(&opts.MSA.SkipMalformed, "skip-malformed", false, "Skip records with a malformed CIGAR instead of failing")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("run takes no arguments, but got %v", argv)
		}
		_, err := pipeline.Run(context.Background(), opts, pipeline.Env{Stdout: env.Stdout})
		return err
	})
	return cmd
}

func newCmdProject() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "project",
		Short:    "Convert a SAM or BAM alignment into a reference-length MSA",
		ArgsName: "ref.fas alignment.sam msa.aln",
		Long: `
Project writes one gapped row per primary alignment (flag 0 or 16), in input
order, preceded by the reference unless -omit-ref is set. The output is
BGZF-compressed when its name ends in ".gz".`,
	}
	opts := msa.DefaultOpts
	cmd.Flags.BoolVar(&opts.OmitRef, "omit-ref", false, "Omit the reference sequence from the output")
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", runtime.NumCPU(), "Number of goroutines projecting SAM records")
	cmd.Flags.BoolVar(&opts.SkipMalformed, "skip-malformed", false, "Skip records with a malformed CIGAR instead of failing")
	formatFlag := cmd.Flags.String("format", "", `Alignment format, "sam" or "bam". By default it is guessed from the file name`)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("project takes ref, alignment and output paths, but got %v", argv)
		}
		if *formatFlag != "" {
			if opts.Format = aln.ParseFormat(*formatFlag); opts.Format == aln.Unknown {
				return fmt.Errorf("unknown alignment format \"%s\"", *formatFlag)
			}
		}
		stats, err := msa.ProjectFiles(context.Background(), argv[0], argv[1], argv[2], opts, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, stats)
		return nil
	})
	return cmd
}

func newCmdFaidx() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "faidx",
		Short:    "Write a samtools-compatible .fai index next to a FASTA file",
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("faidx takes one pathname argument, but got %v", argv)
		}
		created, err := fasta.WriteIndexFile(context.Background(), argv[0])
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(env.Stdout, "%s%s exists\n", argv[0], fasta.IndexSuffix)
		}
		return nil
	})
	return cmd
}

func newCmdFastq() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "fastq",
		Short:    "Convert FASTA to FASTQ with a constant quality",
		ArgsName: "in.fas out.fastq",
	}
	qualFlag := cmd.Flags.String("qual", string(fastq.DefaultQual), "Quality character of every base")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("fastq takes input and output paths, but got %v", argv)
		}
		if len(*qualFlag) != 1 {
			return fmt.Errorf("-qual must be one character, but got %q", *qualFlag)
		}
		n, err := fastq.ConvertFile(context.Background(), argv[0], argv[1], (*qualFlag)[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%d reads\n", n)
		return nil
	})
	return cmd
}

func newCmdVersion() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "version",
		Short: "Print the ViralMSA version",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		fmt.Fprintf(env.Stdout, "ViralMSA v%s\n", pipeline.Version)
		return nil
	})
	return cmd
}

func newRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "viralmsa",
		Short:    "Reference-guided multiple sequence alignment of viral genomes",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRun(),
			newCmdProject(),
			newCmdAligners(),
			newCmdRefs(),
			newCmdFaidx(),
			newCmdFastq(),
			newCmdVersion(),
		},
	}
}

func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newRoot())
}
