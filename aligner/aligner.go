// Package aligner drives the external read aligners that produce the
// pairwise alignments projected into an MSA. Each supported aligner is an
// entry in a table of Tools, which describe how to probe the binaries, build
// a reference index, and align sequences. Commands run through a Runner so
// that they can be faked in tests.
package aligner

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Stream selects the output stream a Probe inspects.
type Stream int

const (
	// Stdout inspects standard output.
	Stdout Stream = iota
	// Stderr inspects standard error.
	Stderr
	// Combined inspects both.
	Combined
)

// Probe checks that a binary is installed: running Argv must print Want on
// the given stream.
type Probe struct {
	Argv   []string
	Want   string
	Stream Stream
	// AllowExitError accepts a non-zero exit status if Want was printed.
	AllowExitError bool
}

// Command is one external process invocation.
type Command struct {
	Argv []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Stdout and Stderr name files that receive the output streams. Empty
	// discards the stream.
	Stdout, Stderr string
	// CombineOutput sends stderr to the Stdout file.
	CombineOutput bool
}

func (c Command) String() string { return strings.Join(c.Argv, " ") }

// Runner runs external commands.
type Runner interface {
	// Output runs argv and returns what it printed.
	Output(ctx context.Context, argv []string) (stdout, stderr []byte, err error)
	// Run runs cmd to completion.
	Run(ctx context.Context, cmd Command) error
}

// PartialIndex is the policy for an index with only some artifacts present.
type PartialIndex int

const (
	// Rebuild removes the artifacts that exist and rebuilds the index.
	Rebuild PartialIndex = iota
	// Corrupt fails and asks the user to delete the artifacts.
	Corrupt
)

// Tool describes one aligner.
type Tool struct {
	// Name is the lower-case identifier, e.g. "minimap2".
	Name string
	// Display is the name used in progress messages, e.g. "Minimap2".
	Display string
	// Citation is the reference to print at the end of a run.
	Citation string
	Probes   []Probe
	// Index lists the index artifacts for the reference at ref. Each entry
	// is a set of alternative paths; the entry is present if any exists.
	Index func(ref string) [][]string
	// Partial is the policy for a partially built index.
	Partial PartialIndex
	// PrepareIndex, if set, runs before IndexCmd.
	PrepareIndex func(ctx context.Context, ref string) error
	// IndexCmd returns the index build command. Nil means PrepareIndex
	// builds the whole index.
	IndexCmd func(ctx context.Context, ref string, threads int) (Command, error)
	// PrepareAlign, if set, converts the input sequences and returns the
	// path passed to AlignCmd.
	PrepareAlign func(ctx context.Context, seqs, out string) (string, error)
	AlignCmd     func(seqs, out, ref string, threads int) Command
	// FinishAlign, if set, runs after AlignCmd, e.g. to move the SAM file
	// into place.
	FinishAlign func(out string) error
}

// Logger receives progress messages. A *runlog.Log satisfies it.
type Logger interface {
	Printf(format string, v ...interface{})
}

type stdLogger struct{}

func (stdLogger) Printf(format string, v ...interface{}) { log.Printf(format, v...) }

// Names returns the names of the usable aligners, sorted.
func Names() []string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the tool with the given name, ignoring case. PAF-only
// aligners fail with a NotSupported error, and unknown names with a NotExist
// error that suggests the closest name.
func Lookup(name string) (*Tool, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if t, ok := tools[key]; ok {
		return t, nil
	}
	if _, ok := pafTools[key]; ok {
		return nil, errors.E(errors.NotSupported, fmt.Sprintf("%s only outputs PAF, which is not yet supported", key))
	}
	msg := fmt.Sprintf("invalid aligner: %s (valid options: %s)", name, strings.Join(Names(), ", "))
	if s := suggest(key); s != "" {
		msg += fmt.Sprintf("; did you mean %s?", s)
	}
	return nil, errors.E(errors.NotExist, msg)
}

// maxSuggestDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestDistance = 3

func suggest(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, cand := range Names() {
		if d := matchr.Levenshtein(name, cand); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}

// Aligner binds a Tool to a Runner and a Logger.
type Aligner struct {
	*Tool
	runner Runner
	log    Logger
}

// New returns an aligner for t. A nil runner runs real processes, and a nil
// logger writes to grailbio/base/log.
func New(t *Tool, r Runner, l Logger) *Aligner {
	if r == nil {
		r = ExecRunner{}
	}
	if l == nil {
		l = stdLogger{}
	}
	return &Aligner{Tool: t, runner: r, log: l}
}

// Check runs every probe of the tool.
func (a *Aligner) Check(ctx context.Context) error {
	for _, p := range a.Probes {
		stdout, stderr, err := a.runner.Output(ctx, p.Argv)
		var out []byte
		switch p.Stream {
		case Stdout:
			out = stdout
		case Stderr:
			out = stderr
		default:
			out = append(append(out, stdout...), stderr...)
		}
		found := strings.Contains(string(out), p.Want)
		if !found || (err != nil && !p.AllowExitError) {
			log.Debug.Printf("aligner: probe %v: %v", p.Argv, err)
			return errors.E(errors.Precondition, fmt.Sprintf("%s is not runnable in your PATH", p.Argv[0]))
		}
	}
	return nil
}

// BuildIndex builds the index for the reference at ref, unless it already
// exists.
func (a *Aligner) BuildIndex(ctx context.Context, ref string, threads int) error {
	var present, missing []string
	if a.Index != nil {
		for _, alts := range a.Index(ref) {
			if p := firstExisting(alts); p != "" {
				present = append(present, p)
			} else {
				missing = append(missing, alts[0])
			}
		}
		if len(missing) == 0 {
			a.log.Printf("%s index found: %s", a.Display, strings.Join(present, " and "))
			return nil
		}
	}
	if len(present) > 0 {
		switch a.Partial {
		case Corrupt:
			return errors.E(errors.Precondition,
				fmt.Sprintf("corrupt %s index. Please delete the following and try again: %s", a.Display, present[0]))
		default:
			for _, p := range present {
				if err := os.RemoveAll(p); err != nil {
					return errors.E(err, "removing partial index", p)
				}
			}
		}
	}
	if a.PrepareIndex != nil {
		if err := a.PrepareIndex(ctx, ref); err != nil {
			return errors.E(err, "preparing", a.Display, "index")
		}
	}
	if a.IndexCmd != nil {
		cmd, err := a.IndexCmd(ctx, ref, threads)
		if err != nil {
			return err
		}
		a.log.Printf("Building %s index: %s", a.Display, cmd)
		if err := a.runner.Run(ctx, cmd); err != nil {
			return errors.E(err, "building", a.Display, "index")
		}
	}
	a.log.Printf("%s index built: %s", a.Display, strings.Join(missing, " and "))
	return nil
}

// Align aligns the sequences in seqs against the indexed reference ref and
// writes SAM to out. The aligner's diagnostics go to out+".log".
func (a *Aligner) Align(ctx context.Context, seqs, out, ref string, threads int) error {
	if a.PrepareAlign != nil {
		var err error
		if seqs, err = a.PrepareAlign(ctx, seqs, out); err != nil {
			return errors.E(err, "preparing", a.Display, "input")
		}
	}
	cmd := a.AlignCmd(seqs, out, ref, threads)
	a.log.Printf("Aligning using %s: %s", a.Display, cmd)
	if err := a.runner.Run(ctx, cmd); err != nil {
		return errors.E(err, "aligning with", a.Display)
	}
	if a.FinishAlign != nil {
		if err := a.FinishAlign(out); err != nil {
			return err
		}
	}
	a.log.Printf("%s alignment complete: %s", a.Display, out)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if exists(p) {
			return p
		}
	}
	return ""
}
