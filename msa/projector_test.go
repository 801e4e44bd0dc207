package msa

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/viralmsa/encoding/aln"
	"github.com/grailbio/viralmsa/encoding/cigar"
	"github.com/grailbio/viralmsa/encoding/fasta"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

var testRef = &fasta.Reference{Name: "ref", Header: "ref test reference", Seq: "ACGTACGTAC"}

const testSAM = `@HD	VN:1.6	SO:unsorted
@SQ	SN:ref	LN:10

read1	0	ref	3	60	2S4M1D2M2S	*	0	0	XXACGTGGXX	*
read2	4	*	0	0	4M	*	0	0	ACGT	*
read3	16	ref	1	60	4M	*	0	0	ACGT	*
read4	256	ref	1	60	4M	*	0	0	ACGT	*
read5	2048	ref	1	60	4M	*	0	0	ACGT	*
`

type recorder struct {
	lines []string
}

func (r *recorder) Printf(format string, v ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func project(t *testing.T, sam string, opts Opts) (string, Stats, error) {
	var buf bytes.Buffer
	w := fasta.NewWriter(&buf)
	p := NewProjector(testRef, opts, &recorder{})
	var (
		stats Stats
		err   error
	)
	if opts.Parallelism > 1 {
		stats, err = p.ProjectSAM(context.Background(), strings.NewReader(sam), w)
	} else {
		stats, err = p.Project(context.Background(), aln.NewSAMScanner(strings.NewReader(sam)), w)
	}
	return buf.String(), stats, err
}

func TestProject(t *testing.T) {
	for _, parallelism := range []int{1, 4} {
		opts := DefaultOpts
		opts.Parallelism = parallelism
		out, stats, err := project(t, testSAM, opts)
		assert.NoError(t, err)
		expect.EQ(t, out, ">ref test reference\nACGTACGTAC\n>read1\n--ACGT-GG-\n>read3\nACGT------\n")
		expect.EQ(t, stats, Stats{Accepted: 2, Filtered: 3})
	}
}

func TestProjectOmitRef(t *testing.T) {
	for _, omit := range []bool{false, true} {
		opts := DefaultOpts
		opts.OmitRef = omit
		out, stats, err := project(t, testSAM, opts)
		assert.NoError(t, err)
		rows := strings.Count(out, ">")
		if omit {
			expect.EQ(t, rows, stats.Accepted)
			expect.True(t, strings.HasPrefix(out, ">read1\n"))
		} else {
			expect.EQ(t, rows, stats.Accepted+1)
			expect.True(t, strings.HasPrefix(out, ">ref test reference\nACGTACGTAC\n"))
		}
	}
}

func TestProjectUnmappedExcluded(t *testing.T) {
	out, stats, err := project(t, "read2\t4\tref\t1\t60\t4M\t*\t0\t0\tACGT\t*\n", Opts{OmitRef: true})
	assert.NoError(t, err)
	expect.EQ(t, out, "")
	expect.EQ(t, stats.Accepted, 0)
	expect.EQ(t, stats.Filtered, 1)
}

func TestProjectMalformed(t *testing.T) {
	const bad = "read1\t0\tref\t1\t60\t4M\t*\t0\t0\tACGT\t*\n" +
		"read2\t0\tref\t1\t60\t10\t*\t0\t0\tACGT\t*\n" +
		"read3\t0\tref\t1\t60\t2M\t*\t0\t0\tAC\t*\n"
	for _, parallelism := range []int{1, 3} {
		opts := Opts{OmitRef: true, Parallelism: parallelism}
		_, stats, err := project(t, bad, opts)
		require.NotNil(t, err)
		rerr, ok := err.(*RecordError)
		require.True(t, ok, "%T: %v", err, err)
		expect.EQ(t, rerr.ID, "read2")
		expect.EQ(t, rerr.Line, 2)
		_, ok = rerr.Err.(*cigar.ParseError)
		expect.True(t, ok)
		expect.EQ(t, stats.Accepted, 1)

		opts.SkipMalformed = true
		out, stats, err := project(t, bad, opts)
		assert.NoError(t, err)
		expect.EQ(t, out, ">read1\nACGT------\n>read3\nAC--------\n")
		expect.EQ(t, stats, Stats{Accepted: 2, Malformed: 1})
	}
}

func TestProjectBadPosition(t *testing.T) {
	_, _, err := project(t, "read1\t0\tref\t0\t60\t4M\t*\t0\t0\tACGT\t*\n", Opts{})
	require.NotNil(t, err)
	rerr, ok := err.(*RecordError)
	require.True(t, ok)
	expect.True(t, errors.Is(errors.Invalid, rerr.Err))
}

func TestProjectBadLine(t *testing.T) {
	for _, parallelism := range []int{1, 2} {
		_, _, err := project(t, "@HD\tVN:1.6\nread1\t0\tref\n", Opts{Parallelism: parallelism})
		require.NotNil(t, err)
		expect.True(t, errors.Is(errors.Invalid, err))
		expect.HasSubstr(t, err.Error(), "line 2")
	}
}

func TestProjectStats(t *testing.T) {
	rep := &recorder{}
	var buf bytes.Buffer
	p := NewProjector(testRef, Opts{OmitRef: true}, rep)
	sam := "a\t0\tref\t9\t60\t4M\t*\t0\t0\tACGT\t*\n" +
		"b\t0\tref\t1\t60\t4M\t*\t0\t0\t*\t*\n" +
		"a\t16\tref\t1\t60\t1M\t*\t0\t0\tA\t*\n"
	stats, err := p.Project(context.Background(), aln.NewSAMScanner(strings.NewReader(sam)), fasta.NewWriter(&buf))
	assert.NoError(t, err)
	expect.EQ(t, buf.String(), ">a\n--------AC\n>b\n----------\n>a\nA---------\n")
	expect.EQ(t, stats, Stats{Accepted: 3, Truncated: 1, ShortQuery: 1, DuplicateIDs: 1})
	require.Len(t, rep.lines, 1)
	expect.HasSubstr(t, rep.lines[0], "duplicate sequence ID a")
}

func TestProjectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	p := NewProjector(testRef, DefaultOpts, nil)
	_, err := p.Project(ctx, aln.NewSAMScanner(strings.NewReader(testSAM)), fasta.NewWriter(&buf))
	expect.EQ(t, err, context.Canceled)
}

// randomSAM returns n random primary, secondary and unmapped records against
// a reference of length refLen.
func randomSAM(r *rand.Rand, n, refLen int) string {
	var b strings.Builder
	b.WriteString("@HD\tVN:1.6\n")
	flags := []int{0, 16, 4, 256, 2048}
	for i := 0; i < n; i++ {
		pos, edits, seq := randomAlignment(r, refLen)
		if len(edits) == 0 || seq == "" {
			continue
		}
		fmt.Fprintf(&b, "read%d\t%d\tref\t%d\t60\t%s\t*\t0\t0\t%s\t*\n",
			i, flags[r.Intn(len(flags))], pos+1, cigar.Format(edits), seq)
	}
	return b.String()
}

func TestProjectParallel(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	sam := randomSAM(r, 20000, testRef.Len())
	seqOut, seqStats, err := project(t, sam, Opts{Parallelism: 1})
	assert.NoError(t, err)
	parOut, parStats, err := project(t, sam, Opts{Parallelism: 8})
	assert.NoError(t, err)
	expect.EQ(t, parStats, seqStats)
	expect.True(t, seqOut == parOut)
	expect.True(t, seqStats.Accepted > 0)
	for _, line := range strings.Split(strings.TrimSpace(seqOut), "\n") {
		if !strings.HasPrefix(line, ">") {
			require.Len(t, line, testRef.Len())
		}
	}
}

func TestProjectFiles(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	refPath := filepath.Join(tempDir, "ref.fas")
	assert.NoError(t, ioutil.WriteFile(refPath, []byte(">ref test reference\nACGTA\nCGTAC\n"), 0644))
	samPath := filepath.Join(tempDir, "seqs.fas.sam")
	assert.NoError(t, ioutil.WriteFile(samPath, []byte(testSAM), 0644))
	const want = ">ref test reference\nACGTACGTAC\n>read1\n--ACGT-GG-\n>read3\nACGT------\n"

	for _, parallelism := range []int{1, 4} {
		opts := DefaultOpts
		opts.Parallelism = parallelism
		outPath := filepath.Join(tempDir, fmt.Sprintf("seqs%d.aln", parallelism))
		stats, err := ProjectFiles(ctx, refPath, samPath, outPath, opts, nil)
		assert.NoError(t, err)
		expect.EQ(t, stats.Accepted, 2)
		data, err := ioutil.ReadFile(outPath)
		assert.NoError(t, err)
		expect.EQ(t, string(data), want)
	}

	gzPath := filepath.Join(tempDir, "seqs.aln.gz")
	_, err := ProjectFiles(ctx, refPath, samPath, gzPath, DefaultOpts, nil)
	assert.NoError(t, err)
	raw, err := ioutil.ReadFile(gzPath)
	assert.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	assert.NoError(t, err)
	data, err := ioutil.ReadAll(zr)
	assert.NoError(t, err)
	expect.EQ(t, string(data), want)
}

func TestProjectFilesUnsupported(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	refPath := filepath.Join(tempDir, "ref.fas")
	assert.NoError(t, ioutil.WriteFile(refPath, []byte(">ref\nACGTACGTAC\n"), 0644))

	for _, test := range []struct {
		aln  string
		kind errors.Kind
	}{
		{"seqs.paf", errors.NotSupported},
		{"seqs.txt", errors.Invalid},
	} {
		alnPath := filepath.Join(tempDir, test.aln)
		assert.NoError(t, ioutil.WriteFile(alnPath, []byte("x\n"), 0644))
		outPath := filepath.Join(tempDir, test.aln+".aln")
		_, err := ProjectFiles(ctx, refPath, alnPath, outPath, DefaultOpts, nil)
		require.NotNil(t, err)
		expect.True(t, errors.Is(test.kind, err), err)
		_, statErr := ioutil.ReadFile(outPath)
		expect.NotNil(t, statErr)
	}
}
