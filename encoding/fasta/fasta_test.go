package fasta_test

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/viralmsa/encoding/fasta"
)

var fastaData string

func init() {
	fastaData = ">seq1\n" + "ACGTA\nCGTAC\nGT\n" + ">seq2 A viral sequence\n" + "ACGT\n" + "ACGT\n"
}

func TestGet(t *testing.T) {
	tests := []struct {
		seq   string
		start uint64
		end   uint64
		want  string
		err   error
	}{
		{"seq1", 1, 2, "C", nil},
		{"seq1", 1, 6, "CGTAC", nil},
		{"seq1", 0, 12, "ACGTACGTACGT", nil},
		{"seq1", 10, 12, "GT", nil},
		{"seq2", 0, 8, "ACGTACGT", nil},
		{"seq2", 2, 5, "GTA", nil},
		{"seq0", 0, 1, "", fmt.Errorf("sequence not found: seq0")},
		{"seq1", 10, 13, "", fmt.Errorf("invalid query range")},
		{"seq1", 4, 3, "", fmt.Errorf("start must be less than end")},
	}
	fa, err := fasta.New(strings.NewReader(fastaData))
	if err != nil {
		t.Fatalf("couldn't create Fasta: %v", err)
	}
	for _, tt := range tests {
		got, err := fa.Get(tt.seq, tt.start, tt.end)
		if (err == nil && tt.err != nil) || (err != nil && tt.err == nil) {
			t.Errorf("unexpected error: want %v, got %v", tt.err, err)
		}
		if got != tt.want {
			t.Errorf("unexpected sequence: want %s, got %s", tt.want, got)
		}
	}
}

func TestLengthAndHeader(t *testing.T) {
	fa, err := fasta.New(strings.NewReader(fastaData))
	assert.NoError(t, err)
	n, err := fa.Len("seq1")
	assert.NoError(t, err)
	expect.EQ(t, n, uint64(12))
	n, err = fa.Len("seq2")
	assert.NoError(t, err)
	expect.EQ(t, n, uint64(8))
	_, err = fa.Len("seq0")
	expect.NotNil(t, err)

	h, err := fa.Header("seq2")
	assert.NoError(t, err)
	expect.EQ(t, h, "seq2 A viral sequence")
}

func TestSeqNames(t *testing.T) {
	fa, err := fasta.New(strings.NewReader(fastaData))
	assert.NoError(t, err)
	if got, want := fa.SeqNames(), []string{"seq1", "seq2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNewErrors(t *testing.T) {
	for _, data := range []string{
		"",
		"ACGT\n>seq1\nACGT\n",
		">seq1\nACGT\n>seq1 again\nACGT\n",
	} {
		_, err := fasta.New(strings.NewReader(data))
		expect.NotNil(t, err, data)
	}
}

func TestReadReference(t *testing.T) {
	ref, err := fasta.ReadReference(strings.NewReader(">NC_045512.2 Severe acute respiratory syndrome\nACGTA\r\nCGTAC\n\nGT\n"))
	assert.NoError(t, err)
	expect.EQ(t, ref.Name, "NC_045512.2")
	expect.EQ(t, ref.Header, "NC_045512.2 Severe acute respiratory syndrome")
	expect.EQ(t, ref.Seq, "ACGTACGTACGT")
	expect.EQ(t, ref.Len(), 12)

	_, err = fasta.ReadReference(strings.NewReader(fastaData))
	expect.HasSubstr(t, err.Error(), "exactly 1 sequence")
	_, err = fasta.ReadReference(strings.NewReader(">empty\n"))
	expect.HasSubstr(t, err.Error(), "empty")
}

func TestCountRecords(t *testing.T) {
	tests := []struct {
		data string
		want int
	}{
		{"", 0},
		{fastaData, 2},
		{">a\nAC\n>b\nAC\n>c", 3},
		{">a\nAC>GT\n", 1},
		{">a\n" + strings.Repeat("A", 3<<20) + "\n>b\nC\n", 2},
	}
	for _, test := range tests {
		n, err := fasta.CountRecords(strings.NewReader(test.data))
		assert.NoError(t, err)
		expect.EQ(t, n, test.want)
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := fasta.NewWriter(&buf)
	ref := &fasta.Reference{Name: "ref", Header: "ref some description", Seq: "ACGTACGTAC"}
	assert.NoError(t, w.WriteReference(ref))
	assert.NoError(t, w.Write("read1", []byte("--ACGT-GG-")))
	expect.EQ(t, w.Records(), 2)
	expect.EQ(t, buf.String(), ">ref some description\nACGTACGTAC\n>read1\n--ACGT-GG-\n")
}

func TestGenerateIndex(t *testing.T) {
	generateIndex := func(fa string) (faidx string) {
		idx := bytes.Buffer{}
		assert.NoError(t, fasta.GenerateIndex(&idx, strings.NewReader(fa)))
		return idx.String()
	}

	fa := `>E0
GGTGAAATC
CCTGAAATC
AAAATTGCT
>E1
GTCCCTCCCCAGACATGGCCCTGGGAGGC
>E2
CCGCGCCCGCGCCCCCGCCGCC
>E3
GTCAAGGTTGCACAG
>E4
ATGAATCATGTGGTAAAA
`
	assert.EQ(t, generateIndex(fa), `E0	27	4	9	10
E1	29	38	29	30
E2	22	72	22	23
E3	15	99	15	16
E4	18	119	18	19
`)

	// MS-DOS newline encoding.
	assert.EQ(t, generateIndex(">E0\r\nGGGG\r\n>E1\r\nAAAAA\r\n"),
		`E0	4	5	4	6
E1	5	16	5	7
`)

	// No newline at the end.
	assert.EQ(t, generateIndex(">E0\nGGGG\n>E1\nCCCCC\nAAAAA"),
		`E0	4	4	4	5
E1	10	13	5	6
`)
	assert.EQ(t, generateIndex(">E0\nGGGG\n>E1\nAAAAA"),
		`E0	4	4	4	5
E1	5	13	5	5
`)

	idx := bytes.Buffer{}
	err := fasta.GenerateIndex(&idx, strings.NewReader(""))
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "empty FASTA")
}

func TestWriteIndexFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tempDir, "ref.fas")
	assert.NoError(t, ioutil.WriteFile(path, []byte(">ref\nACGT\nAC\n"), 0644))

	created, err := fasta.WriteIndexFile(ctx, path)
	assert.NoError(t, err)
	expect.True(t, created)
	data, err := ioutil.ReadFile(path + fasta.IndexSuffix)
	assert.NoError(t, err)
	expect.EQ(t, string(data), "ref\t6\t5\t4\t5\n")

	created, err = fasta.WriteIndexFile(ctx, path)
	assert.NoError(t, err)
	expect.False(t, created)
}
