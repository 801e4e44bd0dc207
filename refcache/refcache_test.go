package refcache

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "sarscov2", Normalize("SARS-CoV-2"))
	assert.Equal(t, "hcv1h77", Normalize("HCV_1 H77"))
	v, ok := LookupVirus("Sars Cov 2")
	require.True(t, ok)
	assert.Equal(t, "NC_045512", v.Accession)
	_, ok = LookupVirus("zika")
	assert.False(t, ok)
}

func TestFamilies(t *testing.T) {
	fams := Families()
	var names []string
	n := 0
	for _, f := range fams {
		names = append(names, f.Name)
		n += len(f.Viruses)
	}
	assert.Equal(t, []string{"Ebola", "HCV", "HIV", "SARS-CoV-2"}, names)
	assert.Equal(t, len(viruses), n)
	assert.Equal(t, "hiv1", fams[2].Viruses[0].Key)
	assert.Equal(t, "hiv2", fams[2].Viruses[1].Key)
}

func TestSeqHash(t *testing.T) {
	h := SeqHash("ACGT")
	assert.Len(t, h, 32)
	assert.Equal(t, h, SeqHash("ACGT"))
	assert.NotEqual(t, h, SeqHash("ACGA"))
}

func TestResolveFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	refPath := filepath.Join(tempDir, "my ref.fasta")
	require.NoError(t, ioutil.WriteFile(refPath, []byte(">x\nACGT\nAC\n"), 0644))
	c := &Cache{Dir: filepath.Join(tempDir, "cache")}

	r, err := c.Resolve(ctx, refPath)
	require.NoError(t, err)
	assert.Equal(t, "my ref.fasta_HASH_"+SeqHash("ACGTAC"), r.Name)
	assert.Equal(t, filepath.Join(c.Dir, r.Name, "my ref.fasta"), r.Path)
	data, err := ioutil.ReadFile(r.Path)
	require.NoError(t, err)
	assert.Equal(t, ">x\nACGT\nAC\n", string(data))
	assert.NoError(t, c.Fetch(ctx, r))

	multi := filepath.Join(tempDir, "multi.fas")
	require.NoError(t, ioutil.WriteFile(multi, []byte(">a\nAC\n>b\nGT\n"), 0644))
	_, err = c.Resolve(ctx, multi)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Invalid, err))
}

func TestResolveAccession(t *testing.T) {
	c := &Cache{Dir: "/cache"}
	ctx := context.Background()
	r, err := c.Resolve(ctx, "SARS-CoV-2")
	require.NoError(t, err)
	assert.Equal(t, &Ref{Name: "NC_045512", Dir: "/cache/NC_045512", Path: "/cache/NC_045512/NC_045512.fas", Accession: "NC_045512"}, r)

	r, err = c.Resolve(ctx, "mn908947.3")
	require.NoError(t, err)
	assert.Equal(t, "MN908947.3", r.Accession)

	_, err = c.Resolve(ctx, "../etc")
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	var gotQuery map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotQuery = req.URL.Query()
		switch req.URL.Query().Get("id") {
		case "NC_045512":
			_, _ = w.Write([]byte(">NC_045512.2 Severe acute respiratory syndrome coronavirus 2\nACGT\nACGT\n\n"))
		case "TWO":
			_, _ = w.Write([]byte(">a\nAC\n>b\nGT\n"))
		default:
			http.Error(w, "bad id", http.StatusBadRequest)
		}
	}))
	defer ts.Close()

	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	var lines []string
	c := &Cache{
		Dir:     tempDir,
		Fetcher: &Fetcher{BaseURL: ts.URL, Email: "user@example.com"},
		Log:     logFunc(func(s string) { lines = append(lines, s) }),
	}
	r, err := c.Resolve(ctx, "sarscov2")
	require.NoError(t, err)
	require.NoError(t, c.Fetch(ctx, r))
	assert.Equal(t, "user@example.com", gotQuery["email"][0])
	assert.Equal(t, "fasta", gotQuery["rettype"][0])
	data, err := ioutil.ReadFile(r.Path)
	require.NoError(t, err)
	assert.Equal(t, ">NC_045512.2 Severe acute respiratory syndrome coronavirus 2\nACGT\nACGT\n", string(data))
	assert.Equal(t, []string{"Downloading reference genome from NCBI...", "Reference genome downloaded: " + r.Path}, lines)

	// Cached now.
	require.NoError(t, c.Fetch(ctx, r))
	assert.Equal(t, "Reference genome found: "+r.Path, lines[len(lines)-1])

	r, err = c.Resolve(ctx, "two")
	require.NoError(t, err)
	err = c.Fetch(ctx, r)
	assert.True(t, errors.Is(errors.Invalid, err))
	_, statErr := os.Stat(r.Path)
	assert.True(t, os.IsNotExist(statErr))

	r, err = c.Resolve(ctx, "nope")
	require.NoError(t, err)
	err = c.Fetch(ctx, r)
	assert.True(t, errors.Is(errors.NotExist, err))
}

type logFunc func(string)

func (f logFunc) Printf(format string, v ...interface{}) {
	f(fmt.Sprintf(format, v...))
}
