package refcache

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/viralmsa/encoding/fasta"
)

// DefaultEfetchURL is the NCBI E-utilities efetch endpoint.
const DefaultEfetchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

// Fetcher downloads reference genomes from NCBI.
type Fetcher struct {
	// BaseURL is the efetch endpoint. Empty means DefaultEfetchURL.
	BaseURL string
	// Email identifies the user to NCBI.
	Email string
	// Client is the HTTP client. Nil means http.DefaultClient.
	Client *http.Client
}

// Fetch returns the FASTA record for the nucleotide accession acc. The
// response must hold exactly one sequence.
func (f *Fetcher) Fetch(ctx context.Context, acc string) ([]byte, error) {
	base := f.BaseURL
	if base == "" {
		base = DefaultEfetchURL
	}
	q := url.Values{}
	q.Set("db", "nucleotide")
	q.Set("rettype", "fasta")
	q.Set("retmode", "text")
	q.Set("id", acc)
	q.Set("tool", "viralmsa")
	if f.Email != "" {
		q.Set("email", f.Email)
	}
	req, err := http.NewRequest("GET", base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.E(errors.Unavailable, err, "downloading reference genome", acc, "from NCBI")
	}
	defer resp.Body.Close() // nolint: errcheck
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.E(err, "downloading reference genome", acc)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.E(errors.NotExist,
			fmt.Sprintf("NCBI returned %s for %s. Perhaps the accession number is invalid?", resp.Status, acc))
	}
	n, err := fasta.CountRecords(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("reference genome %s must have exactly 1 sequence, found %d", acc, n))
	}
	return append(bytes.TrimSpace(body), '\n'), nil
}
