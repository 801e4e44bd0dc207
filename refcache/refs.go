package refcache

import (
	"sort"
	"strings"
)

// Virus is a built-in reference genome.
type Virus struct {
	// Key is the normalized shorthand, e.g. "sarscov2".
	Key string
	// Accession is the NCBI nucleotide accession.
	Accession string
	// Family groups related viruses when listing.
	Family      string
	Description string
}

var viruses = []Virus{
	{"bombalivirus", "NC_039345", "Ebola", "Bombali Virus (Bombali ebolavirus)"},
	{"bundibugyovirus", "NC_014373", "Ebola", "Bundibugyo Virus (Bundibugyo ebolavirus)"},
	{"ebolavirus", "NC_002549", "Ebola", "Ebola Virus (Zaire ebolavirus)"},
	{"restonvirus", "NC_004161", "Ebola", "Reston Virus (Reston ebolavirus)"},
	{"sudanvirus", "NC_006432", "Ebola", "Sudan Virus (Sudan ebolavirus)"},
	{"taiforestvirus", "NC_014372", "Ebola", "Tai Forest Virus (Tai Forest ebolavirus, Cote d'Ivoire ebolavirus)"},
	{"hcv1", "NC_004102", "HCV", "HCV genotype 1"},
	{"hcv1h77", "NC_038882", "HCV", "HCV genotype 1 (isolate H77)"},
	{"hcv2", "NC_009823", "HCV", "HCV genotype 2"},
	{"hcv3", "NC_009824", "HCV", "HCV genotype 3"},
	{"hcv4", "NC_009825", "HCV", "HCV genotype 4"},
	{"hcv5", "NC_009826", "HCV", "HCV genotype 5"},
	{"hcv6", "NC_009827", "HCV", "HCV genotype 6"},
	{"hcv7", "NC_030791", "HCV", "HCV genotype 7"},
	{"hiv1", "NC_001802", "HIV", "HIV-1"},
	{"hiv2", "NC_001722", "HIV", "HIV-2"},
	{"sarscov2", "NC_045512", "SARS-CoV-2", "SARS-CoV-2 (COVID-19)"},
}

var byKey = func() map[string]*Virus {
	m := make(map[string]*Virus, len(viruses))
	for i := range viruses {
		m[viruses[i].Key] = &viruses[i]
	}
	return m
}()

// Normalize folds a user-supplied virus name into a shorthand key: it is
// lower-cased, and spaces, '-' and '_' are removed. "SARS-CoV-2" becomes
// "sarscov2".
func Normalize(name string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(name))
}

// LookupVirus returns the built-in virus for name, if any.
func LookupVirus(name string) (Virus, bool) {
	v, ok := byKey[Normalize(name)]
	if !ok {
		return Virus{}, false
	}
	return *v, true
}

// Family is a group of viruses.
type Family struct {
	Name    string
	Viruses []Virus
}

// Families returns the built-in viruses grouped by family. Families and
// the viruses in each are sorted by name.
func Families() []Family {
	idx := map[string]int{}
	var fams []Family
	for _, v := range viruses {
		i, ok := idx[v.Family]
		if !ok {
			i = len(fams)
			idx[v.Family] = i
			fams = append(fams, Family{Name: v.Family})
		}
		fams[i].Viruses = append(fams[i].Viruses, v)
	}
	sort.Slice(fams, func(i, j int) bool { return fams[i].Name < fams[j].Name })
	for _, f := range fams {
		sort.Slice(f.Viruses, func(i, j int) bool { return f.Viruses[i].Key < f.Viruses[j].Key })
	}
	return fams
}
