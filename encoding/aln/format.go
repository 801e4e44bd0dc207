package aln

import (
	"strings"
)

// Format identifies an alignment file format.
type Format int

const (
	// Unknown is an unrecognized format.
	Unknown Format = iota
	// SAM is the tab-separated text format, optionally gzipped.
	SAM
	// BAM is the binary, BGZF-compressed form of SAM.
	BAM
	// PAF is minimap2's pairwise mapping format. It carries no per-base
	// query sequence, so it cannot be projected.
	PAF
)

func (f Format) String() string {
	switch f {
	case SAM:
		return "sam"
	case BAM:
		return "bam"
	case PAF:
		return "paf"
	default:
		return "unknown"
	}
}

// ParseFormat parses the format name. "sam" returns SAM, for example. On
// error, it returns Unknown.
func ParseFormat(name string) Format {
	switch strings.ToLower(name) {
	case "sam":
		return SAM
	case "bam":
		return BAM
	case "paf":
		return PAF
	default:
		return Unknown
	}
}

// GuessFormat returns the format implied by the extension of path. A
// trailing ".gz" is ignored for SAM and PAF.
func GuessFormat(path string) Format {
	p := strings.ToLower(path)
	if strings.HasSuffix(p, ".bam") {
		return BAM
	}
	p = strings.TrimSuffix(p, ".gz")
	switch {
	case strings.HasSuffix(p, ".sam"):
		return SAM
	case strings.HasSuffix(p, ".paf"):
		return PAF
	}
	return Unknown
}
