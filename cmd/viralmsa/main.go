// viralmsa builds reference-guided multiple sequence alignments of viral
// genomes.
//
// Usage: viralmsa run -s seqs.fas -r SARS-CoV-2 -e you@example.com -o out
package main

import "github.com/grailbio/viralmsa/cmd/viralmsa/cmd"

func main() {
	cmd.Run()
}
