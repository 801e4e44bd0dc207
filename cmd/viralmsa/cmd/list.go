package cmd

import (
	"fmt"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/viralmsa/aligner"
	"github.com/grailbio/viralmsa/refcache"
	"v.io/x/lib/cmdline"
)

func newCmdAligners() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "aligners",
		Short: "List the supported aligners",
	}
	cite := cmd.Flags.Bool("citations", false, "Print the citation of each aligner")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return listAligners(env.Stdout, *cite)
	})
	return cmd
}

func listAligners(out io.Writer, cite bool) error {
	w := tsv.NewWriter(out)
	for _, name := range aligner.Names() {
		t, err := aligner.Lookup(name)
		if err != nil {
			return err
		}
		w.WriteString(t.Name)
		w.WriteString(t.Display)
		if cite {
			w.WriteString(t.Citation)
		}
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

func newCmdRefs() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "refs",
		Short: "List the virus shorthands accepted by \"run -r\"",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return listRefs(env.Stdout)
	})
	return cmd
}

func listRefs(out io.Writer) error {
	for _, fam := range refcache.Families() {
		fmt.Fprintf(out, "=== %s ===\n", fam.Name)
		w := tsv.NewWriter(out)
		for _, v := range fam.Viruses {
			w.WriteString(v.Key)
			w.WriteString(v.Accession)
			w.WriteString(v.Description)
			if err := w.EndLine(); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
