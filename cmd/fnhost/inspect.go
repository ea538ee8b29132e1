package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/caffeineduck/fnhost/artifact"
	"github.com/caffeineduck/fnhost/codec"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "List the modules of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	cmd.Flags().Bool("json", false, "Print the module set as JSON")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	if err := artifact.Exists(args[0]); err != nil {
		return err
	}
	set, err := artifact.Inspect(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		b, err := codec.JSON.Marshal(set)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}

	fmt.Fprintf(out, "location: %s\n", set.Location)
	fmt.Fprintf(out, "kind:     %s\n", set.Kind)
	fmt.Fprintf(out, "digest:   %s\n", set.Digest)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tPATH\tSIZE")
	for _, m := range set.Modules {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", m.Name, m.Path, len(m.Binary))
	}
	return tw.Flush()
}
