package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/CodePrep/backend/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	var challenges bool

	cmd := &cobra.Command{
		Use:   "catalog [PATH_ID]",
		Short: "List learning paths, one path's questions, or coding challenges",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("catalog")
			cat, err := catalog.Load(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case challenges:
				listQuestions(out, cat.CodingChallenges())
				return nil
			case len(args) == 1:
				p, err := cat.Path(args[0])
				if err != nil {
					return err
				}
				for _, topic := range p.Topics {
					fmt.Fprintf(out, "%s\n", topic.Title)
					listQuestions(out, topic.Questions)
				}
				return nil
			default:
				listPaths(out, cat.Paths())
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&challenges, "challenges", false, "List coding challenges across every path")
	return cmd
}

func listPaths(w io.Writer, paths []catalog.LearningPath) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTOPICS\tQUESTIONS")
	for _, p := range paths {
		n := 0
		for _, t := range p.Topics {
			n += len(t.Questions)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", p.ID, p.Title, len(p.Topics), n)
	}
	_ = tw.Flush()
}

func listQuestions(w io.Writer, questions []catalog.Question) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, q := range questions {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", q.ID, q.Type, q.Question)
	}
	_ = tw.Flush()
}
