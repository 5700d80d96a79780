package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the documents in the corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.corpus()
			if err := c.Validate(); err != nil {
				return err
			}
			ids, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			a.log.Debug("Listed corpus", "dir", a.cfg.Corpus.Dir, "documents", len(ids))
			return nil
		},
	}
}
