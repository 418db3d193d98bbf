package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eringen/storyengine/oracle"
)

func draftCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "draft <title>",
		Short: "Suggest a description, keywords and filter tags for a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			d, err := app.Draft(cmd.Context(), strings.Join(args, " "))
			var perr *oracle.ParseError
			if errors.As(err, &perr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			} else if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
}
