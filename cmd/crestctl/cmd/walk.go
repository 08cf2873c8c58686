package cmd

import (
	"fmt"
	"strings"

	"github.com/pilab-dev/shadow-crest/crest"
	"github.com/spf13/cobra"
)

var contentType string

var walkCmd = &cobra.Command{
	Use:   "walk <access-token> [link...]",
	Short: "Follow named links from the CREST root",
	Long: `Fetches the CREST root and follows each named link in order.
A single argument of the form a/b/c is split on slashes.

  crestctl walk $TOKEN decode character location`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[1:]
		if len(path) == 1 && strings.Contains(path[0], "/") {
			path = strings.Split(strings.Trim(path[0], "/"), "/")
		}

		walker := newWalker()
		root, err := walker.Endpoints(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading root: %w", err)
		}

		result, err := walker.Walk(cmd.Context(), args[0], root, path, crest.FetchOptions{ContentType: contentType})
		if err != nil {
			return fmt.Errorf("walking %s: %w", strings.Join(path, "/"), err)
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var locationCmd = &cobra.Command{
	Use:   "location <access-token>",
	Short: "Print the current location of the token's character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := newLocationService().GetLocation(cmd.Context(), args[0], appConfig.LocationTTL, crest.FetchOptions{})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), loc)
	},
}

func init() {
	walkCmd.Flags().StringVar(&contentType, "content-type", "", "Accept media type for the fetched resources")
}
