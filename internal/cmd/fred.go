package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theOGognf/finagg/internal/api/fred"
	apperrors "github.com/theOGognf/finagg/internal/errors"
)

var (
	fredParams   []string
	fredChildren bool
	fredSeries   bool
	fredAll      bool
)

var fredCmd = &cobra.Command{
	Use:   "fred",
	Short: "Query the Federal Reserve Economic Data API",
	Long: `Query FRED through the shared fred guard (120 requests per minute by default).

Requires credentials.fred_api_key or FRED_API_KEY. Extra query parameters are
passed with --param key=value; realtime_start=0 and observation_end=-1 expand
to the earliest and latest dates FRED accepts.`,
}

var fredSeriesCmd = &cobra.Command{
	Use:   "series <series_id>",
	Short: "Show series metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFRED(cmd, func(client *fred.Client, params fred.Params) (any, []string, error) {
			records, err := client.Series(cmd.Context(), args[0], params)
			return records, []string{"id", "title", "frequency", "units", "observation_start", "observation_end"}, err
		})
	},
}

var fredObservationsCmd = &cobra.Command{
	Use:   "observations <series_id>",
	Short: "Fetch series observations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFRED(cmd, func(client *fred.Client, params fred.Params) (any, []string, error) {
			observations, err := client.SeriesObservations(cmd.Context(), args[0], params)
			return observations, []string{"date", "value", "realtime_start", "realtime_end"}, err
		})
	},
}

var fredCategoryCmd = &cobra.Command{
	Use:   "category <category_id>",
	Short: "Show a category, its children or its series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return runFRED(cmd, func(client *fred.Client, params fred.Params) (any, []string, error) {
			switch {
			case fredChildren:
				records, err := client.CategoryChildren(cmd.Context(), id, params)
				return records, []string{"id", "name", "parent_id"}, err
			case fredSeries:
				records, err := client.CategorySeries(cmd.Context(), id, params)
				return records, []string{"id", "title", "frequency", "units"}, err
			}
			records, err := client.Category(cmd.Context(), id)
			return records, []string{"id", "name", "parent_id"}, err
		})
	},
}

var fredReleaseCmd = &cobra.Command{
	Use:   "release [release_id]",
	Short: "Show a release, or every release with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFRED(cmd, func(client *fred.Client, params fred.Params) (any, []string, error) {
			columns := []string{"id", "name", "press_release", "link"}
			if fredAll || len(args) == 0 {
				records, err := client.Releases(cmd.Context(), params)
				return records, columns, err
			}
			id, err := parseID(args[0])
			if err != nil {
				return nil, nil, err
			}
			records, err := client.Release(cmd.Context(), id, params)
			return records, columns, err
		})
	},
}

var fredSourceCmd = &cobra.Command{
	Use:   "source [source_id]",
	Short: "Show a source, or every source with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFRED(cmd, func(client *fred.Client, params fred.Params) (any, []string, error) {
			columns := []string{"id", "name", "link"}
			if fredAll || len(args) == 0 {
				records, err := client.Sources(cmd.Context(), params)
				return records, columns, err
			}
			id, err := parseID(args[0])
			if err != nil {
				return nil, nil, err
			}
			records, err := client.Source(cmd.Context(), id, params)
			return records, columns, err
		})
	},
}

var fredTagsCmd = &cobra.Command{
	Use:   "tags [tag_name...]",
	Short: "List tags, or the tags related to the given ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFRED(cmd, func(client *fred.Client, params fred.Params) (any, []string, error) {
			columns := []string{"name", "group_id", "popularity", "series_count"}
			if len(args) > 0 {
				records, err := client.RelatedTags(cmd.Context(), args, params)
				return records, columns, err
			}
			records, err := client.Tags(cmd.Context(), params)
			return records, columns, err
		})
	},
}

func runFRED(cmd *cobra.Command, fetch func(client *fred.Client, params fred.Params) (any, []string, error)) error {
	params, err := parseFREDParams(fredParams)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := s.guards.FRED()
	if err != nil {
		return err
	}
	value, columns, err := fetch(client, params)
	if err != nil {
		return err
	}
	return writeRecords(cmd.OutOrStdout(), value, columns...)
}

// parseFREDParams types key=value flags the way fred.Params expects:
// integers and booleans are converted and comma lists become slices.
func parseFREDParams(pairs []string) (fred.Params, error) {
	raw, err := parseKeyValues(pairs)
	if err != nil {
		return nil, err
	}
	params := fred.Params{}
	for key, values := range raw {
		if len(values) != 1 {
			params[key] = values
			continue
		}
		value := values[0]
		if n, err := strconv.Atoi(value); err == nil {
			params[key] = n
		} else if b, err := strconv.ParseBool(value); err == nil {
			params[key] = b
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func parseID(value string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || id < 0 {
		return 0, apperrors.NewInvalidInputError("expected a non-negative integer id, got " + strconv.Quote(value))
	}
	return id, nil
}

func init() {
	fredCmd.PersistentFlags().StringArrayVarP(&fredParams, "param", "p", nil, "Query parameter as key=value (repeatable)")
	fredCategoryCmd.Flags().BoolVar(&fredChildren, "children", false, "List child categories")
	fredCategoryCmd.Flags().BoolVar(&fredSeries, "series", false, "List series in the category")
	fredCategoryCmd.MarkFlagsMutuallyExclusive("children", "series")
	fredReleaseCmd.Flags().BoolVar(&fredAll, "all", false, "List every release")
	fredSourceCmd.Flags().BoolVar(&fredAll, "all", false, "List every source")

	fredCmd.AddCommand(fredSeriesCmd, fredObservationsCmd, fredCategoryCmd, fredReleaseCmd, fredSourceCmd, fredTagsCmd)
	rootCmd.AddCommand(fredCmd)
}
