package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/theOGognf/finagg/internal/errors"
)

var beaDataParams []string

var beaCmd = &cobra.Command{
	Use:   "bea",
	Short: "Query the Bureau of Economic Analysis API",
	Long: `Query the BEA API through the shared bea guard
(90 requests, 20 errors and 90MB per minute by default).

Requires credentials.bea_api_key or BEA_API_KEY.`,
}

var beaDatasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List BEA datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.guards.BEA()
		if err != nil {
			return err
		}
		datasets, err := client.GetDatasetList(cmd.Context())
		if err != nil {
			return err
		}
		return writeRecords(cmd.OutOrStdout(), datasets, "DatasetName", "DatasetDescription")
	},
}

var beaParametersCmd = &cobra.Command{
	Use:   "parameters <dataset>",
	Short: "List the parameters of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.guards.BEA()
		if err != nil {
			return err
		}
		params, err := client.GetParameterList(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeRecords(cmd.OutOrStdout(), params,
			"ParameterName", "ParameterDataType", "ParameterIsRequiredFlag", "ParameterDescription")
	},
}

var beaValuesCmd = &cobra.Command{
	Use:   "values <dataset> <parameter>",
	Short: "List the accepted values of a dataset parameter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.guards.BEA()
		if err != nil {
			return err
		}
		values, err := client.GetParameterValues(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return writeRecords(cmd.OutOrStdout(), values)
	},
}

var beaDataCmd = &cobra.Command{
	Use:   "data <dataset>",
	Short: "Fetch data from a dataset",
	Long: `Fetch data from a BEA dataset. Repeat --param for each dataset
parameter; comma-separated values are sent as a list.

Example:
  finagg bea data NIPA --param TableName=T20405 --param Frequency=Q --param Year=2020,2021`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseKeyValues(beaDataParams)
		if err != nil {
			return err
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.guards.BEA()
		if err != nil {
			return err
		}
		records, err := client.GetData(cmd.Context(), args[0], params)
		if err != nil {
			return err
		}
		return writeRecords(cmd.OutOrStdout(), records)
	},
}

// parseKeyValues turns repeated key=v1,v2 flags into list parameters.
func parseKeyValues(pairs []string) (map[string][]string, error) {
	params := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("invalid parameter %q (expected key=value)", pair))
		}
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				params[key] = append(params[key], v)
			}
		}
	}
	return params, nil
}

func init() {
	beaDataCmd.Flags().StringArrayVarP(&beaDataParams, "param", "p", nil, "Dataset parameter as key=value (repeatable)")

	beaCmd.AddCommand(beaDatasetsCmd, beaParametersCmd, beaValuesCmd, beaDataCmd)
	rootCmd.AddCommand(beaCmd)
}
