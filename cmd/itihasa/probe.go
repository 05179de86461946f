package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/providers"
)

var (
	probeProvider string
	probeModel    string
	probeCalls    int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send a few minimal requests and show the provider's rate-limit headers",
	Long: `Probe sends up to 5 concurrent one-token requests to the provider and
reports the x-ratelimit-* and retry-after headers it returns. Use it to
choose rate_limit and pass_delay_seconds before a long batch.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		name := probeProvider
		if name == "" {
			name = a.cfg().Defaults.LLMProvider
		}
		client, err := a.llmClient(name)
		if err != nil {
			return err
		}
		rep, err := providers.Probe(cmd.Context(), client, probeModel, probeCalls)
		if err != nil {
			return err
		}
		return api.Output(rep)
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeProvider, "provider", "", "LLM provider (default from config)")
	probeCmd.Flags().StringVar(&probeModel, "model", "", "Model override")
	probeCmd.Flags().IntVarP(&probeCalls, "calls", "n", 3, "Number of requests (max 5)")
	rootCmd.AddCommand(probeCmd)
}
