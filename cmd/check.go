package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"evmconnect/pkg/models"
	"evmconnect/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkJSON bool

var errNoProvider = errors.New("no provider detected")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the configured provider without prompting",
	RunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		cfg.Global.LogLevel = level
		logger, err := newLogger(false)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		report := probe(cmd.Context(), logger)

		out := cmd.OutOrStdout()
		if checkJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Config:   %s\n", report.ConfigPath)
			fmt.Fprintf(out, "Provider: %s\n", report.ProviderURL)
			if !report.ProviderFound {
				fmt.Fprintln(out, "Injected Provider DOES NOT Exist")
			} else {
				fmt.Fprintln(out, "Injected Provider DOES Exist")
				if len(report.Accounts) == 0 {
					fmt.Fprintln(out, "Accounts: none authorized")
				}
				for _, a := range report.Accounts {
					fmt.Fprintf(out, "Account:  %s\n", a)
				}
				fmt.Fprintf(out, "Chain ID: %s (%s)\n", report.ChainID, report.ChainIDDecimal)
				events := "polling"
				if report.PushEvents {
					events = "push subscriptions"
				}
				fmt.Fprintf(out, "Events:   %s\n", events)
			}
			for _, e := range report.Errors {
				fmt.Fprintf(out, "Error: %s\n", e)
			}
		}

		if !report.ProviderFound {
			return errNoProvider
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output the report as JSON")
}

func probe(ctx context.Context, logger *zap.Logger) models.CheckReport {
	report := models.CheckReport{
		ConfigPath:  cfgPath,
		ProviderURL: cfg.Provider.URL,
	}

	gw := newGateway(logger)
	defer gw.Close()

	if !gw.Detect(ctx) {
		return report
	}
	report.ProviderFound = true
	report.PushEvents = gw.PushEvents()

	accounts, err := gw.Accounts(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("eth_accounts: %v", err))
	}
	report.Accounts = accounts

	chainID, err := gw.ChainID(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("eth_chainId: %v", err))
	}
	report.ChainID = chainID
	report.ChainIDDecimal = utils.ChainIDToDecimal(chainID)
	return report
}
