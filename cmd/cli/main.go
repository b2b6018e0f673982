package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/commissions/internal/adapter/http/dto"
	"github.com/iho/commissions/internal/allocation"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/infrastructure/logger"
	"github.com/iho/commissions/internal/infrastructure/postgres"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "commissions-cli",
		Short:         "Commission reconciliation CLI",
		Long:          `A command line interface for previewing role splits and driving the commission reconciliation API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the commissions API")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	root.AddCommand(splitCmd(), regenerateCmd(), disputesCmd(), migrateCmd())
	return root
}

func splitCmd() *cobra.Command {
	var (
		amount    string
		tablePath string
	)

	cmd := &cobra.Command{
		Use:   "split CODE...",
		Short: "Preview the role split of an amount locally",
		Args:  cobra.RangeArgs(0, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := domain.ParseAmount(amount)
			if err != nil {
				return err
			}

			table := allocation.DefaultRuleTable()
			if tablePath != "" {
				if table, err = allocation.LoadRuleTable(tablePath); err != nil {
					return err
				}
			}

			cents := domain.CentsFromDecimal(value)
			res, err := allocation.New(table).Split(cents, args)
			if err != nil {
				return err
			}

			printJSON(dto.SplitPreviewFromResult(cents, res))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Commission amount, e.g. 1,234.50 or (12.00)")
	cmd.Flags().StringVar(&tablePath, "rules", "", "Optional YAML rule table")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func regenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate PERIOD",
		Short: "Rebuild a period's seller statements from its statements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.RegenerateReportResponse
			if err := doJSON(http.MethodPost, "/api/v1/periods/"+args[0]+"/regenerate", nil, &report); err != nil {
				return err
			}

			fmt.Printf("Period %s regenerated\n", report.Period)
			fmt.Printf("Statements: %d (excluded %d)\n", report.Statements, len(report.Excluded))
			fmt.Printf("Matched rows: %d, unmatched rows: %d\n", report.MatchedRows, report.UnmatchedRows)
			fmt.Printf("Seller statements: %d\n", report.Groups)
			for _, id := range report.Excluded {
				fmt.Printf("  excluded %s\n", id)
			}
			for _, id := range report.Superseded {
				fmt.Printf("  superseded %s\n", id)
			}
			return nil
		},
	}
}

func disputesCmd() *cobra.Command {
	var prior string

	cmd := &cobra.Command{
		Use:   "disputes PERIOD",
		Short: "Run dispute detection for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if prior != "" {
				body = dto.DetectDisputesRequest{PriorPeriod: prior}
			}

			var disputes []dto.DisputeResponse
			if err := doJSON(http.MethodPost, "/api/v1/periods/"+args[0]+"/disputes/detect", body, &disputes); err != nil {
				return err
			}

			printDisputes(disputes)
			return nil
		},
	}

	cmd.Flags().StringVar(&prior, "prior", "", "Prior period for changed-rate comparison (YYYY-MM)")
	return cmd
}

func migrateCmd() *cobra.Command {
	var (
		databaseURL string
		path        string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.PersistentFlags().StringVar(&path, "path", "migrations", "Migrations directory")

	log := logger.New(logger.Config{Format: "console", Output: os.Stderr})

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return postgres.NewMigrator(databaseURL, path, log).Up()
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return postgres.NewMigrator(databaseURL, path, log).Down()
			},
		},
	)
	return cmd
}

func doJSON(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimRight(baseURL, "/")+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return fmt.Errorf("request failed (status %d): %s: %s", resp.StatusCode, apiErr.Error, apiErr.Message)
			}
			return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, truncate(string(data), 200))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func printDisputes(disputes []dto.DisputeResponse) {
	if len(disputes) == 0 {
		fmt.Println("No disputes")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tBILLING ITEM\tACCOUNT\tAMOUNT\tEXPLANATION")
	for _, d := range disputes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Type, d.BillingItem, truncate(d.AccountName, 30), d.Amount, truncate(d.Explanation, 60))
	}
	_ = tw.Flush()
	fmt.Printf("%d disputes\n", len(disputes))
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
