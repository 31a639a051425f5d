package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/storage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var withLinks bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job and its produced outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("job id must be numeric, got %q", args[0])
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:         %d (%s)\n", job.ID, job.CorrelationID)
				fmt.Fprintf(out, "Kind:        %s\n", job.Kind)
				fmt.Fprintf(out, "Status:      %s\n", job.Status)
				fmt.Fprintf(out, "Progress:    %.0f%% %s\n", job.Progress, job.CurrentStep)
				fmt.Fprintf(out, "Input:       %s\n", job.InputRef)
				fmt.Fprintf(out, "Created:     %s\n", job.CreatedAt.Local().Format(time.DateTime))
				if d := job.ProcessingDuration(); d > 0 {
					fmt.Fprintf(out, "Processing:  %s\n", d.Round(time.Second))
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:       %s\n", job.ErrorMessage)
				}

				units, err := store.Units(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				if len(units) == 0 {
					return nil
				}

				var gateway storage.Gateway
				if withLinks {
					gateway, err = storage.NewGateway(cfg, logging.NewNop())
					if err != nil {
						return err
					}
				}

				rows := make([][]string, 0, len(units))
				for _, unit := range units {
					asset := unit.AssetURI
					if gateway != nil {
						ttl := time.Duration(cfg.Storage.SignedURLTTL) * time.Second
						if signed, err := gateway.SignedURL(cmd.Context(), unit.AssetURI, ttl); err == nil {
							asset = signed
						}
					}
					rows = append(rows, []string{
						strconv.Itoa(unit.Index),
						fmt.Sprintf("%.1fs", unit.Start),
						fmt.Sprintf("%.1fs", unit.End),
						formatBytes(unit.SizeBytes),
						unit.Preview,
						asset,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Start", "End", "Size", "Preview", "Asset"}, rows,
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withLinks, "links", false, "Resolve signed download URLs for assets")
	return cmd
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
