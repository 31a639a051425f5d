package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/generate"
	"clipforge/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var count int
	var aspect string

	cmd := &cobra.Command{
		Use:   "submit <video>",
		Short: "Queue a video for clip extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}
			if _, err := os.Stat(source); err != nil {
				return fmt.Errorf("input video %s is not readable: %w", source, err)
			}
			aspectW, aspectH, err := parseAspect(aspect)
			if err != nil {
				return err
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := store.CreateJob(cmd.Context(), queue.NewJobParams{
					Kind:      queue.KindClip,
					InputRef:  source,
					UnitCount: count,
					AspectW:   aspectW,
					AspectH:   aspectH,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued clip job %d (%s) for %s\n", job.ID, job.CorrelationID, source)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 3, "Number of clips to produce")
	cmd.Flags().StringVar(&aspect, "aspect", "9:16", "Target aspect ratio (W:H)")
	return cmd
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var params generate.StoryParams

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Queue a narrated video generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if params.Category == "" {
				return fmt.Errorf("--category is required")
			}
			if params.Category == "custom" && params.Content == "" {
				return fmt.Errorf("--content is required for custom stories")
			}
			payload, err := json.Marshal(params)
			if err != nil {
				return fmt.Errorf("encode story parameters: %w", err)
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := store.CreateJob(cmd.Context(), queue.NewJobParams{
					Kind:        queue.KindScene,
					InputRef:    params.Category,
					UnitCount:   1,
					PayloadJSON: string(payload),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued scene job %d (%s)\n", job.ID, job.CorrelationID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&params.Category, "category", "", "Story category (scary, mystery, bedtime, history, motivational, fun_facts, custom)")
	cmd.Flags().StringVar(&params.Title, "title", "", "Story title context")
	cmd.Flags().StringVar(&params.Description, "description", "", "Story description context")
	cmd.Flags().StringVar(&params.Content, "content", "", "Story content for the custom category")
	cmd.Flags().StringVar(&params.Style, "style", "cinematic", "Image style (photorealistic, cinematic, anime, comic-book, pixar-art)")
	cmd.Flags().StringVar(&params.Voice, "voice", "alloy", "Narration voice")
	return cmd
}

func parseAspect(value string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("aspect ratio must be W:H, got %q", value)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("aspect ratio width invalid in %q", value)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("aspect ratio height invalid in %q", value)
	}
	return w, h, nil
}
