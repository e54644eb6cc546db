package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/ingest"
	"PenguinWatch.dashboard/internal/models"
)

func (a *app) ingestCmd() *cobra.Command {
	var (
		dir       string
		weight    float64
		threshold time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Upload the newest camera photo with a weight reading",
		Long: `ingest is the field station uploader. It picks the newest .jpg in
--image-dir that was written within --threshold and posts it with the weight
and the current local date and time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			now := a.now()
			path, err := ingest.FindRecentImage(dir, threshold, now)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			resp, err := a.client(cfg).Ingest(cmd.Context(), backend.Upload{
				Metadata:  ingest.Metadata(weight, now),
				Image:     f,
				ImageName: filepath.Base(path),
			})
			if err != nil {
				return fmt.Errorf("upload %s: %w", ingest.ImageID(path), err)
			}
			return a.print(cmd.OutOrStdout(), resp, func(w io.Writer) { printIngest(w, ingest.ImageID(path), resp) })
		},
	}
	cmd.Flags().StringVar(&dir, "image-dir", ".", "directory the camera writes photos to")
	cmd.Flags().Float64Var(&weight, "weight", 0, "measured weight in kg")
	cmd.Flags().DurationVar(&threshold, "threshold", ingest.DefaultThreshold, "maximum age of the photo")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

func printIngest(w io.Writer, imageID string, resp models.IngestResponse) {
	fmt.Fprintf(w, "Uploaded %s\n", imageID)
	if resp.Message != "" {
		fmt.Fprintf(w, "Server response: %s\n", resp.Message)
	}
}
