package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/review"
	"github.com/bowerhall/tourcam/internal/storage"
)

func publishCmd() *cobra.Command {
	var listing string

	cmd := &cobra.Command{
		Use:   "publish FILE",
		Short: "Upload an existing panorama for a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read panorama: %w", err)
			}
			contentType := http.DetectContentType(data)
			if _, err := storage.Extension(contentType); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			svc, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			artifact := capture.Artifact{
				ID:          uuid.New().String(),
				ListingID:   listing,
				Image:       data,
				ContentType: contentType,
				AssembledAt: time.Now(),
			}

			coord, err := review.New(artifact, svc.store, svc.reviewOptions())
			if err != nil {
				return err
			}
			defer coord.Close()

			url, err := coord.Publish(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().StringVar(&listing, "listing", "", "listing identifier (required)")
	cmd.MarkFlagRequired("listing")

	return cmd
}
