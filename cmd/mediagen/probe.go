package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uniedit/mediagen/internal/adapter/outbound/httpprobe"
	"github.com/uniedit/mediagen/internal/app"
	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/infra/httpclient"
	"github.com/uniedit/mediagen/internal/module/media/recovery"
)

var (
	probeURL       string
	probeTaskID    string
	probeMediaType string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether a media URL is reachable, or try recovery templates for a task id",
	Example: `  mediagen probe --url https://cdn.example.com/v.mp4 --type video
  mediagen probe --task-id 3f2c9a --type video`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (probeURL == "") == (probeTaskID == "") {
			return errors.New("exactly one of --url and --task-id is required")
		}
		mediaType := media.MediaType(strings.ToLower(probeMediaType))
		if !mediaType.IsValid() {
			return fmt.Errorf("unsupported media type %q", probeMediaType)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		validator := httpprobe.NewValidator(httpclient.New(cfg.HTTPClient), httpprobe.Config{
			Timeout:           cfg.Recovery.ProbeTimeout,
			CacheTTL:          cfg.Recovery.CacheTTL,
			StrictContentType: cfg.Recovery.StrictContentType,
		}, nil)
		strategy := recovery.NewStrategy(validator, app.TemplateCandidates(cfg.Recovery.Templates), nil, nil)

		var res recovery.Result
		if probeURL != "" {
			res = strategy.RecoverByURL(cmd.Context(), probeURL, mediaType)
		} else {
			res = strategy.RecoverByTaskID(cmd.Context(), probeTaskID, mediaType)
		}

		out := cmd.OutOrStdout()
		for _, tried := range res.Tried {
			fmt.Fprintln(out, "tried", tried)
		}
		if !res.Success {
			return fmt.Errorf("not recovered: %w", res.Err)
		}
		fmt.Fprintln(out, "found", res.URL)
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeURL, "url", "", "media URL to validate")
	probeCmd.Flags().StringVar(&probeTaskID, "task-id", "", "provider task id to recover")
	probeCmd.Flags().StringVarP(&probeMediaType, "type", "t", "video", "media type: image, video or audio")
	rootCmd.AddCommand(probeCmd)
}
