package main

import (
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"plantime/internal/capture"
)

var snapshotFlags struct {
	server   string
	out      string
	start    string
	end      string
	pxPerDay float64
	width    int
	height   int
	timeout  time.Duration
	chrome   string
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the timeline page of a running server as PNG",
	Long: `Snapshot opens the /timeline page of a running "plantime serve" in
headless Chromium and writes a full-page PNG. Basic Auth credentials are
taken from the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := snapshotURL()
		if err != nil {
			return err
		}
		return capture.Snapshot(cmd.Context(), capture.Options{
			URL:        target,
			OutputPath: snapshotFlags.out,
			Width:      snapshotFlags.width,
			Height:     snapshotFlags.height,
			Timeout:    snapshotFlags.timeout,
			ExecPath:   snapshotFlags.chrome,
		})
	},
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVar(&snapshotFlags.server, "server", "", "Server base URL (default http://<listen>)")
	f.StringVarP(&snapshotFlags.out, "out", "o", "timeline.png", "Output PNG path")
	f.StringVar(&snapshotFlags.start, "start", "", "First displayed day (YYYY-MM-DD)")
	f.StringVar(&snapshotFlags.end, "end", "", "Last displayed day (YYYY-MM-DD)")
	f.Float64Var(&snapshotFlags.pxPerDay, "px-per-day", 0, "Timeline scale")
	f.IntVar(&snapshotFlags.width, "width", capture.DefaultWidth, "Viewport width")
	f.IntVar(&snapshotFlags.height, "height", capture.DefaultHeight, "Viewport height")
	f.DurationVar(&snapshotFlags.timeout, "timeout", capture.DefaultTimeout, "Capture timeout")
	f.StringVar(&snapshotFlags.chrome, "chrome", "", "Chromium binary (default: search PATH)")
}

func snapshotURL() (string, error) {
	base := snapshotFlags.server
	if base == "" {
		base = "http://" + cfg.Listen
	}
	q := url.Values{}
	if snapshotFlags.start != "" {
		q.Set("start", snapshotFlags.start)
	}
	if snapshotFlags.end != "" {
		q.Set("end", snapshotFlags.end)
	}
	if snapshotFlags.pxPerDay > 0 {
		q.Set("px_per_day", strconv.FormatFloat(snapshotFlags.pxPerDay, 'f', -1, 64))
	}

	var user, password string
	if cfg.BasicAuth != nil {
		user, password = cfg.BasicAuth.Username, cfg.BasicAuth.Password
	}
	return capture.TimelineURL(base, q, user, password)
}
