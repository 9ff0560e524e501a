package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"plantime/internal/dates"
	"plantime/internal/ics"
	appLog "plantime/internal/log"
	"plantime/internal/render"
	"plantime/internal/store"
	"plantime/internal/timeline"
	"plantime/internal/worker"
)

// viewFlags are shared by layout and render.
type viewFlags struct {
	start    string
	end      string
	pxPerDay float64
	offline  bool
	out      string
}

var (
	layoutFlags viewFlags
	renderFlags viewFlags
	lookupIn    string
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the computed timeline layout as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, _, err := computeLayout(cmd.Context(), layoutFlags)
		if err != nil {
			return err
		}
		return writeOutput(layoutFlags.out, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(l)
		})
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the timeline as SVG",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, title, err := computeLayout(cmd.Context(), renderFlags)
		if err != nil {
			return err
		}
		return writeOutput(renderFlags.out, func(w io.Writer) error {
			return render.SVG(w, l, title, render.DefaultStyle())
		})
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Answer a PROCESS_CALENDARS message from a file or stdin",
	Long: `Lookup reads one PROCESS_CALENDARS JSON message and writes the
CALENDARS_PROCESSED reply to stdout. Malformed input yields an empty mapping.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if lookupIn == "" || lookupIn == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(lookupIn)
		}
		if err != nil {
			return fmt.Errorf("read lookup request: %w", err)
		}

		pool := worker.NewPool(worker.Options{Workers: 1})
		defer pool.Close()

		out, err := pool.HandleMessage(cmd.Context(), data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	for _, c := range []struct {
		cmd   *cobra.Command
		flags *viewFlags
	}{{layoutCmd, &layoutFlags}, {renderCmd, &renderFlags}} {
		c.cmd.Flags().StringVar(&c.flags.start, "start", "", "First displayed day (YYYY-MM-DD), default from config")
		c.cmd.Flags().StringVar(&c.flags.end, "end", "", "Last displayed day (YYYY-MM-DD), default from config")
		c.cmd.Flags().Float64Var(&c.flags.pxPerDay, "px-per-day", 0, "Timeline scale, default from config")
		c.cmd.Flags().BoolVar(&c.flags.offline, "offline", false, "Skip holiday feeds; use only the plan's calendars")
		c.cmd.Flags().StringVarP(&c.flags.out, "out", "o", "", "Output file (default stdout)")
	}
	lookupCmd.Flags().StringVarP(&lookupIn, "in", "i", "", "Request file (default stdin)")
}

// viewConfig resolves the flags against the config defaults.
func viewConfig(f viewFlags, now time.Time) (timeline.Config, error) {
	loc := cfg.Location()
	start, end := cfg.Range(now)
	if f.start != "" {
		t, err := dates.ParseISODate(f.start, loc)
		if err != nil {
			return timeline.Config{}, fmt.Errorf("--start: %w", err)
		}
		start = t
	}
	if f.end != "" {
		t, err := dates.ParseISODate(f.end, loc)
		if err != nil {
			return timeline.Config{}, fmt.Errorf("--end: %w", err)
		}
		end = t
	}
	px := cfg.PxPerDay
	if f.pxPerDay > 0 {
		px = f.pxPerDay
	}
	return timeline.Config{
		Start:     start,
		End:       end,
		PxPerDay:  px,
		WeekStart: cfg.Weekday(),
		Today:     now,
		Location:  loc,
	}, nil
}

// computeLayout loads the plan and feeds once and lays them out. The
// returned title is the plan name.
func computeLayout(ctx context.Context, f viewFlags) (timeline.Layout, string, error) {
	view, err := viewConfig(f, time.Now())
	if err != nil {
		return timeline.Layout{}, "", err
	}

	var st *store.Store
	if f.offline {
		st = store.New(cfg, nil)
	} else {
		st = store.New(cfg, ics.NewFetcher(cfg.CacheDir, nil))
	}
	if err := st.Refresh(ctx); err != nil {
		appLog.Error("refresh incomplete", err)
	}

	pl := st.Plan()
	title := pl.Name
	if title == "" {
		title = "Release timeline"
	}
	l := timeline.Build(view, timeline.Input{Phases: pl.Phases, References: pl.References})
	for _, r := range l.Rejected {
		appLog.Info("phase not drawn", "phase", r.PhaseID, "reason", r.Reason)
	}
	if l.TotalDays == 0 {
		return l, title, nil
	}

	pool := worker.NewPool(worker.Options{Workers: 1})
	defer pool.Close()
	resp, err := pool.Process(ctx, l.LookupRequest(st.Calendars()))
	if err != nil {
		return l, title, fmt.Errorf("calendar lookup: %w", err)
	}
	l.CalendarDays = resp.CalendarDaysMap
	return l, title, nil
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("output written", "path", path)
	return nil
}
