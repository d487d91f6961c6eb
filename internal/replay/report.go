package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// Report prints the per-frame totals and the summary of res.
func Report(w io.Writer, cfg *Config, res Result) {
	if cfg.Verbose {
		for _, s := range res.Steps {
			mark := ""
			switch {
			case s.Held:
				mark = "  held"
			case s.Rejected > 0:
				mark = fmt.Sprintf("  %d rejected", s.Rejected)
			}
			_, _ = fmt.Fprintf(w, "frame %4d  raw %9s  smoothed %9s%s\n",
				s.Seq, humanize.Comma(int64(s.Raw)), humanize.Comma(int64(s.Smoothed)), mark)
		}
	}

	rejected, held := 0, 0
	for _, s := range res.Steps {
		rejected += s.Rejected
		if s.Held {
			held++
		}
	}
	_, _ = fmt.Fprintf(w, "%s frames, %s outliers rejected, %d held\n",
		humanize.Comma(int64(len(res.Steps))), humanize.Comma(int64(rejected)), held)
	_, _ = fmt.Fprintf(w, "combat power %s (peak %s)\n", humanize.Comma(int64(res.Final)), humanize.Comma(int64(res.Peak)))
	if cfg.BaseURL != "" {
		_, _ = fmt.Fprintf(w, "server       %s (peak %s)\n", humanize.Comma(int64(res.Server)), humanize.Comma(int64(res.ServerPeak)))
	}
	if res.SavedID != 0 {
		_, _ = fmt.Fprintf(w, "saved as #%d, %s place\n", res.SavedID, humanize.Ordinal(res.Rank))
	}
	if res.Duration > 0 {
		_, _ = fmt.Fprintf(w, "took %s\n", res.Duration.Round(time.Millisecond))
	}
}
