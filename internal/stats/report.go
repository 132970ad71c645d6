package stats

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// WriteReport печатает таблицу статистики и таблицу отказов
func WriteReport(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Name\t# reqs\t# pass\t# fails\t# none\t# slo\tavg\tmin\tmax\tp50\tp95\tp99\treq/s\n")
	for _, e := range r.Entries {
		writeRow(tw, e)
	}
	fmt.Fprintf(tw, "\t\t\t\t\t\t\t\t\t\t\t\t\n")
	writeRow(tw, r.Total)
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if len(r.Failures) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nFailures:\n")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "# occurrences\tName\tMessage\n")
	for _, f := range r.Failures {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", f.Count, f.Name, f.Message)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write failures: %w", err)
	}
	return nil
}

func writeRow(w io.Writer, e EntryStats) {
	fmt.Fprintf(w, "%s\t%d\t%d\t%d(%.2f%%)\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
		e.Name, e.Requests, e.Passes, e.Failures, e.FailureRate()*100, e.NoVerdict, e.SLOExceeded,
		ms(e.Mean), ms(e.Min), ms(e.Max), ms(e.P50), ms(e.P95), ms(e.P99), e.RPS)
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
