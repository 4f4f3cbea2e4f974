package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

type BenchResult struct {
	File     string
	Format   string
	Duration time.Duration
	Answer   int
	Err      error
	Size     int64
}

type Agg struct {
	Count      int
	Failed     int
	Total      time.Duration
	TotalBytes int64
}

func aggregate(results []BenchResult) map[string]Agg {
	m := map[string]Agg{}
	for _, r := range results {
		a := m[r.Format]
		if r.Err != nil {
			a.Failed++
			m[r.Format] = a
			continue
		}
		a.Count++
		a.TotalBytes += r.Size
		a.Total += r.Duration
		m[r.Format] = a
	}
	return m
}

func printMarkdown(w io.Writer, results []BenchResult) {
	fmt.Fprint(w, "\n## Benchmark Results\n\n")
	fmt.Fprintln(w, "| Format | Requests | Failed | Avg Time | Total Time | Avg File Size |")
	fmt.Fprintln(w, "|--------|----------|--------|----------|------------|---------------|")

	agg := aggregate(results)
	formats := make([]string, 0, len(agg))
	for format := range agg {
		formats = append(formats, format)
	}
	sort.Strings(formats)

	var (
		totalCount    int
		totalFailed   int
		totalDuration time.Duration
		totalBytes    int64
	)

	for _, format := range formats {
		a := agg[format]
		totalFailed += a.Failed
		if a.Count == 0 {
			fmt.Fprintf(w, "| %s | 0 | %d | - | - | - |\n", format, a.Failed)
			continue
		}
		avg := a.Total / time.Duration(a.Count)
		avgSize := a.TotalBytes / int64(a.Count)
		fmt.Fprintf(w, "| %s | %d | %d | %v | %v | %s |\n",
			format,
			a.Count,
			a.Failed,
			avg.Round(time.Millisecond),
			a.Total.Round(time.Millisecond),
			humanize.IBytes(uint64(avgSize)),
		)
		totalCount += a.Count
		totalDuration += a.Total
		totalBytes += a.TotalBytes
	}

	if totalCount > 0 {
		mean := totalDuration / time.Duration(totalCount)
		avgSize := totalBytes / int64(totalCount)
		fmt.Fprintf(w, "| **ALL** | %d | %d | %v | %v | %s |\n",
			totalCount,
			totalFailed,
			mean.Round(time.Millisecond),
			totalDuration.Round(time.Millisecond),
			humanize.IBytes(uint64(avgSize)),
		)
	}
}
