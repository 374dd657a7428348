package main

import (
	"fmt"
	"io"

	"IRIS-Agents/internal/timeline"
	"IRIS-Agents/internal/workflow"
)

// progressPrinter 逐行打印时间线中新出现或状态变化的条目。
type progressPrinter struct {
	out  io.Writer
	seen map[string]timeline.Status
	run  string
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, seen: make(map[string]timeline.Status)}
}

func (p *progressPrinter) Observe(s workflow.Snapshot) {
	if s.RunID != p.run {
		p.run = s.RunID
		p.seen = make(map[string]timeline.Status)
	}
	for _, entry := range s.Entries {
		key := entry.ID + "\x00" + entry.Detail
		if p.seen[key] == entry.Status {
			continue
		}
		p.seen[key] = entry.Status
		fmt.Fprintln(p.out, formatEntry(entry))
	}
	switch s.Status {
	case workflow.StatusInterrupted:
		fmt.Fprintln(p.out, "connection closed before a response arrived")
	case workflow.StatusCancelled:
		fmt.Fprintln(p.out, "cancelled")
	}
}

func formatEntry(entry timeline.Entry) string {
	switch entry.Status {
	case timeline.StatusResponse:
		return fmt.Sprintf("\n%s\n%s", entry.Title, entry.Detail)
	default:
		return fmt.Sprintf("%-12s %s: %s", "["+string(entry.Status)+"]", entry.Title, entry.Detail)
	}
}
