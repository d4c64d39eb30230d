package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SessionSummary holds the figures printed when a call ends.
type SessionSummary struct {
	Room            string
	Role            string
	Duration        time.Duration
	Reconnects      int
	DominantEmotion string
	VocalStatus     string
}

// RenderSessionSummary prints the end-of-call table.
func RenderSessionSummary(title string, summary SessionSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter

	t.AppendRows([]table.Row{
		{"Room", summary.Room},
		{"Role", summary.Role},
		{"Duration", summary.Duration.Round(time.Second)},
		{"Reconnects", summary.Reconnects},
	})
	if summary.DominantEmotion != "" {
		t.AppendRow(table.Row{"Dominant Emotion", summary.DominantEmotion})
	}
	if summary.VocalStatus != "" {
		t.AppendRow(table.Row{"Vocal Status", summary.VocalStatus})
	}

	fmt.Println()
	t.Render()
}
