package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"smartassist/internal/gateway"
	"smartassist/internal/ratelimit"
	"smartassist/internal/robustness"
	"smartassist/internal/tasks"
)

// Renderer formats gateway, limiter and task state for the terminal.
type Renderer struct {
	styles   *Styles
	markdown *glamour.TermRenderer
}

// NewRenderer creates a renderer. Markdown falls back to plain text when the
// glamour renderer cannot be built.
func NewRenderer(wordWrap int) *Renderer {
	md, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wordWrap),
	)
	return &Renderer{styles: DefaultStyles(), markdown: md}
}

// Markdown renders a model reply.
func (r *Renderer) Markdown(text string) string {
	if r.markdown == nil {
		return text
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n") + "\n"
}

type column struct {
	title string
	width int
}

func (r *Renderer) table(title string, cols []column, rows [][]string, styleRow func(i int) lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(r.styles.Title.Render(title))
	b.WriteString("\n")

	for i, c := range cols {
		b.WriteString(r.styles.Header.Width(c.width).Render(c.title))
		if i < len(cols)-1 {
			b.WriteString(" ")
		}
	}
	b.WriteString("\n")

	for i, row := range rows {
		style := lipgloss.NewStyle()
		if styleRow != nil {
			style = styleRow(i)
		}
		for j, cell := range row {
			b.WriteString(style.Width(cols[j].width).MaxWidth(cols[j].width).Render(cell))
			if j < len(row)-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Backends renders the configured backends.
func (r *Renderer) Backends(infos []gateway.BackendInfo) string {
	cols := []column{{"", 2}, {"KEY", 10}, {"BACKEND", 14}, {"MODEL", 24}, {"CIRCUIT", 10}, {"FAILS", 6}}
	rows := make([][]string, len(infos))
	for i, info := range infos {
		marker := MessageIcons["pending"]
		if info.Current {
			marker = MessageIcons["active"]
		}
		rows[i] = []string{marker, info.Key, string(info.ID), info.Model, info.Breaker.String(), strconv.Itoa(info.Failures)}
	}
	return r.table("Backends", cols, rows, func(i int) lipgloss.Style {
		switch {
		case infos[i].Breaker == robustness.StateOpen:
			return r.styles.Error
		case infos[i].Current:
			return r.styles.Current
		default:
			return lipgloss.NewStyle()
		}
	})
}

// Limits renders a limiter snapshot.
func (r *Renderer) Limits(st ratelimit.Stats) string {
	cols := []column{{"MODEL", 24}, {"USED", 6}, {"LIMIT", 6}, {"LEFT", 6}, {"RESET IN", 10}}
	rows := make([][]string, len(st.Keys))
	for i, k := range st.Keys {
		rows[i] = []string{
			k.Key,
			fmt.Sprint(k.Used),
			fmt.Sprint(k.Limit),
			fmt.Sprint(k.Remaining),
			FormatDuration(k.ResetIn),
		}
	}

	out := r.table("Rate limits", cols, rows, func(i int) lipgloss.Style {
		if st.Keys[i].Remaining == 0 {
			return r.styles.Warning
		}
		return lipgloss.NewStyle()
	})
	summary := fmt.Sprintf("admitted %d, rejected %d, penalized %d", st.Admitted, st.Rejected, st.Penalized)
	return out + r.styles.Dim.Render(summary) + "\n"
}

// Tasks renders task records.
func (r *Renderer) Tasks(records []tasks.Record) string {
	cols := []column{{"ID", 36}, {"TYPE", 8}, {"STATUS", 10}, {"DESCRIPTION", 40}}
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{rec.ID, string(rec.Type), rec.Status.String(), rec.Description}
	}
	return r.table("Tasks", cols, rows, func(i int) lipgloss.Style {
		switch records[i].Status {
		case tasks.StatusCompleted:
			return r.styles.Success
		case tasks.StatusFailed:
			return r.styles.Error
		case tasks.StatusRunning:
			return r.styles.Running
		default:
			return r.styles.Dim
		}
	})
}

// Result renders a one-line success or failure message.
func (r *Renderer) Result(ok bool, msg string) string {
	if ok {
		return r.styles.Success.Render(MessageIcons["success"]+" "+msg) + "\n"
	}
	return r.styles.Error.Render(MessageIcons["error"]+" "+msg) + "\n"
}

// FormatDuration formats d for display, rounded to the second.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
