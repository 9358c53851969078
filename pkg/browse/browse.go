// Package browse implements an optional interactive terminal browser over
// a file's diagnostics, built on tview/tcell: a scrollable list on the
// left, the selected diagnostic's full reference chain on the right.
package browse

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/dwarflint/dwarflint/pkg/lint/diag"
)

func severityColor(sev diag.Severity) tcell.Color {
	switch sev {
	case diag.Err:
		return tcell.ColorRed
	case diag.Warning:
		return tcell.ColorYellow
	default:
		return tcell.ColorGray
	}
}

// Run launches the interactive browser over sink's messages for path. It
// blocks until the user quits (Escape or 'q').
func Run(path string, sink *diag.Sink) error {
	messages := sink.Messages()

	app := tview.NewApplication()

	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true).SetTitle(fmt.Sprintf(" %s (%d diagnostics) ", path, len(messages)))

	detail := tview.NewTextView()
	detail.SetDynamicColors(true).SetWordWrap(true)
	detail.SetBorder(true).SetTitle(" detail ")

	for _, m := range messages {
		label := fmt.Sprintf("[%s]%s", colorName(severityColor(m.Severity)), m.Severity.String())
		list.AddItem(fmt.Sprintf("%s[white] %s", label, truncate(m.Text, 80)), "", 0, nil)
	}

	updateDetail := func(i int) {
		if i < 0 || i >= len(messages) {
			detail.SetText("")
			return
		}
		m := messages[i]
		detail.SetText(fmt.Sprintf("[%s]%s[white]\n\n%s\n\n%s",
			colorName(severityColor(m.Severity)), m.Severity.String(),
			sink.Format(m, true),
			m.Category.String()))
	}

	list.SetChangedFunc(func(i int, _ string, _ string, _ rune) {
		updateDetail(i)
	})
	if len(messages) > 0 {
		updateDetail(0)
	}

	flex := tview.NewFlex().
		AddItem(list, 0, 1, true).
		AddItem(detail, 0, 2, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				app.Stop()
				return nil
			}
		}
		return event
	})

	return app.SetRoot(flex, true).SetFocus(list).Run()
}

func colorName(c tcell.Color) string {
	switch c {
	case tcell.ColorRed:
		return "red"
	case tcell.ColorYellow:
		return "yellow"
	case tcell.ColorGray:
		return "gray"
	default:
		return "white"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
