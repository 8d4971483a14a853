package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"todo-cli/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	doneStyle   = cellStyle.Foreground(lipgloss.Color("8"))
	highStyle   = cellStyle.Foreground(lipgloss.Color("9")).Bold(true)
	medStyle    = cellStyle.Foreground(lipgloss.Color("11"))
	lowStyle    = cellStyle.Foreground(lipgloss.Color("12"))
)

// printer renders results in the configured format.
type printer struct {
	w      io.Writer
	format string
	table  bool
}

func newPrinter(w io.Writer, format string, plain bool) *printer {
	return &printer{w: w, format: format, table: !plain && isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// emit writes data as JSON or YAML, or calls text for the text format.
func (p *printer) emit(data interface{}, text func() error) error {
	switch p.format {
	case "json":
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, string(out))
		return err
	case "yaml":
		return writeYAML(p.w, data)
	default:
		return text()
	}
}

func (p *printer) line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// writeYAML encodes data through its JSON form so that field names and
// order match the JSON output.
func writeYAML(w io.Writer, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return err
	}
	resetStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}

func (p *printer) tasks(tasks []model.Task, title string) error {
	return p.emit(tasks, func() error {
		if len(tasks) == 0 {
			p.line("No tasks found")
			return nil
		}
		if !p.table {
			for _, t := range tasks {
				p.line("%s", plainTask(t))
			}
			return nil
		}
		p.line("%s", renderTable(tasks, title))
		return nil
	})
}

func plainTask(t model.Task) string {
	status := "[ ]"
	if t.Done {
		status = "[x]"
	}
	parts := []string{status, fmt.Sprintf("#%d", t.ID), t.Text}
	if t.Priority != model.PriorityUnset {
		parts = append(parts, "("+string(t.Priority)+")")
	}
	if t.Due != "" {
		parts = append(parts, "due:"+t.Due)
	}
	for _, tag := range t.Tags {
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}

func renderTable(tasks []model.Task, title string) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		status := "○"
		if t.Done {
			status = "✓"
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d", t.ID),
			status,
			t.Text,
			priorityLabel(t.Priority),
			dashIfEmpty(t.Due),
			dashIfEmpty(tagList(t.Tags)),
		})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("ID", "", title, "PRI", "DUE", "TAGS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(tasks) {
				return cellStyle
			}
			t := tasks[row]
			if t.Done {
				return doneStyle
			}
			if col == 3 {
				switch t.Priority {
				case model.PriorityHigh:
					return highStyle
				case model.PriorityMed:
					return medStyle
				case model.PriorityLow:
					return lowStyle
				}
			}
			return cellStyle
		})
	return tbl.Render()
}

func priorityLabel(p model.Priority) string {
	if p == model.PriorityUnset {
		return "—"
	}
	return strings.ToUpper(string(p))
}

func tagList(tags []string) string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = "#" + tag
	}
	return strings.Join(out, " ")
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
