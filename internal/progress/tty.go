package progress

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const (
	barWidth    = 36
	sparkWidth  = 24
	historySize = 120
)

type updateMsg Update

type doneMsg struct{ err error }

type view struct {
	title   string
	total   int
	last    Update
	history []float64
	done    bool
	err     error
	cancel  func()
}

func newView(title string, total int, cancel func()) view {
	return view{
		title:   title,
		total:   total,
		history: make([]float64, 0, historySize),
		cancel:  cancel,
	}
}

func (m view) Init() tea.Cmd { return nil }

func (m view) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
		}
	case updateMsg:
		m.last = Update(msg)
		if m.last.Total == 0 {
			m.last.Total = m.total
		}
		m.history = append(m.history, m.last.Energy)
		if len(m.history) > historySize {
			m.history = m.history[1:]
		}
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m view) View() string {
	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	switch {
	case m.err != nil:
		statusIcon = red.Render("✗")
		statusText = red.Render("failed")
	case m.done:
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("done")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", statusIcon, cyan.Render(m.title), statusText))

	frac := m.last.Fraction()
	filled := int(frac * barWidth)
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s\n\n", bar, dim.Render(fmt.Sprintf("%d/%d  t=%.3f", m.last.Step, m.total, m.last.Time))))

	b.WriteString(fmt.Sprintf("   %s %s  %s %s  %s %s\n",
		dim.Render("energy"), white.Render(fmt.Sprintf("%.6g", m.last.Energy)),
		dim.Render("drift"), white.Render(fmt.Sprintf("%.2e", m.last.Drift)),
		dim.Render("cfl"), white.Render(fmt.Sprintf("%.3f", m.last.CFL))))
	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("E"), cyan.Render(sparkline(m.history, sparkWidth))))
	}
	if m.err != nil {
		b.WriteString("\n   " + red.Render(m.err.Error()) + "\n")
	}
	if !m.done {
		b.WriteString("\n" + dim.Render("   q stop") + "\n")
	}
	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := max(len(data)/width, 1)
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		sb.WriteRune(chars[min(max(idx, 0), 7)])
	}
	return sb.String()
}

// TTY draws a live progress view with bubbletea. Cancel is called when the
// user asks to stop.
type TTY struct {
	out    io.Writer
	in     io.Reader
	cancel func()
	prog   *tea.Program
	exited chan struct{}
}

func NewTTY(out io.Writer, in io.Reader, cancel func()) *TTY {
	return &TTY{out: out, in: in, cancel: cancel}
}

func (r *TTY) Start(title string, total int) {
	r.prog = tea.NewProgram(newView(title, total, r.cancel), tea.WithOutput(r.out), tea.WithInput(r.in))
	r.exited = make(chan struct{})
	go func() {
		defer close(r.exited)
		r.prog.Run()
	}()
}

func (r *TTY) Report(u Update) {
	if r.prog != nil {
		r.prog.Send(updateMsg(u))
	}
}

func (r *TTY) Finish(err error) {
	if r.prog == nil {
		return
	}
	r.prog.Send(doneMsg{err: err})
	<-r.exited
	r.prog = nil
}
