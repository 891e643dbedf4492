package client

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	simclient "github.com/andrei-cloud/go_cardsim/internal/client"
)

// resultMsg carries the outcome of one operation back to the menu.
type resultMsg struct {
	op  simclient.Operation
	out *simclient.Outcome
	err error
}

type menuModel struct {
	ctx     context.Context
	runner  *simclient.Runner
	ops     []simclient.Operation
	variant string
	address string

	cursor   int
	running  bool
	lastText string
	history  int
	quitting bool
}

// newMenuModel creates the operation menu.
func newMenuModel(ctx context.Context, r *simclient.Runner, variant, address string) menuModel {
	return menuModel{
		ctx:     ctx,
		runner:  r,
		ops:     simclient.Operations,
		variant: variant,
		address: address,
	}
}

// Init initializes the model.
func (m menuModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses and operation results.
func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.running = false
		m.history++
		if msg.err != nil {
			m.lastText = fmt.Sprintf("%s\n  error: %v\n", msg.op.Label, msg.err)
		} else {
			m.lastText = describe(msg.op, msg.out)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true

			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.ops)-1 {
				m.cursor++
			}
		case "enter":
			if m.running {
				return m, nil
			}
			m.running = true

			return m, m.run(m.ops[m.cursor])
		default:
			// Digits jump straight to an entry, 1-based.
			if n, ok := menuIndex(msg.String()); ok && n < len(m.ops) {
				m.cursor = n
			}
		}
	}

	return m, nil
}

// run executes op off the UI goroutine.
func (m menuModel) run(op simclient.Operation) tea.Cmd {
	ctx, r := m.ctx, m.runner

	return func() tea.Msg {
		out, err := op.Run(ctx, r)

		return resultMsg{op: op, out: out, err: err}
	}
}

func menuIndex(key string) (int, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return 0, false
	}

	return int(key[0] - '1'), true
}

// View renders the menu and the last result.
func (m menuModel) View() string {
	if m.quitting {
		return "Bye.\n"
	}

	var b strings.Builder
	b.WriteString("Card Network Client\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	state := "DISCONNECTED"
	if m.runner != nil && m.runner.Session != nil {
		state = m.runner.Session.State()
	}
	fmt.Fprintf(&b, "%s  variant=%s  session=%s\n\n", m.address, m.variant, state)

	for i, op := range m.ops {
		selector := "   "
		if i == m.cursor {
			selector = " ▶ "
		}
		fmt.Fprintf(&b, "%s%2d. %s\n", selector, i+1, op.Label)
	}
	b.WriteString("\n")

	switch {
	case m.running:
		b.WriteString("Sending...\n\n")
	case m.lastText != "":
		b.WriteString("Last result:\n")
		b.WriteString(m.lastText)
		b.WriteString("\n")
	}

	b.WriteString("Navigation:\n")
	b.WriteString("  ↑/↓ or j/k: Move  1-9: Jump  Enter: Send\n")
	b.WriteString("  q or Ctrl+C: Quit\n")

	return b.String()
}
