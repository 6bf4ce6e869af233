package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rizkyjpr/semantic-game/internal/game"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AF87FF"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	winStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87FF87"))
	hintStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#D7AFFF"))
	tempStyles = map[string]lipgloss.Style{
		"hot":  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		"warm": lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF5F")),
		"cold": lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")),
	}
)

const barWidth = 20

// guessDoneMsg and hintDoneMsg carry the round back from a background
// operation. The operation ran on a copy, so the model swaps it in whole.
type guessDoneMsg struct {
	round *game.Round
	out   game.Outcome
	err   error
}

type hintDoneMsg struct {
	round *game.Round
	hint  string
	err   error
}

type model struct {
	engine      *game.Engine
	round       *game.Round
	newRound    func() *game.Round
	opTimeout   time.Duration
	allowReveal bool

	input  []rune
	busy   bool
	reveal bool
	status string
	err    string
}

func newModel(engine *game.Engine, newRound func() *game.Round, allowReveal bool) model {
	return model{
		engine:      engine,
		round:       newRound(),
		newRound:    newRound,
		opTimeout:   time.Minute,
		allowReveal: allowReveal,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case guessDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = describe(msg.err)
			return m, nil
		}
		m.round = msg.round
		m.err = ""
		switch msg.out.Status {
		case game.StatusDuplicate:
			m.status = fmt.Sprintf("already guessed %q", msg.out.Guess.Word)
		case game.StatusFinished:
			m.status = "round is over; ctrl+n for a new one"
		case game.StatusAccepted:
			m.status = fmt.Sprintf("%s → %.3f", msg.out.Guess.Word, msg.out.Guess.Score)
		}
		if msg.out.Won {
			m.status = fmt.Sprintf("You got it! The word was %q.", m.round.Target)
		}
		return m, nil

	case hintDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = describe(msg.err)
			return m, nil
		}
		m.round = msg.round
		m.err = ""
		m.status = "new hint"
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch k.Type {
	case tea.KeyEnter:
		raw := string(m.input)
		m.input = m.input[:0]
		if strings.TrimSpace(raw) == "" {
			return m, nil
		}
		m.busy = true
		m.status = "scoring…"
		return m, m.guessCmd(raw)
	case tea.KeyTab:
		m.busy = true
		m.status = "asking the oracle…"
		return m, m.hintCmd()
	case tea.KeyCtrlG:
		r := m.round.Clone()
		if m.engine.GiveUp(r) {
			m.round = r
			m.status = fmt.Sprintf("The word was %q.", r.Target)
		}
		return m, nil
	case tea.KeyCtrlN:
		m.round = m.newRound()
		m.input = m.input[:0]
		m.status, m.err, m.reveal = "new round", "", false
		return m, nil
	case tea.KeyCtrlR:
		if m.allowReveal {
			m.reveal = !m.reveal
		}
		return m, nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeySpace:
		m.input = append(m.input, ' ')
		return m, nil
	case tea.KeyRunes:
		m.input = append(m.input, k.Runes...)
		return m, nil
	}
	return m, nil
}

func (m model) guessCmd(raw string) tea.Cmd {
	r := m.round.Clone()
	engine, timeout := m.engine, m.opTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out, err := engine.SubmitGuess(ctx, r, raw)
		return guessDoneMsg{round: r, out: out, err: err}
	}
}

func (m model) hintCmd() tea.Cmd {
	r := m.round.Clone()
	engine, timeout := m.engine, m.opTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		hint, err := engine.RequestHint(ctx, r)
		return hintDoneMsg{round: r, hint: hint, err: err}
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, game.ErrHintBudgetExhausted):
		return "no hints left"
	case errors.Is(err, game.ErrOracleUnavailable):
		return "the oracle is silent: " + err.Error()
	case errors.Is(err, game.ErrEmbeddingUnavailable):
		return "could not score that guess: " + err.Error()
	default:
		return err.Error()
	}
}

func (m model) View() string {
	var b strings.Builder
	r := m.round

	b.WriteString(titleStyle.Render("Semantic Mystery"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  mode %s  hints left %d  guesses %d", r.Mode, m.engine.HintsLeft(r), len(r.Guesses))))
	b.WriteString("\n")
	if r.Finished() || m.reveal {
		b.WriteString(dimStyle.Render("target: " + r.Target))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(r.Guesses) == 0 {
		b.WriteString(dimStyle.Render("No guesses yet. Type a noun and press enter."))
		b.WriteString("\n")
	}
	for i, g := range r.Guesses {
		temp := game.Temperature(g.Score)
		fill := min(barWidth, int(max(0, g.Score)*barWidth))
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)
		line := fmt.Sprintf("%2d. %-16s %6.3f %s %s", i+1, g.Word, g.Score, bar, temp)
		b.WriteString(tempStyles[temp].Render(line))
		b.WriteString("\n")
	}

	if len(r.Hints) > 0 {
		b.WriteString("\n")
		for i, h := range r.Hints {
			b.WriteString(hintStyle.Render(fmt.Sprintf("hint %d: %s", i+1, h)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case r.Won && !r.GaveUp:
		b.WriteString(winStyle.Render("Solved!"))
	case r.GaveUp:
		b.WriteString(errStyle.Render("Gave up."))
	default:
		b.WriteString("> " + string(m.input) + "▏")
	}
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(dimStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.err != "" {
		b.WriteString(errStyle.Render(m.err))
		b.WriteString("\n")
	}
	help := "enter guess · tab hint · ctrl+g give up · ctrl+n new · esc quit"
	if m.allowReveal {
		help += " · ctrl+r reveal"
	}
	b.WriteString(dimStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}
