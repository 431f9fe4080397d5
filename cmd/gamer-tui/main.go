package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"gamer/internal/chat"
	"gamer/internal/config"
	"gamer/internal/logging"
	"gamer/internal/pipeline"
	"gamer/internal/playground"
	"gamer/internal/trace"
)

const (
	appTitle         = "GAMER: Generative Analysis of Metadata Retrieval"
	inputPlaceholder = "Ask a question about the AIND metadata!"
	welcomeMessage   = "Hello! How can I help you?"

	timelineMaxChars = 8000
	statusLineMax    = 180
)

type appConfig struct {
	pipelineURL    string
	pipelineAPIKey string
	traceURL       string
	traceAPIKey    string
	traceTimeout   time.Duration
	dataRoute      string
	mode           string
	wordInterval   time.Duration
	playTimeout    time.Duration
	logFile        string
	logLevel       string
	guidePath      string
	altScreen      bool
}

type runtimeSettings struct {
	mode         string
	dataRoute    string
	wordInterval time.Duration
	playTimeout  time.Duration
	autoScroll   bool
}

type tabID int

const (
	tabChat tabID = iota
	tabPlayground
	tabSettings
	tabGuide
)

// Messages lifted off the turn goroutine. Region and status indices are
// assigned in creation order by the surface.
type turnRegionMsg struct {
	index int
	text  string
}

type turnStatusMsg struct {
	index int
	label string
	state string
}

type turnErrorMsg struct {
	message string
}

type turnDoneMsg struct {
	result chat.TurnResult
}

type snippetDoneMsg struct {
	result playground.Result
	err    error
}

type feedbackDoneMsg struct {
	id     string
	symbol string
	err    error
}

type statusRow struct {
	label string
	state string
}

// uiSurface bridges the sequencer's render callbacks onto the bubbletea
// event loop. It is only touched from the turn goroutine.
type uiSurface struct {
	out      chan<- tea.Msg
	regions  int
	statuses int
}

func (s *uiSurface) NewRegion() chat.Region {
	idx := s.regions
	s.regions++
	s.out <- turnRegionMsg{index: idx}
	return &uiRegion{out: s.out, index: idx}
}

func (s *uiSurface) BeginStatus(label string) chat.Status {
	idx := s.statuses
	s.statuses++
	s.out <- turnStatusMsg{index: idx, label: label, state: "open"}
	return &uiStatus{out: s.out, index: idx}
}

func (s *uiSurface) ShowError(message string) {
	s.out <- turnErrorMsg{message: message}
}

type uiRegion struct {
	out   chan<- tea.Msg
	index int
}

func (r *uiRegion) Write(text string) error {
	r.out <- turnRegionMsg{index: r.index, text: text}
	return nil
}

type uiStatus struct {
	out   chan<- tea.Msg
	index int
}

func (s *uiStatus) Done(label string) {
	s.out <- turnStatusMsg{index: s.index, label: label, state: "done"}
}

func (s *uiStatus) Fail(label string) {
	s.out <- turnStatusMsg{index: s.index, label: label, state: "failed"}
}

func waitTurnMsg(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	inputPanel  lipgloss.Style
	helpText    lipgloss.Style
	settingKey  lipgloss.Style
	settingVal  lipgloss.Style
	settingPick lipgloss.Style
	statusOpen  lipgloss.Style
	statusDone  lipgloss.Style
	statusFail  lipgloss.Style
	quitFrame   lipgloss.Style
	roles       map[string]lipgloss.Style
}

func newTheme() uiTheme {
	teal := lipgloss.Color("#2dd4bf")
	amber := lipgloss.Color("#fbbf24")
	coral := lipgloss.Color("#fb7185")
	bg := lipgloss.Color("#0b1520")
	panelBg := lipgloss.Color("#122233")
	text := lipgloss.Color("#e7f0f7")
	muted := lipgloss.Color("#7e93a8")

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(teal).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Background(teal).
			Foreground(lipgloss.Color("#06231f")).
			Bold(true).
			Padding(0, 1),
		tabInactive: lipgloss.NewStyle().
			Background(lipgloss.Color("#1a3045")).
			Foreground(muted).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(teal).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(amber).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(amber).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(teal).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(coral).Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(amber).
			Padding(0, 1),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		settingKey:  lipgloss.NewStyle().Foreground(teal),
		settingVal:  lipgloss.NewStyle().Foreground(text),
		settingPick: lipgloss.NewStyle().Foreground(amber).Bold(true),
		statusOpen:  lipgloss.NewStyle().Foreground(amber),
		statusDone:  lipgloss.NewStyle().Foreground(teal),
		statusFail:  lipgloss.NewStyle().Foreground(coral).Bold(true),
		quitFrame: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(coral).
			Padding(1, 2),
		roles: map[string]lipgloss.Style{
			"user":      lipgloss.NewStyle().Foreground(amber).Bold(true),
			"assistant": lipgloss.NewStyle().Foreground(teal).Bold(true),
			"system":    lipgloss.NewStyle().Foreground(muted).Bold(true),
		},
	}
}

type model struct {
	cfg      appConfig
	settings runtimeSettings
	guide    config.Guide
	runner   *chat.Runner
	binder   *trace.Binder
	play     *playground.Runner
	logger   *zap.Logger

	activeTab     tabID
	statusLine    string
	inflight      bool
	snippetBusy   bool
	quitConfirm   bool
	settingsIndex int

	turnInbound  chan tea.Msg
	liveRegions  []string
	liveStatuses []statusRow
	liveError    string

	playOutput string
	playErr    string

	width  int
	height int

	input    textinput.Model
	editor   textarea.Model
	timeline viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	theme uiTheme
}

func newModel(cfg appConfig, guide config.Guide, runner *chat.Runner, binder *trace.Binder, play *playground.Runner, logger *zap.Logger) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = inputPlaceholder
	input.Focus()

	editor := textarea.New()
	editor.Placeholder = "// Start typing here..."
	editor.CharLimit = 8000

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#fbbf24"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return model{
		cfg: cfg,
		settings: runtimeSettings{
			mode:         cfg.mode,
			dataRoute:    cfg.dataRoute,
			wordInterval: cfg.wordInterval,
			playTimeout:  cfg.playTimeout,
			autoScroll:   true,
		},
		guide:      guide,
		runner:     runner,
		binder:     binder,
		play:       play,
		logger:     logger,
		activeTab:  tabChat,
		statusLine: "ready · thread=" + runner.Session().ThreadID(),
		input:      input,
		editor:     editor,
		timeline:   timeline,
		spinner:    sp,
		renderer:   renderer,
		theme:      newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) startTurn(query string) tea.Cmd {
	inbound := make(chan tea.Msg, 64)
	m.turnInbound = inbound
	m.liveRegions = nil
	m.liveStatuses = nil
	m.liveError = ""
	m.inflight = true
	m.statusLine = "generating..."

	runner := m.runner
	mode := chat.Mode(m.settings.mode)
	route := m.settings.dataRoute
	tw := &chat.Typewriter{Interval: m.settings.wordInterval}
	go func() {
		surface := &uiSurface{out: inbound}
		result := runner.RunTurn(context.Background(), query, route, mode, surface, tw)
		inbound <- turnDoneMsg{result: result}
		close(inbound)
	}()
	return waitTurnMsg(inbound)
}

func (m *model) feedbackCmd(symbol, comment string) tea.Cmd {
	binder := m.binder
	timeout := m.cfg.traceTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fb, err := binder.Submit(ctx, symbol, comment)
		return feedbackDoneMsg{id: fb.ID, symbol: symbol, err: err}
	}
}

func (m *model) runSnippetCmd(code string) tea.Cmd {
	play := m.play
	return func() tea.Msg {
		res, err := play.Run(context.Background(), code)
		return snippetDoneMsg{result: res, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case turnRegionMsg:
		for len(m.liveRegions) <= msg.index {
			m.liveRegions = append(m.liveRegions, "")
		}
		m.liveRegions[msg.index] = msg.text
		m.renderPanes()
		cmds = append(cmds, waitTurnMsg(m.turnInbound))
	case turnStatusMsg:
		for len(m.liveStatuses) <= msg.index {
			m.liveStatuses = append(m.liveStatuses, statusRow{})
		}
		m.liveStatuses[msg.index] = statusRow{label: msg.label, state: msg.state}
		m.renderPanes()
		cmds = append(cmds, waitTurnMsg(m.turnInbound))
	case turnErrorMsg:
		m.liveError = msg.message
		m.renderPanes()
		cmds = append(cmds, waitTurnMsg(m.turnInbound))
	case turnDoneMsg:
		m.inflight = false
		m.turnInbound = nil
		m.liveRegions = nil
		m.liveStatuses = nil
		if msg.result.Completed {
			m.liveError = ""
			if msg.result.RunID != "" {
				m.statusLine = "answer ready · run=" + msg.result.RunID + " · rate it with /faces"
			} else {
				m.statusLine = "answer ready"
			}
		} else if strings.TrimSpace(m.liveError) == "" {
			m.statusLine = "generation stopped before a final answer"
		} else {
			m.statusLine = "generation failed"
		}
		m.renderPanes()
	case snippetDoneMsg:
		m.snippetBusy = false
		if msg.err != nil {
			m.playErr = msg.err.Error()
			m.playOutput = msg.result.Stdout
			m.statusLine = "snippet failed"
		} else {
			m.playErr = ""
			m.playOutput = msg.result.Stdout
			if msg.result.Value != "" {
				if m.playOutput != "" && !strings.HasSuffix(m.playOutput, "\n") {
					m.playOutput += "\n"
				}
				m.playOutput += msg.result.Value
			}
			m.statusLine = "snippet finished"
		}
	case feedbackDoneMsg:
		if msg.err != nil {
			m.logError(msg.err)
			m.statusLine = "feedback rejected: " + compactSingleLine(msg.err.Error(), 120)
		} else {
			m.statusLine = fmt.Sprintf("feedback recorded %s (id=%s)", msg.symbol, msg.id)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		if m.activeTab == tabChat && !m.quitConfirm {
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			cmds = append(cmds, cmd)
		}
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.quitConfirm {
			switch msg.String() {
			case "y", "Y", "enter":
				return m, tea.Quit
			case "n", "N", "esc":
				m.quitConfirm = false
				m.statusLine = "quit canceled"
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case "esc":
			if m.activeTab == tabChat {
				m.beginQuitConfirm()
				return m, tea.Batch(cmds...)
			}
			m.setTab(tabChat)
			return m, tea.Batch(cmds...)
		case "tab":
			m.setTab((m.activeTab + 1) % 4)
			return m, tea.Batch(cmds...)
		case "shift+tab":
			m.setTab((m.activeTab + 3) % 4)
			return m, tea.Batch(cmds...)
		}

		switch m.activeTab {
		case tabChat:
			switch msg.String() {
			case "enter":
				if m.inflight {
					return m, tea.Batch(cmds...)
				}
				raw := strings.TrimSpace(m.input.Value())
				if raw == "" {
					return m, tea.Batch(cmds...)
				}
				m.input.SetValue("")
				if strings.HasPrefix(raw, "/") {
					cmd := m.handleSlash(raw)
					if cmd != nil {
						cmds = append(cmds, cmd)
					}
					m.renderPanes()
					return m, tea.Batch(cmds...)
				}
				cmds = append(cmds, m.startTurn(raw))
				m.renderPanes()
				return m, tea.Batch(cmds...)
			case "pgup", "ctrl+b":
				m.timeline.LineUp(8)
				return m, tea.Batch(cmds...)
			case "pgdown", "ctrl+f":
				m.timeline.LineDown(8)
				return m, tea.Batch(cmds...)
			case "up":
				if strings.TrimSpace(m.input.Value()) == "" {
					m.timeline.LineUp(4)
					return m, tea.Batch(cmds...)
				}
			case "down":
				if strings.TrimSpace(m.input.Value()) == "" {
					m.timeline.LineDown(4)
					return m, tea.Batch(cmds...)
				}
			case "home":
				m.timeline.GotoTop()
				return m, tea.Batch(cmds...)
			case "end":
				m.timeline.GotoBottom()
				return m, tea.Batch(cmds...)
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		case tabPlayground:
			switch msg.String() {
			case "ctrl+r":
				if m.snippetBusy {
					return m, tea.Batch(cmds...)
				}
				code := m.editor.Value()
				if strings.TrimSpace(code) == "" {
					m.statusLine = "nothing to run"
					return m, tea.Batch(cmds...)
				}
				m.snippetBusy = true
				m.statusLine = "running snippet..."
				cmds = append(cmds, m.runSnippetCmd(code))
				return m, tea.Batch(cmds...)
			case "ctrl+l":
				m.editor.Reset()
				m.playOutput = ""
				m.playErr = ""
				m.statusLine = "playground cleared"
				return m, tea.Batch(cmds...)
			}
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			cmds = append(cmds, cmd)
		case tabSettings:
			switch msg.String() {
			case "up", "k":
				m.settingsIndex = maxInt(0, m.settingsIndex-1)
			case "down", "j":
				m.settingsIndex = minInt(m.maxSettingsIndex(), m.settingsIndex+1)
			case "left", "h", "-":
				m.adjustSetting(-1)
			case "right", "l", "+":
				m.adjustSetting(1)
			}
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *model) setTab(tab tabID) {
	m.activeTab = tab
	switch tab {
	case tabChat:
		m.input.Focus()
		m.editor.Blur()
	case tabPlayground:
		m.input.Blur()
		m.editor.Focus()
	default:
		m.input.Blur()
		m.editor.Blur()
	}
	m.renderPanes()
}

func (m *model) beginQuitConfirm() {
	m.quitConfirm = true
	m.statusLine = "quit GAMER?"
}

func (m *model) handleSlash(raw string) tea.Cmd {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	tail := parts[1:]
	switch cmd {
	case "/help", "/guide":
		m.setTab(tabGuide)
		return nil
	case "/quit", "/exit":
		m.beginQuitConfirm()
		return nil
	case "/play":
		m.setTab(tabPlayground)
		return nil
	case "/settings":
		m.setTab(tabSettings)
		return nil
	case "/thread":
		m.statusLine = "thread=" + m.runner.Session().ThreadID()
		return nil
	case "/mode":
		if len(tail) == 0 {
			m.statusLine = "mode: " + m.settings.mode
			return nil
		}
		mode := strings.ToLower(strings.TrimSpace(tail[0]))
		if mode != string(chat.ModeGuided) && mode != string(chat.ModeDeveloper) {
			m.statusLine = "usage: /mode guided|developer"
			return nil
		}
		m.settings.mode = mode
		m.statusLine = "mode set: " + mode
		return nil
	case "/route":
		if len(tail) == 0 {
			m.statusLine = "data route: " + m.settings.dataRoute
			return nil
		}
		route := strings.ToLower(strings.TrimSpace(tail[0]))
		if route != "metadata" && route != "schema" {
			m.statusLine = "usage: /route metadata|schema"
			return nil
		}
		m.settings.dataRoute = route
		m.statusLine = "data route set: " + route
		return nil
	case "/example":
		if len(m.guide.Examples) == 0 {
			m.statusLine = "no example questions configured"
			return nil
		}
		idx := 0
		if len(tail) > 0 {
			parsed, err := strconv.Atoi(strings.TrimSpace(tail[0]))
			if err != nil || parsed < 1 || parsed > len(m.guide.Examples) {
				m.statusLine = fmt.Sprintf("usage: /example 1-%d", len(m.guide.Examples))
				return nil
			}
			idx = parsed - 1
		}
		if m.inflight {
			m.statusLine = "a turn is already running"
			return nil
		}
		return m.startTurn(m.guide.Examples[idx])
	case "/faces":
		if len(tail) == 0 {
			m.statusLine = "usage: /faces " + strings.Join(trace.FaceSymbols(), "|") + " (or 1-5) [comment]"
			return nil
		}
		symbol, ok := faceForToken(tail[0])
		if !ok {
			m.statusLine = "unknown face: " + tail[0]
			return nil
		}
		comment := strings.TrimSpace(strings.Join(tail[1:], " "))
		m.statusLine = "submitting feedback..."
		return m.feedbackCmd(symbol, comment)
	default:
		m.statusLine = "unknown command: " + cmd
		return nil
	}
}

// faceForToken accepts the face symbol itself or its 1-5 position on the
// scale, best first.
func faceForToken(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if _, ok := trace.FaceScore(token); ok {
		return token, true
	}
	symbols := trace.FaceSymbols()
	if idx, err := strconv.Atoi(token); err == nil && idx >= 1 && idx <= len(symbols) {
		return symbols[idx-1], true
	}
	return "", false
}

func (m model) View() string {
	header := m.renderHeader()
	content := m.renderContent()
	input := m.renderInput()
	footer := m.renderFooter()
	out := lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer)
	if m.quitConfirm {
		out = m.renderQuitModal()
	}
	return m.theme.root.Render(out)
}

func (m *model) renderHeader() string {
	tabs := []struct {
		id    tabID
		label string
	}{
		{tabChat, "Chat"},
		{tabPlayground, "Playground"},
		{tabSettings, "Settings"},
		{tabGuide, "Guide"},
	}
	segments := make([]string, 0, len(tabs)+1)
	for _, tab := range tabs {
		style := m.theme.tabInactive
		if tab.id == m.activeTab {
			style = m.theme.tabActive
		}
		segments = append(segments, style.Render(tab.label))
	}
	meta := fmt.Sprintf("route=%s · mode=%s", m.settings.dataRoute, m.settings.mode)
	segments = append(segments, m.theme.helpText.Render(meta))
	joined := lipgloss.JoinHorizontal(lipgloss.Left, segments...)
	return m.theme.header.Width(maxInt(20, m.width-4)).Render(joined)
}

func (m *model) renderContent() string {
	contentHeight := maxInt(8, m.height-12)
	contentWidth := maxInt(40, m.width-4)
	panel := m.theme.panel.Width(contentWidth).Height(contentHeight)

	switch m.activeTab {
	case tabChat:
		return panel.Render(m.theme.panelTitle.Render(appTitle) + "\n" + m.timeline.View())
	case tabPlayground:
		return panel.Render(m.theme.panelTitle.Render("Code Playground") + "\n" + m.renderPlayground(contentWidth, contentHeight))
	case tabSettings:
		return panel.Render(m.theme.panelTitle.Render("Settings") + "\n" + m.renderSettings())
	case tabGuide:
		return panel.Render(m.theme.panelTitle.Render("Prompt Engineering Guide") + "\n" + m.renderGuide())
	default:
		return ""
	}
}

func (m *model) renderPlayground(width, height int) string {
	m.editor.SetWidth(maxInt(30, width-6))
	m.editor.SetHeight(maxInt(4, (height-8)/2))

	var b strings.Builder
	b.WriteString(m.theme.helpText.Render("Go snippets run in a sandboxed interpreter. Ctrl+R run · Ctrl+L clear."))
	b.WriteString("\n\n")
	b.WriteString(m.editor.View())
	b.WriteString("\n")
	if m.snippetBusy {
		b.WriteString(m.spinner.View() + " running...\n")
	}
	if m.playErr != "" {
		b.WriteString(m.theme.errorStatus.Render(compactSingleLine(m.playErr, 200)))
		b.WriteString("\n")
	}
	if m.playOutput != "" {
		b.WriteString(m.theme.settingVal.Render(truncate(m.playOutput, timelineMaxChars)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) maxSettingsIndex() int {
	return 4
}

func (m *model) adjustSetting(delta int) {
	if delta == 0 {
		return
	}
	switch m.settingsIndex {
	case 0:
		options := []string{string(chat.ModeGuided), string(chat.ModeDeveloper)}
		m.settings.mode = cycleString(options, m.settings.mode, delta)
	case 1:
		options := []string{"metadata", "schema"}
		m.settings.dataRoute = cycleString(options, m.settings.dataRoute, delta)
	case 2:
		ms := clampInt(int(m.settings.wordInterval.Milliseconds())+delta*10, 10, 200)
		m.settings.wordInterval = time.Duration(ms) * time.Millisecond
	case 3:
		s := clampInt(int(m.settings.playTimeout.Seconds())+delta, 1, 30)
		m.settings.playTimeout = time.Duration(s) * time.Second
		m.play = playground.NewRunner(m.settings.playTimeout)
	case 4:
		m.settings.autoScroll = !m.settings.autoScroll
	}
	m.statusLine = "settings updated"
}

func (m *model) renderSettings() string {
	rows := []struct {
		label string
		value string
		help  string
	}{
		{"Mode", m.settings.mode, "guided collapses intermediates into one status; developer shows every event"},
		{"Data Route", m.settings.dataRoute, "ask about the metadata or the data schema"},
		{"Word Interval", fmt.Sprintf("%dms", m.settings.wordInterval.Milliseconds()), "typewriter pacing per word"},
		{"Playground Timeout", fmt.Sprintf("%ds", int(m.settings.playTimeout.Seconds())), "snippet evaluation limit"},
		{"Auto Scroll", onOff(m.settings.autoScroll), "keep the timeline pinned to the newest output"},
	}
	var b strings.Builder
	b.WriteString(m.theme.helpText.Render("Use ↑/↓ to select and ←/→ (or -/+) to change values."))
	b.WriteString("\n\n")
	for i, row := range rows {
		labelStyle := m.theme.settingKey
		valueStyle := m.theme.settingVal
		prefix := "  "
		if i == m.settingsIndex {
			labelStyle = m.theme.settingPick
			valueStyle = m.theme.settingPick
			prefix = "▶ "
		}
		b.WriteString(prefix + labelStyle.Render(fmt.Sprintf("%-20s", row.label)) + " " + valueStyle.Render(row.value) + "\n")
		b.WriteString("   " + m.theme.helpText.Render(row.help) + "\n")
	}
	b.WriteString("\nThread: " + m.runner.Session().ThreadID())
	return strings.TrimSpace(b.String())
}

func (m *model) renderGuide() string {
	var b strings.Builder
	b.WriteString("Please note that it will take a few seconds to generate an answer.\n\n")
	b.WriteString(m.theme.panelTitle.Render("Example questions") + "\n")
	for i, q := range m.guide.Examples {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, q))
	}
	b.WriteString(m.theme.helpText.Render("  Send one with /example <n>.") + "\n\n")
	b.WriteString(m.theme.panelTitle.Render("Prompt tips") + "\n")
	for _, tip := range m.guide.Tips {
		b.WriteString("  - " + tip + "\n")
	}
	b.WriteString("\n" + m.theme.panelTitle.Render("Slash commands") + "\n")
	commands := []string{
		"/example [n]    send an example question",
		"/faces <face|1-5> [comment]    score the latest answer",
		"/mode guided|developer",
		"/route metadata|schema",
		"/thread    show the session thread id",
		"/play /settings /guide    switch tabs",
		"/quit",
	}
	for _, c := range commands {
		b.WriteString("  " + c + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	if m.activeTab != tabChat {
		return m.theme.inputPanel.Width(contentWidth).Render(m.theme.helpText.Render("Input disabled outside Chat tab. Press Tab to return."))
	}
	inputView := m.input.View()
	if m.inflight {
		inputView = m.spinner.View() + " generating... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

func (m *model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	lowered := strings.ToLower(m.statusLine)
	if strings.Contains(lowered, "failed") || strings.Contains(lowered, "error") || strings.Contains(lowered, "rejected") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, statusLineMax))
	hints := m.theme.helpText.Render("Keys: Tab switch view · Enter send · PgUp/PgDn scroll · Esc quit prompt · Ctrl+C quit")
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}

func (m *model) renderQuitModal() string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(int(float64(canvasWidth)*0.5), 36, 70)

	title := m.theme.errorStatus.Render("Quit GAMER?")
	subtitle := m.theme.helpText.Render("The conversation thread is not persisted across sessions.")
	prompt := m.theme.settingPick.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Return")
	body := strings.Join([]string{title, subtitle, "", prompt}, "\n")
	panel := m.theme.quitFrame.Width(modalWidth).Render(body)
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		panel,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#0b1520")),
	)
}

func (m *model) resize() {
	contentWidth := maxInt(40, m.width-4)
	m.input.Width = maxInt(20, contentWidth-6)
	m.timeline.Width = maxInt(20, contentWidth-4)
	m.timeline.Height = maxInt(5, m.height-15)
	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(maxInt(40, contentWidth-8)),
	)
}

func (m *model) renderPanes() {
	prevYOffset := m.timeline.YOffset
	prevAtBottom := m.timeline.AtBottom()

	m.timeline.SetContent(m.renderTimeline())
	if m.settings.autoScroll && (prevAtBottom || m.inflight) {
		m.timeline.GotoBottom()
	} else if prevAtBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(prevYOffset)
	}
}

func (m *model) renderTimeline() string {
	width := maxInt(24, m.timeline.Width-2)
	var b strings.Builder

	messages := m.runner.Session().Messages()
	if len(messages) == 0 {
		b.WriteString(m.theme.roles["assistant"].Render("assistant"))
		b.WriteString("\n" + welcomeMessage + "\n\n")
		b.WriteString(m.theme.helpText.Render("Type a query to start or pick one of these suggestions:"))
		b.WriteString("\n")
		for i, q := range m.guide.Examples {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, q))
		}
		b.WriteString(m.theme.helpText.Render("  (send one with /example <n>)"))
		b.WriteString("\n\n")
	}

	for _, msg := range messages {
		style, ok := m.theme.roles[string(msg.Role)]
		if !ok {
			style = m.theme.roles["system"]
		}
		b.WriteString(style.Render(string(msg.Role)))
		b.WriteString("\n")
		if msg.Role == chat.RoleAssistant {
			b.WriteString(strings.TrimRight(m.safeRenderMarkdown(msg.Content), "\n"))
		} else {
			b.WriteString(wrapText(msg.Content, width))
		}
		b.WriteString("\n\n")
	}

	if m.inflight || len(m.liveStatuses) > 0 || len(m.liveRegions) > 0 || m.liveError != "" {
		for _, row := range m.liveStatuses {
			switch row.state {
			case "done":
				b.WriteString(m.theme.statusDone.Render("✔ " + row.label))
			case "failed":
				b.WriteString(m.theme.statusFail.Render("✘ " + row.label))
			default:
				b.WriteString(m.theme.statusOpen.Render(m.spinner.View() + " " + row.label))
			}
			b.WriteString("\n")
		}
		for _, region := range m.liveRegions {
			if strings.TrimSpace(region) == "" {
				continue
			}
			b.WriteString(wrapText(truncate(region, timelineMaxChars), width))
			b.WriteString("\n")
		}
		if m.liveError != "" {
			b.WriteString(m.theme.errorStatus.Render(wrapText(m.liveError, width)))
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// safeRenderMarkdown falls back to plain text when the renderer errors or
// panics on malformed input.
func (m *model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()
	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.logger.Warn("ui error", zap.Error(err))
}

func parseFlags(base config.Config) appConfig {
	cfg := appConfig{}
	flag.StringVar(&cfg.pipelineURL, "pipeline-url", base.PipelineURL, "Answer pipeline base URL")
	flag.StringVar(&cfg.pipelineAPIKey, "pipeline-api-key", base.PipelineAPIKey, "Answer pipeline API key")
	flag.StringVar(&cfg.traceURL, "trace-url", base.TraceURL, "Tracing service base URL")
	flag.StringVar(&cfg.traceAPIKey, "trace-api-key", base.TraceAPIKey, "Tracing service API key")
	flag.DurationVar(&cfg.traceTimeout, "trace-timeout", base.TraceTimeout, "Tracing request timeout")
	flag.StringVar(&cfg.dataRoute, "route", base.DataRoute, "Data route (metadata|schema)")
	flag.StringVar(&cfg.mode, "mode", base.Mode, "Render mode (guided|developer)")
	flag.DurationVar(&cfg.wordInterval, "word-interval", base.WordInterval, "Typewriter interval per word")
	flag.DurationVar(&cfg.playTimeout, "playground-timeout", base.PlaygroundTimeout, "Playground snippet timeout")
	flag.StringVar(&cfg.logFile, "log-file", base.LogFile, "Log file path (empty disables logging)")
	flag.StringVar(&cfg.logLevel, "log-level", base.LogLevel, "Log level")
	flag.StringVar(&cfg.guidePath, "guide", base.GuidePath, "YAML guide file (empty uses the built-in guide)")
	flag.BoolVar(&cfg.altScreen, "alt-screen", true, "Use alternate screen buffer")
	flag.Parse()

	cfg.mode = strings.ToLower(strings.TrimSpace(cfg.mode))
	if cfg.mode != string(chat.ModeDeveloper) {
		cfg.mode = string(chat.ModeGuided)
	}
	cfg.dataRoute = strings.ToLower(strings.TrimSpace(cfg.dataRoute))
	if cfg.dataRoute != "schema" {
		cfg.dataRoute = "metadata"
	}
	if cfg.wordInterval <= 0 {
		cfg.wordInterval = 30 * time.Millisecond
	}
	if cfg.playTimeout <= 0 {
		cfg.playTimeout = playground.DefaultTimeout
	}
	return cfg
}

func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			wrapped = append(wrapped, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) <= width {
				current += " " + word
				continue
			}
			wrapped = append(wrapped, current)
			current = word
		}
		wrapped = append(wrapped, current)
	}
	return strings.Join(wrapped, "\n")
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	if limit <= 3 {
		return text[:limit]
	}
	return text[:limit-3] + "..."
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	return truncate(compact, limit)
}

func cycleString(options []string, current string, delta int) string {
	if len(options) == 0 {
		return current
	}
	idx := 0
	for i, option := range options {
		if option == current {
			idx = i
			break
		}
	}
	idx = (idx + delta) % len(options)
	if idx < 0 {
		idx += len(options)
	}
	return options[idx]
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func main() {
	base, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamer-tui: %v\n", err)
		os.Exit(1)
	}
	cfg := parseFlags(base)

	logger, err := logging.New(cfg.logFile, cfg.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamer-tui: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	guide, err := config.LoadGuide(cfg.guidePath)
	if err != nil {
		logger.Warn("guide load failed, using built-in guide", zap.Error(err))
		guide = config.DefaultGuide()
	}

	pipe := pipeline.NewClient(cfg.pipelineURL, cfg.pipelineAPIKey, logger)
	session := chat.NewSession()
	executor := chat.NewTurnExecutor(pipe, logger)
	collector := trace.NewRunCollector()
	runner := chat.NewRunner(executor, session, collector, logger)
	traceClient := trace.NewClient(cfg.traceURL, cfg.traceAPIKey, cfg.traceTimeout, logger)
	binder := trace.NewBinder(traceClient, session)
	play := playground.NewRunner(cfg.playTimeout)

	logger.Info("starting",
		zap.String("thread_id", session.ThreadID()),
		zap.String("route", cfg.dataRoute),
		zap.String("mode", cfg.mode))

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(cfg, guide, runner, binder, play, logger), opts...)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "gamer-tui fatal error: %v\n", err)
		os.Exit(1)
	}
}
