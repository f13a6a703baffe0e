package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/map-engine/internal/services/events"
	"github.com/jwebster45206/map-engine/internal/session"
	"github.com/jwebster45206/map-engine/pkg/scenario"
)

// maxLogLines caps the event log in the side panel.
const maxLogLines = 100

const refreshInterval = time.Second

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api          *apiClient
	view         *session.View
	scenario     *scenario.Scenario
	mapViewport  viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool
	selected     int
	log          []string

	// Scenario selection state
	showScenarioModal bool
	scenarios         []string
	scenarioMap       map[string]string
	selectedScenario  int
	loadingScenarios  bool

	// Quit confirmation state
	showQuitModal bool
}

type viewMsg struct {
	view *session.View
	err  error
}

type scenariosLoadedMsg struct {
	scenarios   []string
	scenarioMap map[string]string
	err         error
}

type sessionCreatedMsg struct {
	view     *session.View
	scenario *scenario.Scenario
	err      error
}

type refreshTickMsg struct{}

var (
	mapPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	metaPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

// stateColors colors stage labels by state.
var stateColors = map[string]lipgloss.Color{
	"locked":    "240", // dark grey
	"unlocking": "214", // yellow
	"open":      "39",  // teal
	"opened":    "212", // purple
	"completed": "214", // yellow
	"cleared":   "86",  // green
	"sealed":    "196", // red
}

var titleCaser = cases.Title(language.English)

func NewConsoleUI(api *apiClient) ConsoleUI {
	mapVp := viewport.New(50, 20)
	mapVp.MouseWheelEnabled = true

	return ConsoleUI{
		api:               api,
		mapViewport:       mapVp,
		metaViewport:      viewport.New(20, 20),
		showScenarioModal: true,
		loadingScenarios:  true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadScenarios()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showScenarioModal {
		return m.updateScenarioModal(msg)
	}
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.render()

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case viewMsg:
		m.loading = false
		if msg.err != nil {
			m.addLog(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.applyView(msg.view)
		}
		m.render()
		return m, nil

	case refreshTickMsg:
		if m.view == nil || m.view.Finished || m.loading {
			return m, refreshTick()
		}
		return m, tea.Batch(m.fetch(func() (*session.View, error) { return m.api.getSession(m.view.ID) }), refreshTick())
	}

	m.mapViewport, vpCmd = m.mapViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)
	return m, tea.Batch(vpCmd, mvCmd)
}

// handleKey maps keys to session actions. handled is false for keys the
// viewports should see.
func (m *ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.showQuitModal = true
		return nil, true
	case tea.KeyUp:
		if m.selected > 0 {
			m.selected--
			m.render()
		}
		return nil, true
	case tea.KeyDown:
		if m.view != nil && m.selected < len(m.view.Stages)-1 {
			m.selected++
			m.render()
		}
		return nil, true
	case tea.KeyEnter:
		if st, ok := m.selectedStage(); ok {
			return m.send(func(id string) (*session.View, error) { return m.api.click(id, st.ID) }), true
		}
		return nil, true
	}

	if m.view == nil || m.loading {
		return nil, false
	}
	switch msg.String() {
	case "p":
		return m.answerAll(true), true
	case "w":
		return m.answerAll(false), true
	case "c":
		return m.sendAction("continue"), true
	case "x":
		return m.sendAction("close"), true
	case "s":
		return m.sendAction("solutions"), true
	case "r":
		m.log = nil
		return m.sendAction("reset"), true
	case "f":
		return m.sendAction("finish"), true
	case "y":
		if err := clipboard.WriteAll(m.view.ID); err != nil {
			m.addLog(errorStyle.Render("Copy failed: " + err.Error()))
		} else {
			m.addLog("Session ID copied to clipboard")
		}
		m.render()
		return nil, true
	}
	return nil, false
}

func (m *ConsoleUI) resize() {
	mapWidth := int(float64(m.width)*0.6) - 4
	metaWidth := m.width - mapWidth - 6
	m.mapViewport.Width = mapWidth - 2
	m.mapViewport.Height = m.height - 4
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
}

func (m *ConsoleUI) applyView(v *session.View) {
	for _, e := range v.Events {
		if line := describeEvent(e); line != "" {
			m.addLog(line)
		}
	}
	m.view = v
	if m.selected >= len(v.Stages) {
		m.selected = max(len(v.Stages)-1, 0)
	}
}

func (m *ConsoleUI) addLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m *ConsoleUI) render() {
	if m.view == nil {
		return
	}
	m.mapViewport.SetContent(m.writeMap())
	m.metaViewport.SetContent(m.writeMeta())
	m.metaViewport.GotoBottom()
}

func (m ConsoleUI) selectedStage() (session.StageView, bool) {
	if m.view == nil || m.selected >= len(m.view.Stages) {
		return session.StageView{}, false
	}
	return m.view.Stages[m.selected], true
}

// writeMap lists the stages; hidden stages stay anonymous.
func (m ConsoleUI) writeMap() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.view.Name))
	b.WriteString("\n\n")
	for i, st := range m.view.Stages {
		line := "???"
		if st.Visible {
			line = fmt.Sprintf("%-20s %s", stageLabel(st), stateLabel(st.State))
			if st.MaxScore > 0 {
				line += fmt.Sprintf("  %d/%d", st.Score, st.MaxScore)
			}
			if st.ID == m.view.OpenStage {
				line += "  ◀ open"
			}
		}
		if i == m.selected {
			b.WriteString(cursorStyle.Render("▶ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(promptStyle.Render(m.helpText()))
	return b.String()
}

func (m ConsoleUI) helpText() string {
	switch {
	case m.view.Finished:
		return "r retry · y copy session id · Esc quit"
	case m.view.GameOver && !m.view.ShowingSolutions:
		return "s show solutions · r retry · Esc quit"
	case m.view.OpenStage != "":
		return "p answer perfectly · w answer wrong · c continue · x close"
	default:
		return "↑/↓ select · Enter open · f finish · y copy session id · Esc quit"
	}
}

func (m ConsoleUI) writeMeta() string {
	v := m.view
	var b strings.Builder
	b.WriteString(titleStyle.Render("Progress"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Score:  %d / %d\n", v.Score, v.MaxScore)
	fmt.Fprintf(&b, "Stages: %d / %d cleared\n", v.ClearedStages, v.TotalStages)
	if v.Lives != nil {
		fmt.Fprintf(&b, "Lives:  %s\n", strings.Repeat("♥ ", *v.Lives))
	}
	if v.RemainingTimeMS != nil {
		fmt.Fprintf(&b, "Time:   %s\n", (time.Duration(*v.RemainingTimeMS) * time.Millisecond).Round(time.Second))
	}
	switch {
	case v.Finished:
		b.WriteString(titleStyle.Render("Finished!") + "\n")
	case v.GameOver:
		b.WriteString(errorStyle.Render("Game over: "+v.GameOverReason) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Events"))
	b.WriteString("\n")
	width := max(m.metaViewport.Width-2, 10)
	for _, line := range m.log {
		b.WriteString(wordwrap.String(line, width))
		b.WriteString("\n")
	}
	return b.String()
}

func stageLabel(st session.StageView) string {
	label := st.ID
	if st.Label != "" {
		label = st.Label
	}
	if st.Special != "" {
		label += " ★"
	}
	return label
}

func stateLabel(state string) string {
	style := lipgloss.NewStyle()
	if c, ok := stateColors[state]; ok {
		style = style.Foreground(c)
	}
	return style.Render(titleCaser.String(state))
}

// describeEvent turns a notification into a log line. Frequent events
// return "".
func describeEvent(e events.Event) string {
	switch e.Type {
	case events.EventStageStateChanged:
		return fmt.Sprintf("%v is now %s", e.Data["stage_id"], titleCaser.String(fmt.Sprint(e.Data["to"])))
	case events.EventAccessDenied:
		if e.Data["message_key"] == "locked" {
			return fmt.Sprintf("%v is locked", e.Data["stage_id"])
		}
		return fmt.Sprintf("%v is not available yet", e.Data["stage_id"])
	case events.EventExerciseCompleted:
		return fmt.Sprintf("Finished %v with %v/%v", e.Data["stage_id"], e.Data["score"], e.Data["max_score"])
	case events.EventLivesChanged:
		if e.Data["unlimited"] == true {
			return ""
		}
		return fmt.Sprintf("Lives left: %v", e.Data["lives"])
	case events.EventTimerWarning:
		return "Time is running out"
	case events.EventTimeout:
		return "Time is up"
	case events.EventSpecialStage:
		return fmt.Sprintf("Found %v at %v", e.Data["special"], e.Data["stage_id"])
	case events.EventOpenLink:
		return fmt.Sprintf("Link: %v", e.Data["url"])
	case events.EventFinishAvailable:
		return "You may finish the map now (f)"
	case events.EventFinished:
		return fmt.Sprintf("Map finished with %v/%v", e.Data["score"], e.Data["max_score"])
	case events.EventGameOver:
		return fmt.Sprintf("Game over (%v)", e.Data["reason"])
	}
	return ""
}

// answerAll scores every exercise of the open stage.
func (m *ConsoleUI) answerAll(correct bool) tea.Cmd {
	stageID := m.view.OpenStage
	if stageID == "" || m.scenario == nil {
		return nil
	}
	st := m.scenario.Stage(stageID)
	if st == nil || st.Content == nil {
		return nil
	}
	exercises := st.Content.Exercises
	return m.send(func(id string) (*session.View, error) {
		var v *session.View
		merged := &session.View{}
		for _, ex := range exercises {
			maxScore := max(ex.MaxScore, 1)
			score := 0
			if correct {
				score = maxScore
			}
			var err error
			if v, err = m.api.score(id, stageID, ex.ID, score, maxScore); err != nil {
				return nil, err
			}
			merged.Events = append(merged.Events, v.Events...)
		}
		if v == nil {
			return m.api.getSession(id)
		}
		v.Events = merged.Events
		return v, nil
	})
}

func (m *ConsoleUI) sendAction(name string) tea.Cmd {
	return m.send(func(id string) (*session.View, error) { return m.api.action(id, name) })
}

func (m *ConsoleUI) send(fn func(id string) (*session.View, error)) tea.Cmd {
	if m.view == nil || m.loading {
		return nil
	}
	m.loading = true
	id := m.view.ID
	return m.fetch(func() (*session.View, error) { return fn(id) })
}

func (m ConsoleUI) fetch(fn func() (*session.View, error)) tea.Cmd {
	return func() tea.Msg {
		v, err := fn()
		return viewMsg{view: v, err: err}
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

func (m ConsoleUI) loadScenarios() tea.Cmd {
	return func() tea.Msg {
		names, scenarioMap, err := m.api.listScenarios()
		return scenariosLoadedMsg{names, scenarioMap, err}
	}
}

func (m ConsoleUI) createSession(scenarioFile string) tea.Cmd {
	return func() tea.Msg {
		sc, err := m.api.getScenario(scenarioFile)
		if err != nil {
			return sessionCreatedMsg{err: err}
		}
		v, err := m.api.createSession(scenarioFile)
		return sessionCreatedMsg{view: v, scenario: sc, err: err}
	}
}

func (m ConsoleUI) updateScenarioModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case scenariosLoadedMsg:
		m.loadingScenarios = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.scenarios = msg.scenarios
			m.scenarioMap = msg.scenarioMap
		}

	case sessionCreatedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.scenario = msg.scenario
		m.showScenarioModal = false
		if m.width > 0 && m.height > 0 {
			m.resize()
		}
		m.applyView(msg.view)
		m.ready = true
		m.render()
		return m, refreshTick()

	case tea.KeyMsg:
		if m.loadingScenarios {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		}
		if m.err != nil {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.selectedScenario > 0 {
				m.selectedScenario--
			}
		case tea.KeyDown:
			if m.selectedScenario < len(m.scenarios)-1 {
				m.selectedScenario++
			}
		case tea.KeyEnter:
			if len(m.scenarios) > 0 && !m.loading {
				scenarioName := m.scenarios[m.selectedScenario]
				m.loading = true
				return m, m.createSession(m.scenarioMap[scenarioName])
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		}
		switch msg.String() {
		case "y", "Y":
			return m, tea.Quit
		case "n", "N":
			m.showQuitModal = false
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is saved with the session.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderScenarioModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingScenarios:
		content.WriteString(modalTitleStyle.Render("Loading Maps..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch available maps..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(wordwrap.String(m.err.Error(), 50)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Starting Map..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Map"))
		content.WriteString("\n\n")
		for i, name := range m.scenarios {
			if i == m.selectedScenario {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", name)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", name)))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showScenarioModal {
		return m.renderScenarioModal()
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	mapWidth := int(float64(m.width)*0.6) - 4
	metaWidth := m.width - mapWidth - 6

	mapPanel := mapPanelStyle.Width(mapWidth).Height(m.height - 2).Render(m.mapViewport.View())
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(m.metaViewport.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, mapPanel, metaPanel)
}
