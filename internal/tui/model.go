// Package tui is the terminal front end over the client flows.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hairguard/hairguard/internal/checkin"
	"github.com/hairguard/hairguard/internal/dashboard"
	"github.com/hairguard/hairguard/internal/foodsniper"
	"github.com/hairguard/hairguard/internal/mentalshield"
	"github.com/hairguard/hairguard/internal/session"
	"github.com/hairguard/hairguard/internal/ui"
)

// Screen is one tab of the UI.
type Screen int

const (
	ScreenCheckIn Screen = iota
	ScreenDashboard
	ScreenFood
	ScreenChat
	screenCount
)

var screenTitles = [...]string{"チェックイン", "ダッシュボード", "フードスナイパー", "メンタルシールド"}

func (s Screen) String() string {
	return screenTitles[s]
}

// Session is the part of the session guard the UI watches.
type Session interface {
	State() session.State
	Changes() <-chan session.State
}

// Flows are the screens' state machines.
type Flows struct {
	CheckIn *checkin.Flow
	Series  *dashboard.Series
	Reports *dashboard.Reports
	Food    *foodsniper.Flow
	Chat    *mentalshield.Flow
}

// SessionMsg delivers a new identity state.
type SessionMsg session.State

// DoneMsg reports that an action finished. The flows hold the outcome.
type DoneMsg struct {
	Action Action
	Err    error
}

// Action identifies a flow operation started from the UI.
type Action int

const (
	ActionSubmit Action = iota
	ActionLoadSeries
	ActionReport
	ActionLocate
	ActionHistory
	ActionRecommend
	ActionChat
)

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	session Session
	flows   Flows

	screen   Screen
	decision session.Decision
	input    textinput.Model
	spinner  spinner.Model
	running  map[Action]bool
	width    int
}

// New builds the model. ctx bounds every flow call.
func New(ctx context.Context, sess Session, flows Flows) Model {
	in := textinput.New()
	in.CharLimit = 512
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.HighlightStyle

	m := Model{
		ctx:      ctx,
		session:  sess,
		flows:    flows,
		decision: sess.State().Decide(),
		input:    in,
		spinner:  sp,
		running:  make(map[Action]bool),
		width:    80,
	}
	m.setPlaceholder()
	return m
}

// Init waits for identity and starts the spinner.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, waitSession(m.session)}
	if m.decision == session.Allow {
		cmds = append(cmds, m.startup()...)
	}
	return tea.Batch(cmds...)
}

func waitSession(sess Session) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-sess.Changes()
		if !ok {
			return nil
		}
		return SessionMsg(st)
	}
}

// startup loads what the screens show before any key is pressed.
func (m Model) startup() []tea.Cmd {
	return []tea.Cmd{
		m.start(ActionLoadSeries),
		m.start(ActionLocate),
		m.start(ActionHistory),
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-4)
		return m, nil

	case SessionMsg:
		prev := m.decision
		m.decision = session.State(msg).Decide()
		cmds := []tea.Cmd{waitSession(m.session)}
		if prev != session.Allow && m.decision == session.Allow {
			cmds = append(cmds, m.startup()...)
		}
		return m, tea.Batch(cmds...)

	case DoneMsg:
		// failures are shown through the flows' own messages
		delete(m.running, msg.Action)
		if msg.Action == ActionSubmit && msg.Err == nil {
			return m, m.start(ActionLoadSeries)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab":
		m.screen = (m.screen + 1) % screenCount
		m.setPlaceholder()
		return m, nil
	case "shift+tab":
		m.screen = (m.screen + screenCount - 1) % screenCount
		m.setPlaceholder()
		return m, nil
	}
	if m.decision != session.Allow {
		return m, nil
	}

	if m.screen == ScreenDashboard {
		switch msg.String() {
		case "r":
			return m, m.start(ActionLoadSeries)
		case "g":
			return m, m.start(ActionReport)
		}
		return m, nil
	}

	if msg.Type == tea.KeyEnter {
		var action Action
		switch m.screen {
		case ScreenCheckIn:
			action = ActionSubmit
		case ScreenFood:
			action = ActionRecommend
		default:
			action = ActionChat
		}
		cmd := m.start(action)
		if cmd != nil {
			m.input.Reset()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start runs action unless it, or the flow behind it, is already busy. The
// running map is shared by value copies of the model, so marking it here is
// visible to the next Update.
func (m Model) start(action Action) tea.Cmd {
	if m.busy(action) {
		return nil
	}
	cmd := m.run(action)
	if cmd != nil {
		m.running[action] = true
	}
	return cmd
}

func (m Model) busy(action Action) bool {
	if m.running[action] {
		return true
	}
	switch action {
	case ActionSubmit:
		return m.flows.CheckIn.State().Status.Busy()
	case ActionReport:
		return m.flows.Reports.State().Status == dashboard.ReportLoading
	case ActionRecommend:
		return m.flows.Food.State().Status == foodsniper.StatusLoading
	case ActionChat:
		return m.flows.Chat.State().Status == mentalshield.StatusLoading
	}
	return false
}

func (m Model) run(action Action) tea.Cmd {
	ctx := m.ctx
	text := strings.TrimSpace(m.input.Value())
	var fn func() error

	switch action {
	case ActionSubmit:
		if text == "" {
			return nil
		}
		fn = func() error {
			file, err := checkin.ReadFile(text)
			if err != nil {
				return err
			}
			if err := m.flows.CheckIn.Select(file); err != nil {
				return err
			}
			return m.flows.CheckIn.Submit(ctx)
		}
	case ActionLoadSeries:
		fn = func() error { return m.flows.Series.Load(ctx) }
	case ActionReport:
		fn = func() error { return m.flows.Reports.Generate(ctx) }
	case ActionLocate:
		fn = func() error { return m.flows.Food.AcquireLocation(ctx) }
	case ActionHistory:
		fn = func() error { return m.flows.Food.LoadHistory(ctx) }
	case ActionRecommend:
		if text == "" {
			text = foodsniper.DefaultMessage
		}
		fn = func() error { return m.flows.Food.Recommend(ctx, text) }
	case ActionChat:
		if text == "" {
			text = mentalshield.DefaultMessage
		}
		fn = func() error { return m.flows.Chat.Send(ctx, text) }
	default:
		return nil
	}
	return func() tea.Msg {
		return DoneMsg{Action: action, Err: fn()}
	}
}

func (m *Model) setPlaceholder() {
	switch m.screen {
	case ScreenCheckIn:
		m.input.Placeholder = "写真のパス"
	case ScreenFood:
		m.input.Placeholder = foodsniper.DefaultMessage
	case ScreenChat:
		m.input.Placeholder = mentalshield.DefaultMessage
	default:
		m.input.Placeholder = ""
	}
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.tabs())
	b.WriteString("\n\n")

	switch m.decision {
	case session.Wait:
		b.WriteString(m.spinner.View() + " 読み込み中…\n")
		return b.String()
	case session.RedirectLogin:
		b.WriteString(ui.ErrorStyle.Render("ログインが必要です。") + "\n")
		b.WriteString(ui.DimStyle.Render("hairguard login --email you@example.com を実行してください。") + "\n")
		return b.String()
	}

	switch m.screen {
	case ScreenCheckIn:
		b.WriteString(m.checkInView())
	case ScreenDashboard:
		b.WriteString(m.dashboardView())
	case ScreenFood:
		b.WriteString(m.foodView())
	case ScreenChat:
		b.WriteString(m.chatView())
	}

	b.WriteString("\n")
	if m.screen != ScreenDashboard {
		b.WriteString(m.input.View() + "\n")
	}
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) tabs() string {
	tabs := make([]string, 0, screenCount)
	for s := Screen(0); s < screenCount; s++ {
		style := ui.TabStyle
		if s == m.screen {
			style = ui.ActiveTabStyle
		}
		tabs = append(tabs, style.Render(s.String()))
	}
	return ui.TitleStyle.Render("HairGuard") + "  " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) footer() string {
	switch m.screen {
	case ScreenDashboard:
		return ui.KeyHelp("r", "再読み込み", "g", "レポート生成", "tab", "次の画面", "esc", "終了")
	case ScreenCheckIn:
		return ui.KeyHelp("enter", "アップロードして解析", "tab", "次の画面", "esc", "終了")
	default:
		return ui.KeyHelp("enter", "送信", "tab", "次の画面", "esc", "終了")
	}
}

func (m Model) busyLine(text string) string {
	return m.spinner.View() + " " + ui.StatusStyle.Render(text) + "\n"
}

func (m Model) checkInView() string {
	st := m.flows.CheckIn.State()
	var b strings.Builder
	switch st.Status {
	case checkin.StatusUploading:
		b.WriteString(m.busyLine("アップロード中…"))
	case checkin.StatusAnalyzing:
		b.WriteString(m.busyLine("解析中…"))
	}
	if p := st.Preview; p != nil {
		fmt.Fprintf(&b, "%s  %s  %dx%d  %d bytes\n", p.Name, p.ContentType, p.Width, p.Height, p.Size)
	}
	if st.Status == checkin.StatusError && st.Message != "" {
		b.WriteString(ui.ErrorStyle.Render(st.Message) + "\n")
	}
	if st.Result != nil {
		b.WriteString(checkin.FormatResult(st.Result) + "\n")
	}
	return b.String()
}

func (m Model) dashboardView() string {
	st := m.flows.Series.State()
	var b strings.Builder
	switch st.View() {
	case dashboard.ViewLoading:
		b.WriteString(m.busyLine("読み込み中…"))
	case dashboard.ViewError:
		b.WriteString(ui.ErrorStyle.Render(st.Message) + "\n")
	case dashboard.ViewEmpty:
		b.WriteString(ui.DimStyle.Render("まだ解析結果がありません。") + "\n")
	default:
		values := make([]float64, len(st.Points))
		for i, p := range st.Points {
			values[i] = p.DensityIndex
		}
		if dashboard.DefaultSparkline(st.Points) != nil {
			b.WriteString(ui.HighlightStyle.Render(ui.Sparkline(values)) + "\n")
		}
		sum := dashboard.Summarize(st.Points)
		fmt.Fprintf(&b, "最新 %.3f (%s)", sum.Latest.DensityIndex, sum.Latest.Date.Local().Format("2006/01/02"))
		if sum.HasDelta {
			b.WriteString("  前回比 " + ui.Delta(sum.Delta))
		}
		b.WriteString("\n")
	}

	rep := m.flows.Reports.State()
	b.WriteString("\n")
	switch rep.Status {
	case dashboard.ReportLoading:
		b.WriteString(m.busyLine("レポート生成中…"))
	case dashboard.ReportError:
		b.WriteString(ui.ErrorStyle.Render(rep.Message) + "\n")
	}
	if rep.Report != nil {
		b.WriteString(ui.CardStyle.Render(strings.TrimRight(dashboard.FormatReport(rep.Report), "\n")) + "\n")
	}
	return b.String()
}

func (m Model) foodView() string {
	st := m.flows.Food.State()
	var b strings.Builder
	if st.Location != nil {
		b.WriteString(ui.DimStyle.Render(fmt.Sprintf("現在地 %.5f, %.5f", st.Location.Lat, st.Location.Lng)) + "\n")
	}
	if st.Status == foodsniper.StatusLoading {
		b.WriteString(m.busyLine("検索中…"))
	}
	if st.Message != "" {
		b.WriteString(ui.ErrorStyle.Render(st.Message) + "\n")
	}
	if st.Result != nil {
		b.WriteString(foodsniper.FormatResult(st.Result))
	}
	b.WriteString("\n" + ui.TitleStyle.Render("履歴") + "\n")
	if st.HistoryMessage != "" {
		b.WriteString(ui.ErrorStyle.Render(st.HistoryMessage) + "\n")
	} else {
		b.WriteString(foodsniper.FormatHistory(st.History))
	}
	return b.String()
}

func (m Model) chatView() string {
	st := m.flows.Chat.State()
	var b strings.Builder
	switch {
	case st.Status == mentalshield.StatusLoading:
		b.WriteString(m.busyLine("考え中…"))
	case st.Status == mentalshield.StatusError:
		b.WriteString(ui.ErrorStyle.Render(st.Message) + "\n")
	}
	if r := st.Result; r != nil {
		for _, c := range r.Cards {
			b.WriteString(ui.CardStyle.Render(ui.TitleStyle.Render(c.Agent)+"\n"+c.Text) + "\n")
		}
		b.WriteString(ui.HighlightStyle.Render("まとめ") + "\n" + r.Summary + "\n")
	}
	return b.String()
}
