package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	ConfirmView
	DispatchView
	ResultView
)

// Queue lists scheduled videos. [tasks.Selector] implements it.
type Queue interface {
	Scheduled(ctx context.Context) ([]models.ScheduledVideo, error)
	Today() string
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	queue        Queue
	runner       tasks.BatchRunner
	width        int
	height       int
	videoList    list.Model
	videos       []models.ScheduledVideo
	today        string
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	log          []string
	report       models.BatchReport
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, queue Queue, runner tasks.BatchRunner) *Model {
	return &Model{
		ctx:       ctx,
		view:      QueueView,
		queue:     queue,
		runner:    runner,
		videoList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by loading the queue.
func (m *Model) Init() tea.Cmd {
	return m.fetchQueue()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.videoList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueueView:
			return m.handleQueueKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case DispatchView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgQueueFetched:
		data := msg.data.(queueData)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.videos = data.videos
		m.today = data.today
		items := make([]list.Item, len(data.videos))
		for i, v := range data.videos {
			items[i] = videoItem{video: v, due: v.DueOn(data.today)}
		}
		m.videoList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.videoList.Title = fmt.Sprintf("Scheduled videos (today: %s UTC)", data.today)
		m.videoList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		if m.progress.Phase == tasks.Cleanup && m.progress.Data != nil {
			m.log = append(m.log, m.progress.Message)
		}
		return m, m.waitForProgress()

	case MsgDispatchComplete:
		data := msg.data.(dispatchData)
		m.report = data.report
		m.err = data.err
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == QueueView {
		return styles.failed.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}

	switch m.view {
	case QueueView:
		return m.renderQueue()
	case ConfirmView:
		return m.renderConfirm()
	case DispatchView:
		return m.renderDispatch()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// due returns the number of queued entries scheduled for today.
func (m *Model) due() int {
	n := 0
	for _, v := range m.videos {
		if v.DueOn(m.today) {
			n++
		}
	}
	return n
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchQueue()
	case key.Matches(msg, m.keys.dispatch):
		if m.err == nil {
			m.view = ConfirmView
		}
		return m, nil
	}
	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = QueueView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = DispatchView
		return m, m.startDispatch()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh), key.Matches(msg, m.keys.back):
		m.view = QueueView
		m.report = models.BatchReport{}
		m.log = nil
		m.err = nil
		return m, m.fetchQueue()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != QueueView {
		return m, nil
	}
	var cmd tea.Cmd
	m.videoList, cmd = m.videoList.Update(msg)
	return m, cmd
}

func (m *Model) fetchQueue() tea.Cmd {
	return func() tea.Msg {
		videos, err := m.queue.Scheduled(m.ctx)
		return queueFetchedMsg(videos, m.queue.Today(), err)
	}
}

// startDispatch runs the batch in the background; the final report arrives after the channel closes.
func (m *Model) startDispatch() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	m.progressChan = progress
	m.log = nil

	go func() {
		report, err := m.runner.Run(m.ctx, progress)
		m.report = report
		m.err = err
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		if progress == nil {
			return dispatchCompleteMsg(m.report, m.err)
		}

		update, ok := <-progress
		if !ok {
			return dispatchCompleteMsg(m.report, m.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderQueue() string {
	helpKeys := []key.Binding{m.keys.dispatch, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	if len(m.videos) == 0 {
		return fmt.Sprintf("%s\nNo videos scheduled.\n\n%s", styles.heading.Render("Scheduled videos"), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.videoList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.heading.Render(fmt.Sprintf("Upload today's videos (%s) to YouTube?", m.today))
	info := fmt.Sprintf("\nDue today: %d\nQueued in total: %d\n", m.due(), len(m.videos))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderDispatch() string {
	title := styles.heading.Render("Dispatching")

	var phase string
	switch m.progress.Phase {
	case tasks.Select:
		phase = "Selecting today's videos..."
	case tasks.Download:
		phase = fmt.Sprintf("Downloading (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Upload:
		phase = fmt.Sprintf("Uploading (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Cleanup:
		phase = fmt.Sprintf("Cleaning up (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n%s", title, styles.phase.Render(phase), m.progress.Message)
	for _, line := range m.log {
		fmt.Fprintf(&b, "\n  %s", line)
	}
	return b.String()
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.failed.Render(fmt.Sprintf("Dispatch failed: %v", m.err)), helpView)
	}

	title := styles.uploaded.Render("✓ " + m.report.Message())
	if m.report.Failed() > 0 {
		title = styles.partial.Render("! " + m.report.Message())
	}

	var b strings.Builder
	for _, r := range m.report.Results {
		if r.Success {
			fmt.Fprintf(&b, "\n  %s %s %s", styles.uploaded.Render("✓"), r.Title, r.YouTubeURL)
		} else {
			fmt.Fprintf(&b, "\n  %s %s: %s", styles.failed.Render("✗"), r.Title, r.Error)
		}
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, b.String(), helpView)
}
