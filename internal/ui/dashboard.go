package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/peerview/peerview/internal/telemetry"
)

// CallState represents the current state of the call
type CallState int

const (
	StateConnecting CallState = iota
	StateWaitingForPeer
	StateLive
	StateTerminated
	StateError
)

// CallUpdate is a message sent from external goroutines to update the UI
type CallUpdate struct {
	Type     CallUpdateType
	Message  string
	Snapshot *telemetry.Snapshot
	Error    error
}

type CallUpdateType int

const (
	UpdateStatus CallUpdateType = iota
	UpdatePeerJoined
	UpdatePeerLeft
	UpdateTelemetry
	UpdateTerminated
	UpdateError
)

// CallModel is the Bubble Tea model for the interviewer dashboard: call
// state on top, the latest emotion and vocal snapshots below.
type CallModel struct {
	room string

	state    CallState
	stateMsg string

	ai    *telemetry.Snapshot
	vocal *telemetry.Snapshot

	spinner spinner.Model

	startTime time.Time

	mu sync.RWMutex

	updateChan chan CallUpdate
	done       chan struct{}

	width int

	err error
}

// NewCallModel creates the dashboard model for a room.
func NewCallModel(room string) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		room:       room,
		state:      StateConnecting,
		stateMsg:   "Connecting to signaling server...",
		spinner:    s,
		startTime:  time.Now(),
		updateChan: make(chan CallUpdate, 100),
		done:       make(chan struct{}),
		width:      80,
	}
}

// TryUpdate queues an update for the dashboard without ever blocking the
// caller. Updates arriving after the UI stopped draining, or faster than
// it consumes them, are dropped; every update here is a snapshot the next
// one supersedes.
func (m *CallModel) TryUpdate(update CallUpdate) {
	select {
	case m.updateChan <- update:
	default:
	}
}

// Stop releases the goroutine waiting on updates.
func (m *CallModel) Stop() {
	close(m.done)
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdates(),
	)
}

// waitForUpdates returns a command that listens for external updates
func (m *CallModel) waitForUpdates() tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-m.updateChan:
			return update
		case <-m.done:
			return nil
		}
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case CallUpdate:
		if quit := m.handleUpdate(msg); quit {
			return m, tea.Quit
		}
		cmds = append(cmds, m.waitForUpdates())
	}

	return m, tea.Batch(cmds...)
}

func (m *CallModel) handleUpdate(update CallUpdate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch update.Type {
	case UpdateStatus:
		m.stateMsg = update.Message

	case UpdatePeerJoined:
		m.state = StateLive
		m.stateMsg = "Candidate connected"

	case UpdatePeerLeft:
		m.state = StateWaitingForPeer
		m.stateMsg = "Candidate disconnected, waiting for them to return..."

	case UpdateTelemetry:
		if update.Snapshot == nil {
			break
		}
		switch update.Snapshot.Kind {
		case telemetry.KindAI:
			m.ai = update.Snapshot
		case telemetry.KindVocal:
			m.vocal = update.Snapshot
		}

	case UpdateTerminated:
		m.state = StateTerminated
		return true

	case UpdateError:
		m.state = StateError
		m.err = update.Error
		return true
	}
	return false
}

func (m *CallModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s Interview Room %s", IconRoom, m.room)))
	b.WriteString("\n")

	switch m.state {
	case StateConnecting:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.stateMsg))

	case StateWaitingForPeer:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.stateMsg))

	case StateLive:
		b.WriteString(fmt.Sprintf("%s %s  %s\n", IconPeer, m.stateMsg,
			MutedStyle.Render(time.Since(m.startTime).Round(time.Second).String())))
		b.WriteString("\n")
		b.WriteString(m.viewTelemetry())

	case StateTerminated:
		b.WriteString(SuccessStyle.Render("Interview ended.") + "\n")

	case StateError:
		b.WriteString(ErrorBoxStyle.Render(FormatError(m.err)) + "\n")
	}

	b.WriteString("\n" + MutedStyle.Render("press q to leave"))
	return b.String()
}

func (m *CallModel) viewTelemetry() string {
	var b strings.Builder

	if m.ai != nil && m.ai.AI != nil {
		ai := m.ai.AI
		if ai.Detected {
			b.WriteString(fmt.Sprintf("%s Emotion: %s  confidence %.0f%%\n",
				IconCamera, BoldStyle.Render(ai.DominantEmotion), ai.ConfidenceScore*100))
			b.WriteString(emotionBars(ai.Emotions, m.width))
		} else {
			b.WriteString(fmt.Sprintf("%s %s\n", IconCamera, WarningStyle.Render("No face detected")))
		}
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n", IconCamera, MutedStyle.Render("Waiting for emotion data...")))
	}

	if m.vocal != nil && m.vocal.Vocal != nil {
		vocal := m.vocal.Vocal
		speaking := MutedStyle.Render("silent")
		if vocal.IsSpeaking {
			speaking = SuccessStyle.Render("speaking")
		}
		b.WriteString(fmt.Sprintf("%s %s  fluency %.0f%%  %s\n",
			IconMic, vocal.VocalStatus, vocal.Fluency*100, speaking))
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n", IconMic, MutedStyle.Render("Waiting for vocal data...")))
	}

	return b.String()
}

// emotionBars renders one bar per emotion, strongest first.
func emotionBars(emotions map[string]float64, width int) string {
	if len(emotions) == 0 {
		return ""
	}

	names := make([]string, 0, len(emotions))
	for name := range emotions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return emotions[names[i]] > emotions[names[j]] })

	barWidth := min(30, width-30)
	if barWidth < 5 {
		barWidth = 5
	}

	var b strings.Builder
	for _, name := range names {
		score := emotions[name]
		filled := int(score * float64(barWidth))
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		b.WriteString(fmt.Sprintf("   %-10s %s %3.0f%%\n", name, MutedStyle.Render(bar), score*100))
	}
	return b.String()
}
