package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgQueueFetched MsgKind = iota
	MsgProgressUpdate
	MsgDispatchComplete
)

type queueData struct {
	videos []models.ScheduledVideo
	today  string
	err    error
}

type dispatchData struct {
	report models.BatchReport
	err    error
}

// queueFetchedMsg is the constructor for [MsgQueueFetched]
func queueFetchedMsg(videos []models.ScheduledVideo, today string, err error) Msg {
	return Msg{kind: MsgQueueFetched, data: queueData{videos, today, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// dispatchCompleteMsg is the constructor for [MsgDispatchComplete]
func dispatchCompleteMsg(report models.BatchReport, err error) Msg {
	return Msg{kind: MsgDispatchComplete, data: dispatchData{report, err}}
}
