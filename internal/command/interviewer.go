package command

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/peerview/peerview/internal/control"
	"github.com/peerview/peerview/internal/rendezvous"
	"github.com/peerview/peerview/internal/rtc"
	"github.com/peerview/peerview/internal/session"
	"github.com/peerview/peerview/internal/signal"
	"github.com/peerview/peerview/internal/telemetry"
	"github.com/peerview/peerview/internal/ui"
	"github.com/peerview/peerview/internal/version"
)

var interviewerCmd = &cobra.Command{
	Use:     "interviewer <room-id>",
	Aliases: []string{"i"},
	Short:   "Join a room as the interviewer",
	Long: `Join an interview room as the interviewer. The interviewer answers the
candidate's offer and watches live emotion and vocal telemetry on a
terminal dashboard. Quitting the dashboard ends the interview for both
sides.

Examples:
  peerview interviewer abc123
  peerview interviewer abc123 --signaling wss://signal.example.com/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInterviewer(args[0])
	},
}

func runInterviewer(roomID string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	call, err := newCallContext(ctx, session.RoleInterviewer, roomID)
	if err != nil {
		return err
	}
	defer call.Close()

	started := time.Now()
	model := ui.NewCallModel(roomID)
	defer model.Stop()

	reconnects := 0
	call.channel.OnStatus(func(s rendezvous.Status) {
		switch s {
		case rendezvous.StatusReconnecting:
			reconnects++
			model.TryUpdate(ui.CallUpdate{Type: ui.UpdateStatus, Message: "Connection lost, reconnecting..."})
		case rendezvous.StatusUnavailable:
			model.TryUpdate(ui.CallUpdate{Type: ui.UpdateError, Error: rendezvous.ErrSignalingUnavailable})
		}
	})

	call.conn.OnDataChannel(func(dc rtc.DataChannel) {
		if dc.Label() != "control" {
			return
		}
		link := control.NewLink(dc, control.HelloPayload{
			SessionID: call.sess.ID(),
			Role:      "interviewer",
			Version:   version.Version,
		})
		link.OnBye(func() {
			model.TryUpdate(ui.CallUpdate{Type: ui.UpdatePeerLeft})
		})
	})

	relay := telemetry.NewRelay(roomID)
	relay.OnUpdate(func(snap telemetry.Snapshot) {
		model.TryUpdate(ui.CallUpdate{Type: ui.UpdateTelemetry, Snapshot: &snap})
	})
	go relay.Run(call.channel.Subscribe(signal.TypeAIResults, signal.TypeVocalResults))

	call.life.OnPeerJoined(func() {
		model.TryUpdate(ui.CallUpdate{Type: ui.UpdatePeerJoined})
	})
	call.life.OnPeerLeft(func() {
		model.TryUpdate(ui.CallUpdate{Type: ui.UpdatePeerLeft})
	})
	go func() {
		<-call.life.Terminated()
		model.TryUpdate(ui.CallUpdate{Type: ui.UpdateTerminated})
	}()

	call.life.Start()
	model.TryUpdate(ui.CallUpdate{Type: ui.UpdateStatus, Message: "Waiting for the candidate..."})

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	// Quitting the dashboard ends the interview for everyone still in the
	// room. If the room was already terminated this is a no-op upstream.
	select {
	case <-call.life.Terminated():
	default:
		if err := call.life.TerminateRoom(); err == nil {
			select {
			case <-call.life.Terminated():
			case <-time.After(2 * time.Second):
			}
		}
	}

	summary := ui.SessionSummary{
		Room:       roomID,
		Role:       "Interviewer",
		Duration:   time.Since(started),
		Reconnects: reconnects,
	}
	if snap, ok := relay.Latest(telemetry.KindAI); ok && snap.AI != nil {
		summary.DominantEmotion = snap.AI.DominantEmotion
	}
	if snap, ok := relay.Latest(telemetry.KindVocal); ok && snap.Vocal != nil {
		summary.VocalStatus = snap.Vocal.VocalStatus
	}
	ui.RenderSessionSummary("Interview Summary", summary)
	return nil
}

func init() {
	rootCmd.AddCommand(interviewerCmd)
}
