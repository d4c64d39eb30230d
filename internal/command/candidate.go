package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/peerview/peerview/internal/analysis"
	"github.com/peerview/peerview/internal/control"
	"github.com/peerview/peerview/internal/negotiate"
	"github.com/peerview/peerview/internal/rendezvous"
	"github.com/peerview/peerview/internal/rtc"
	"github.com/peerview/peerview/internal/session"
	"github.com/peerview/peerview/internal/ui"
	"github.com/peerview/peerview/internal/version"
)

var candidateCmd = &cobra.Command{
	Use:     "candidate <room-id>",
	Aliases: []string{"c"},
	Short:   "Join a room as the candidate",
	Long: `Join an interview room as the candidate. The candidate publishes its
audio and video tracks and originates the WebRTC offer once the
interviewer is present.

Examples:
  peerview candidate abc123
  peerview candidate abc123 --signaling wss://signal.example.com/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCandidate(args[0])
	},
}

func runCandidate(roomID string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	call, err := newCallContext(ctx, session.RoleCandidate, roomID)
	if err != nil {
		return err
	}
	defer call.Close()

	started := time.Now()
	var reconnects atomic.Int64
	call.channel.OnStatus(func(s rendezvous.Status) {
		switch s {
		case rendezvous.StatusReconnecting:
			reconnects.Add(1)
			ui.PrintWarning("Connection lost, reconnecting...")
		case rendezvous.StatusConnected:
			// The first Connected is reported before this handler exists.
			ui.PrintSuccess("Reconnected")
		case rendezvous.StatusUnavailable:
			ui.PrintError("Signaling server unavailable")
		}
	})

	call.engine.OnStateChange(func(s negotiate.State) {
		if s == negotiate.StateStable {
			ui.PrintSuccessf("Connected to interviewer")
		}
	})

	stream, err := rtc.NewSyntheticStream("candidate-" + call.sess.ID())
	if err != nil {
		return err
	}

	dc, err := call.conn.CreateDataChannel("control")
	if err != nil {
		return err
	}
	link := control.NewLink(dc, control.HelloPayload{
		SessionID: call.sess.ID(),
		Role:      "candidate",
		Version:   version.Version,
	})
	link.OnHello(func(h control.HelloPayload) {
		ui.PrintInfof("Interviewer is running peerview %s", h.Version)
	})

	client := analysis.NewClient(call.cfg.AnalysisURL)
	defer client.EndSessionBeacon(call.sess.ID())

	// Feed the analysis service and publish its results into the room
	// for the interviewer's dashboard.
	pump := analysis.NewPump(client, call.channel, analysis.StaticSource{}, roomID, call.sess.ID())
	go pump.Run(ctx)

	call.life.OnPeerJoined(func() {
		ui.PrintInfof("%s Interviewer joined the room", ui.IconPeer)
	})
	call.life.OnPeerLeft(func() {
		ui.PrintWarning("Interviewer left the room")
	})

	call.life.Start()
	if err := call.engine.StartCall(stream); err != nil {
		return err
	}

	ui.PrintInfof("%s Joined room %s, waiting for the interviewer...", ui.IconRoom, roomID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	select {
	case <-call.life.Terminated():
		fmt.Println()
		ui.PrintInfo("The interviewer ended the interview.")
	case <-sig:
		fmt.Println()
		link.SendBye()
		ui.PrintInfo("Leaving the room.")
	}

	ui.RenderSessionSummary("Interview Summary", ui.SessionSummary{
		Room:       roomID,
		Role:       "Candidate",
		Duration:   time.Since(started),
		Reconnects: int(reconnects.Load()),
	})
	return nil
}

func init() {
	rootCmd.AddCommand(candidateCmd)
}
