package command

import (
	"context"

	"github.com/peerview/peerview/internal/config"
	"github.com/peerview/peerview/internal/negotiate"
	"github.com/peerview/peerview/internal/rendezvous"
	"github.com/peerview/peerview/internal/room"
	"github.com/peerview/peerview/internal/rtc"
	"github.com/peerview/peerview/internal/session"
	"github.com/peerview/peerview/internal/ui"
)

var (
	flagConfig    string
	flagSignaling string
	flagAnalysis  string
	flagSTUN      string
	flagTURN      string
	flagTURNUser  string
	flagTURNPass  string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to config file")
	pf.StringVar(&flagSignaling, "signaling", "", "Signaling server websocket URL")
	pf.StringVar(&flagAnalysis, "analysis", "", "Analysis service base URL")
	pf.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	pf.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
}

// loadConfig reads the config file and applies flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagSignaling != "" {
		cfg.SignalingURL = flagSignaling
	}
	if flagAnalysis != "" {
		cfg.AnalysisURL = flagAnalysis
	}
	if flagSTUN != "" {
		cfg.STUNServers = []string{flagSTUN}
	}
	if flagTURN != "" {
		cfg.TURNServer = flagTURN
		cfg.TURNUsername = flagTURNUser
		cfg.TURNPassword = flagTURNPass
	}
	return cfg, nil
}

// callContext bundles everything one call needs.
type callContext struct {
	cfg     *config.Config
	channel *rendezvous.Channel
	conn    *rtc.PionConn
	sess    *session.Session
	engine  *negotiate.Engine
	life    *room.Lifecycle
}

// newCallContext connects to the signaling server and assembles the peer
// connection, negotiation engine, and room lifecycle for the given role.
func newCallContext(ctx context.Context, role session.Role, roomID string) (*callContext, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	channel := rendezvous.NewChannel(cfg.SignalingURL, rendezvous.Options{})

	sp := ui.NewConnectionSpinner("Connecting to signaling server...")
	sp.Start()
	if err := channel.Connect(ctx); err != nil {
		sp.Error("Could not reach the signaling server")
		return nil, err
	}
	sp.Stop()

	conn, err := rtc.NewPionConn(cfg.ICEServers())
	if err != nil {
		channel.Close()
		return nil, err
	}

	sess := session.New(role, roomID)
	engine := negotiate.NewEngine(sess, conn, channel)
	life := room.NewLifecycle(sess, channel, engine)

	return &callContext{
		cfg:     cfg,
		channel: channel,
		conn:    conn,
		sess:    sess,
		engine:  engine,
		life:    life,
	}, nil
}

// Close tears the call down: peer connection, tracks, then the socket.
func (c *callContext) Close() {
	c.life.End()
	c.channel.Close()
}
