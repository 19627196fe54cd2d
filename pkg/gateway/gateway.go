// Package gateway connects the agent to a voice channel gateway: a
// websocket signalling server plus a WebRTC media session. It implements
// the transport interfaces the rest of the pipeline consumes, so the
// pipeline runs against mocks in tests and against a live gateway in
// production.
//
// Signalling is JSON over the websocket: the server announces speakers
// with "speaking" events carrying the RTP SSRC of that speaker's stream,
// relays chat with "chat" messages, and drives WebRTC setup with "peer"
// SDP envelopes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/mwhitten/go-parley/pkg/transport"
)

// ErrClosed is returned from operations on a closed gateway.
var ErrClosed = errors.New("gateway: closed")

// Config holds connection settings.
type Config struct {
	// URL is the signalling server websocket endpoint.
	URL string

	// ChannelID is the voice channel to join.
	ChannelID string

	// Logger is optional.
	Logger *slog.Logger
}

// envelope is the signalling wire format.
type envelope struct {
	Type      string          `json:"type"`
	PeerID    string          `json:"peerId,omitempty"`
	ChannelID string          `json:"channelId,omitempty"`
	SpeakerID string          `json:"speakerId,omitempty"`
	AuthorID  string          `json:"authorId,omitempty"`
	Text      string          `json:"text,omitempty"`
	SSRC      uint32          `json:"ssrc,omitempty"`
	SDP       *sdpDescription `json:"sdp,omitempty"`
}

type sdpDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// subscription is one capturer waiting on a speaker's frames.
type subscription struct {
	frames chan transport.Frame
	done   <-chan struct{}
}

// Gateway is one live connection to the voice gateway.
type Gateway struct {
	cfg    Config
	logger *slog.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex

	pc       *webrtc.PeerConnection
	outTrack *webrtc.TrackLocalStaticSample

	speaking chan transport.SpeakingEvent
	messages chan transport.TextMessage

	mu       sync.Mutex
	speakers map[uint32]string       // SSRC -> speaker
	subs     map[string]subscription // speaker -> active subscription
	closed   bool
}

// Dial connects to the signalling server, joins the channel, and sets up
// the WebRTC session.
func Dial(ctx context.Context, cfg Config) (*Gateway, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial signalling: %w", err)
	}

	g := &Gateway{
		cfg:      cfg,
		logger:   logger.With("component", "gateway"),
		ws:       ws,
		speaking: make(chan transport.SpeakingEvent, 16),
		messages: make(chan transport.TextMessage, 16),
		speakers: make(map[uint32]string),
		subs:     make(map[string]subscription),
	}

	var welcome envelope
	if err := ws.ReadJSON(&welcome); err != nil {
		ws.Close()
		return nil, fmt.Errorf("gateway: read welcome: %w", err)
	}
	g.logger.Info("connected to gateway", "peer", welcome.PeerID)

	if err := g.setupPeerConnection(); err != nil {
		ws.Close()
		return nil, err
	}

	if err := g.writeJSON(envelope{Type: "join", ChannelID: cfg.ChannelID}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("gateway: join channel: %w", err)
	}

	go g.signallingLoop()
	return g, nil
}

// setupPeerConnection creates the WebRTC session: receive-only inbound
// audio plus one opus track for the agent's replies.
func (g *Gateway) setupPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("gateway: create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return fmt.Errorf("gateway: add audio transceiver: %w", err)
	}

	outTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "parley",
	)
	if err != nil {
		pc.Close()
		return fmt.Errorf("gateway: create output track: %w", err)
	}
	if _, err := pc.AddTrack(outTrack); err != nil {
		pc.Close()
		return fmt.Errorf("gateway: add output track: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		g.logger.Info("audio track up", "codec", track.Codec().MimeType)
		g.readTrack(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		g.logger.Info("peer connection state", "state", state.String())
	})

	g.pc = pc
	g.outTrack = outTrack
	return nil
}

// readTrack routes inbound RTP packets to subscribed speaker streams.
func (g *Gateway) readTrack(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			g.logger.Debug("track read ended", "error", err)
			return
		}
		g.routePacket(pkt)
	}
}

// routePacket delivers one packet to its speaker's subscriber, if any.
// Packets for unsubscribed speakers are dropped.
func (g *Gateway) routePacket(pkt *rtp.Packet) {
	g.mu.Lock()
	speakerID, known := g.speakers[pkt.SSRC]
	var sub subscription
	var subscribed bool
	if known {
		sub, subscribed = g.subs[speakerID]
	}
	g.mu.Unlock()

	if !subscribed {
		return
	}

	payload := make([]byte, len(pkt.Payload))
	copy(payload, pkt.Payload)

	select {
	case sub.frames <- transport.Frame{SpeakerID: speakerID, Payload: payload}:
	case <-sub.done:
	default:
		// Subscriber is not keeping up; drop rather than stall the
		// media loop.
	}
}

// signallingLoop handles server events until the socket closes.
func (g *Gateway) signallingLoop() {
	defer func() {
		g.mu.Lock()
		if !g.closed {
			g.closed = true
			close(g.speaking)
			close(g.messages)
		}
		g.mu.Unlock()
	}()

	for {
		var msg envelope
		if err := g.ws.ReadJSON(&msg); err != nil {
			g.logger.Warn("signalling read ended", "error", err)
			return
		}
		g.handleEnvelope(msg)
	}
}

// handleEnvelope dispatches one signalling message.
func (g *Gateway) handleEnvelope(msg envelope) {
	switch msg.Type {
	case "speaking":
		g.mu.Lock()
		g.speakers[msg.SSRC] = msg.SpeakerID
		g.mu.Unlock()
		select {
		case g.speaking <- transport.SpeakingEvent{SpeakerID: msg.SpeakerID, ChannelID: msg.ChannelID}:
		default:
			g.logger.Warn("speaking event dropped, consumer behind", "speaker", msg.SpeakerID)
		}

	case "chat":
		select {
		case g.messages <- transport.TextMessage{ChannelID: msg.ChannelID, AuthorID: msg.AuthorID, Text: msg.Text}:
		default:
			g.logger.Warn("chat message dropped, consumer behind", "author", msg.AuthorID)
		}

	case "peer":
		if msg.SDP != nil && msg.SDP.Type == "offer" {
			g.answerOffer(msg.SDP.SDP)
		}

	default:
		g.logger.Debug("unhandled signalling message", "type", msg.Type)
	}
}

// answerOffer completes the SDP exchange for a server-initiated offer.
func (g *Gateway) answerOffer(sdp string) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := g.pc.SetRemoteDescription(offer); err != nil {
		g.logger.Error("set remote description failed", "error", err)
		return
	}

	answer, err := g.pc.CreateAnswer(nil)
	if err != nil {
		g.logger.Error("create answer failed", "error", err)
		return
	}
	if err := g.pc.SetLocalDescription(answer); err != nil {
		g.logger.Error("set local description failed", "error", err)
		return
	}

	if err := g.writeJSON(envelope{
		Type: "peer",
		SDP:  &sdpDescription{Type: answer.Type.String(), SDP: answer.SDP},
	}); err != nil {
		g.logger.Error("send answer failed", "error", err)
	}
}

// SpeakingStarted implements transport.Receiver.
func (g *Gateway) SpeakingStarted() <-chan transport.SpeakingEvent {
	return g.speaking
}

// Subscribe implements transport.Receiver. One subscription per speaker;
// the stream closes when ctx is cancelled.
func (g *Gateway) Subscribe(ctx context.Context, speakerID string) (<-chan transport.Frame, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := g.subs[speakerID]; exists {
		g.mu.Unlock()
		return nil, fmt.Errorf("gateway: speaker %s already subscribed", speakerID)
	}

	sub := subscription{
		frames: make(chan transport.Frame, 64),
		done:   ctx.Done(),
	}
	g.subs[speakerID] = sub
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		g.mu.Lock()
		if current, ok := g.subs[speakerID]; ok && current.frames == sub.frames {
			delete(g.subs, speakerID)
			close(sub.frames)
		}
		g.mu.Unlock()
	}()

	return sub.frames, nil
}

// SendFrame implements transport.AudioOut by writing an opus sample to the
// agent's output track.
func (g *Gateway) SendFrame(channelID string, payload []byte, duration time.Duration) error {
	if duration <= 0 {
		duration = defaultSampleDuration
	}
	if err := g.outTrack.WriteSample(media.Sample{Data: payload, Duration: duration}); err != nil {
		return fmt.Errorf("gateway: write sample: %w", err)
	}
	return nil
}

// Send implements transport.TextChannel by relaying chat through the
// signalling socket.
func (g *Gateway) Send(ctx context.Context, channelID, text string) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.mu.Unlock()

	return g.writeJSON(envelope{Type: "chat", ChannelID: channelID, Text: text})
}

// Messages implements transport.TextChannel.
func (g *Gateway) Messages() <-chan transport.TextMessage {
	return g.messages
}

// writeJSON serializes writes on the shared socket.
func (g *Gateway) writeJSON(msg envelope) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return g.ws.WriteJSON(msg)
}

// Close tears the session down.
func (g *Gateway) Close() error {
	var pcErr error
	if g.pc != nil {
		pcErr = g.pc.Close()
	}
	wsErr := g.ws.Close()

	if pcErr != nil {
		return pcErr
	}
	return wsErr
}

// defaultSampleDuration matches the 20ms opus frames the player paces out.
const defaultSampleDuration = 20 * time.Millisecond

// Compile-time interface checks.
var (
	_ transport.Receiver    = (*Gateway)(nil)
	_ transport.AudioOut    = (*Gateway)(nil)
	_ transport.TextChannel = (*Gateway)(nil)
)
