package gateway

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/pion/rtp"

	"github.com/mwhitten/go-parley/pkg/transport"
)

func newTestGateway() *Gateway {
	return &Gateway{
		logger:   slog.Default(),
		speaking: make(chan transport.SpeakingEvent, 16),
		messages: make(chan transport.TextMessage, 16),
		speakers: make(map[uint32]string),
		subs:     make(map[string]subscription),
	}
}

func TestSpeakingEventRegistersSSRC(t *testing.T) {
	g := newTestGateway()

	g.handleEnvelope(envelope{
		Type:      "speaking",
		SpeakerID: "alice",
		ChannelID: "c1",
		SSRC:      42,
	})

	select {
	case ev := <-g.SpeakingStarted():
		if ev.SpeakerID != "alice" || ev.ChannelID != "c1" {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("no speaking event emitted")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.speakers[42] != "alice" {
		t.Errorf("speakers = %v", g.speakers)
	}
}

func TestRoutePacketToSubscriber(t *testing.T) {
	g := newTestGateway()
	g.handleEnvelope(envelope{Type: "speaking", SpeakerID: "alice", ChannelID: "c1", SSRC: 42})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames, err := g.Subscribe(ctx, "alice")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	g.routePacket(&rtp.Packet{
		Header:  rtp.Header{SSRC: 42},
		Payload: []byte{1, 2, 3},
	})

	select {
	case f := <-frames:
		if f.SpeakerID != "alice" || len(f.Payload) != 3 {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("frame not delivered")
	}
}

func TestRoutePacketUnknownSSRCDropped(t *testing.T) {
	g := newTestGateway()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames, err := g.Subscribe(ctx, "alice")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	g.routePacket(&rtp.Packet{Header: rtp.Header{SSRC: 99}, Payload: []byte{1}})

	select {
	case f := <-frames:
		t.Errorf("unexpected frame %+v", f)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeCancelClosesStream(t *testing.T) {
	g := newTestGateway()
	g.handleEnvelope(envelope{Type: "speaking", SpeakerID: "alice", ChannelID: "c1", SSRC: 42})

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := g.Subscribe(ctx, "alice")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	cancel()

	select {
	case _, ok := <-frames:
		if ok {
			t.Error("expected closed stream, got frame")
		}
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}

	// A fresh subscription for the same speaker is allowed afterwards.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	if _, err := g.Subscribe(ctx2, "alice"); err != nil {
		t.Errorf("resubscribe: %v", err)
	}
}

func TestSubscribeDuplicateRejected(t *testing.T) {
	g := newTestGateway()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := g.Subscribe(ctx, "alice"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := g.Subscribe(ctx, "alice"); err == nil {
		t.Error("expected duplicate subscription to be rejected")
	}
}

func TestChatEnvelopeEmitsMessage(t *testing.T) {
	g := newTestGateway()

	g.handleEnvelope(envelope{
		Type:      "chat",
		ChannelID: "c1",
		AuthorID:  "bob",
		Text:      "hello",
	})

	select {
	case msg := <-g.Messages():
		if msg.AuthorID != "bob" || msg.Text != "hello" {
			t.Errorf("message = %+v", msg)
		}
	default:
		t.Fatal("no message emitted")
	}
}
