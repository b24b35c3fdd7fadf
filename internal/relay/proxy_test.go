package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameflow/frameflow/control"
	"github.com/frameflow/frameflow/endpoint"
	"github.com/frameflow/frameflow/frame"
)

const testPollInterval = 5 * time.Millisecond

// topology is the reference layout: clients -> Router frontend -> proxy ->
// Dealer backend -> workers, steered over a gochannel control bus.
type topology struct {
	reg      *endpoint.Registry
	frontend *endpoint.Router
	backend  *endpoint.Dealer
	bus      *gochannel.GoChannel
	pub      *control.Publisher
	commands <-chan control.Command
	topic    string
}

func newTopology(t *testing.T, ctx context.Context, frontCfg, backCfg endpoint.Config) *topology {
	t.Helper()
	reg := endpoint.NewRegistry()
	frontCfg.Registry = reg
	backCfg.Registry = reg

	front := endpoint.NewRouter(frontCfg)
	require.NoError(t, front.Bind("inproc://frontend"))
	back := endpoint.NewDealer(backCfg)
	require.NoError(t, back.Bind("inproc://backend"))

	bus := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	topic := "proxy.control"
	commands, err := control.Listen(ctx, bus, topic, watermill.NopLogger{})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = front.Close()
		_ = back.Close()
		_ = bus.Close()
	})

	return &topology{
		reg:      reg,
		frontend: front,
		backend:  back,
		bus:      bus,
		pub:      control.NewPublisher(bus, topic),
		commands: commands,
		topic:    topic,
	}
}

func (tp *topology) client(t *testing.T, identity string) *endpoint.Dealer {
	t.Helper()
	cfg := endpoint.Config{Registry: tp.reg}
	if identity != "" {
		cfg.Identity = frame.Frame(identity)
	}
	d := endpoint.NewDealer(cfg)
	require.NoError(t, d.Connect("inproc://frontend"))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func (tp *topology) worker(t *testing.T, cfg endpoint.Config) *endpoint.Dealer {
	t.Helper()
	cfg.Registry = tp.reg
	d := endpoint.NewDealer(cfg)
	require.NoError(t, d.Connect("inproc://backend"))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func (tp *topology) proxy(t *testing.T, p Params) *Proxy {
	t.Helper()
	p.Frontend = tp.frontend
	p.Backend = tp.backend
	p.Commands = tp.commands
	if p.PollInterval == 0 {
		p.PollInterval = testPollInterval
	}
	px, err := New(p)
	require.NoError(t, err)
	return px
}

func startRun(ctx context.Context, px *Proxy) <-chan error {
	done := make(chan error, 1)
	go func() { done <- px.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("proxy run did not finish")
		return nil
	}
}

func sendAll(t *testing.T, ep endpoint.Endpoint, m frame.Message) {
	t.Helper()
	for i, f := range m {
		require.NoError(t, ep.Send(f, i < len(m)-1))
	}
}

func recvWait(t *testing.T, ep endpoint.Endpoint) frame.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	var msg frame.Message
	for {
		f, more, err := ep.TryRecv()
		if errors.Is(err, endpoint.ErrWouldBlock) {
			select {
			case <-ep.Ready():
				continue
			case <-deadline:
				t.Fatalf("timed out waiting for message (got %d frames)", len(msg))
			}
		}
		require.NoError(t, err)
		msg = append(msg, f)
		if !more {
			return msg
		}
	}
}

func assertNoMessage(t *testing.T, ep endpoint.Endpoint, wait time.Duration) {
	t.Helper()
	time.Sleep(wait)
	_, _, err := ep.TryRecv()
	assert.ErrorIs(t, err, endpoint.ErrWouldBlock)
}

func terminate(t *testing.T, tp *topology, done <-chan error) {
	t.Helper()
	require.NoError(t, tp.pub.Publish(control.Terminate))
	require.NoError(t, waitRun(t, done))
}

func TestRelayAtomicityAndOrdering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "AAAA-BBBB\x01")
	wrk := tp.worker(t, endpoint.Config{})

	done := startRun(ctx, tp.proxy(t, Params{}))

	// several multi-frame messages, including empty delimiter frames
	want := []frame.Message{
		frame.NewMessage([]byte("m1-f1"), nil, []byte("m1-f3")),
		frame.NewMessage([]byte("m2-only")),
		frame.NewMessage([]byte("m3-f1"), []byte("m3-f2")),
	}
	for _, m := range want {
		sendAll(t, client, m)
	}

	for _, m := range want {
		got := recvWait(t, wrk)
		require.Len(t, got, len(m)+1, "identity frame plus payload frames")
		assert.Equal(t, frame.Frame("AAAA-BBBB\x01"), got[0])
		assert.Equal(t, m, got[1:], "frames arrive contiguously, in order, unmodified")
	}

	terminate(t, tp, done)
}

func TestNoHookIsPassThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "client-1")
	wrk := tp.worker(t, endpoint.Config{})

	done := startRun(ctx, tp.proxy(t, Params{}))

	payload := []byte("request #001")
	sendAll(t, client, frame.NewMessage(payload))

	got := recvWait(t, wrk)
	require.Len(t, got, 2)
	assert.True(t, bytes.Equal(payload, got[1]), "output bytes equal input bytes")

	// reply path is equally untouched
	sendAll(t, wrk, frame.NewMessage(got[0], []byte("reply #001")))
	reply := recvWait(t, client)
	require.Len(t, reply, 1)
	assert.Equal(t, frame.Frame("reply #001"), reply[0])

	terminate(t, tp, done)
}

// caseHook mirrors the canonical steering example: uppercase requests,
// lowercase replies, skipping envelope frames by explicit policy.
type caseHook struct {
	upper, lower int
}

func (h *caseHook) Transform(dir Direction, index int, more bool, f frame.Frame) error {
	if index == 0 || len(f) == 0 {
		return nil
	}
	switch dir {
	case FrontendToBackend:
		h.upper++
		for i, b := range f {
			if 'a' <= b && b <= 'z' {
				f[i] = b - 'a' + 'A'
			}
		}
	case BackendToFrontend:
		h.lower++
		for i, b := range f {
			if 'A' <= b && b <= 'Z' {
				f[i] = b - 'A' + 'a'
			}
		}
	}
	return nil
}

func TestHookTransformsPayloadFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "AAAA-BBBB\x01")
	wrk := tp.worker(t, endpoint.Config{})

	hook := &caseHook{}
	done := startRun(ctx, tp.proxy(t, Params{Hook: hook}))

	sendAll(t, client, frame.NewMessage([]byte("request #001")))

	got := recvWait(t, wrk)
	require.Len(t, got, 2)
	assert.Equal(t, frame.Frame("AAAA-BBBB\x01"), got[0], "identity frame stays untouched")
	assert.Equal(t, frame.Frame("REQUEST #001"), got[1])

	sendAll(t, wrk, frame.NewMessage(got[0], got[1]))
	reply := recvWait(t, client)
	require.Len(t, reply, 1)
	assert.Equal(t, frame.Frame("request #001"), reply[0], "reverse hook restores the original")

	assert.Equal(t, 1, hook.upper)
	assert.Equal(t, 1, hook.lower)

	terminate(t, tp, done)
}

func TestTerminateIsPrompt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	done := startRun(ctx, tp.proxy(t, Params{}))

	start := time.Now()
	require.NoError(t, tp.pub.Publish(control.Terminate))
	require.NoError(t, waitRun(t, done))

	assert.Less(t, time.Since(start), time.Second, "termination bounded by the poll interval")
}

func TestTerminateDoesNotStartNewMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "client-1")
	wrk := tp.worker(t, endpoint.Config{})

	px := tp.proxy(t, Params{})
	require.NoError(t, tp.pub.Publish(control.Terminate))
	require.Eventually(t, func() bool { return len(tp.commands) > 0 },
		2*time.Second, time.Millisecond)

	// queued before the run starts; the TERMINATE must win the first poll
	sendAll(t, client, frame.NewMessage([]byte("late")))

	done := startRun(ctx, px)
	require.NoError(t, waitRun(t, done))

	assertNoMessage(t, wrk, 20*time.Millisecond)
	assert.Equal(t, StateTerminated, px.State())
}

func TestPauseAndResume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "client-1")
	wrk := tp.worker(t, endpoint.Config{})

	px := tp.proxy(t, Params{})
	done := startRun(ctx, px)

	require.NoError(t, tp.pub.Publish(control.Pause))
	require.Eventually(t, func() bool { return px.State() == StatePaused },
		2*time.Second, time.Millisecond)

	sendAll(t, client, frame.NewMessage([]byte("while paused")))
	assertNoMessage(t, wrk, 10*testPollInterval)

	require.NoError(t, tp.pub.Publish(control.Resume))
	got := recvWait(t, wrk)
	require.Len(t, got, 2)
	assert.Equal(t, frame.Frame("while paused"), got[1], "no message lost across pause")

	terminate(t, tp, done)
}

func TestIdentityRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	clientA := tp.client(t, "AAAA-BBBB\x01")
	clientB := tp.client(t, "CCCC-DDDD\x01")
	wrk := tp.worker(t, endpoint.Config{})

	done := startRun(ctx, tp.proxy(t, Params{}))

	sendAll(t, clientA, frame.NewMessage([]byte("request #042")))
	sendAll(t, clientB, frame.NewMessage([]byte("request #043")))

	// echo both requests back through their identity envelopes
	for i := 0; i < 2; i++ {
		req := recvWait(t, wrk)
		require.Len(t, req, 2)
		sendAll(t, wrk, frame.NewMessage(req[0], req[1]))
	}

	replyA := recvWait(t, clientA)
	require.Len(t, replyA, 1)
	assert.Equal(t, frame.Frame("request #042"), replyA[0], "client receives only its own replies")

	replyB := recvWait(t, clientB)
	require.Len(t, replyB, 1)
	assert.Equal(t, frame.Frame("request #043"), replyB[0])

	assertNoMessage(t, clientA, 20*time.Millisecond)
	assertNoMessage(t, clientB, 20*time.Millisecond)

	terminate(t, tp, done)
}

func TestBackpressureContainment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// backend pipes take 2 queued requests (SendHWM 1 + worker RecvHWM 1)
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{SendHWM: 1})

	client := tp.client(t, "AAAA-BBBB\x01")
	wrk := tp.worker(t, endpoint.Config{RecvHWM: 1})

	px := tp.proxy(t, Params{NonBlockingSend: true})
	done := startRun(ctx, px)

	// saturate the request direction; the worker reads nothing yet
	const requests = 6
	for i := 0; i < requests; i++ {
		sendAll(t, client, frame.NewMessage(fmt.Appendf(nil, "request #%03d", i)))
	}

	// the reply direction keeps making progress while requests are stalled
	for i := 0; i < 3; i++ {
		sendAll(t, wrk, frame.NewMessage([]byte("AAAA-BBBB\x01"), fmt.Appendf(nil, "reply #%03d", i)))
		reply := recvWait(t, client)
		require.Len(t, reply, 1)
		assert.Equal(t, fmt.Sprintf("reply #%03d", i), string(reply[0]))
	}

	// once the worker drains, every stalled request arrives, in order
	for i := 0; i < requests; i++ {
		req := recvWait(t, wrk)
		require.Len(t, req, 2)
		assert.Equal(t, fmt.Sprintf("request #%03d", i), string(req[1]))
	}

	terminate(t, tp, done)
}

func TestStatisticsCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "client-1")
	wrk := tp.worker(t, endpoint.Config{})

	statsMsgs, err := tp.bus.Subscribe(ctx, tp.topic+control.StatsTopicSuffix)
	require.NoError(t, err)

	done := startRun(ctx, tp.proxy(t, Params{StatsPublisher: tp.pub}))

	sendAll(t, client, frame.NewMessage([]byte("one"), []byte("two")))
	got := recvWait(t, wrk)
	require.Len(t, got, 3)

	require.NoError(t, tp.pub.Publish(control.Statistics))

	select {
	case msg := <-statsMsgs:
		msg.Ack()
		var snap StatsSnapshot
		require.NoError(t, sonic.Unmarshal(msg.Payload, &snap))
		assert.Equal(t, "running", snap.State)
		assert.Equal(t, uint64(1), snap.FrontendToBackend.Messages)
		assert.Equal(t, uint64(3), snap.FrontendToBackend.Frames, "identity frame counted")
		assert.Zero(t, snap.BackendToFrontend.Messages)
	case <-time.After(5 * time.Second):
		t.Fatal("no statistics snapshot published")
	}

	terminate(t, tp, done)
}

func TestUnknownCommandsAreIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "client-1")
	wrk := tp.worker(t, endpoint.Config{})

	done := startRun(ctx, tp.proxy(t, Params{}))

	require.NoError(t, tp.pub.PublishRaw([]byte("REBOOT")))
	require.NoError(t, tp.pub.Publish(control.Stop)) // addressed to workers, not the relay

	sendAll(t, client, frame.NewMessage([]byte("still relaying")))
	got := recvWait(t, wrk)
	require.Len(t, got, 2)

	terminate(t, tp, done)
}

type failingHook struct{ err error }

func (h failingHook) Transform(Direction, int, bool, frame.Frame) error { return h.err }

func TestHookFailureIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "client-1")
	tp.worker(t, endpoint.Config{})

	boom := errors.New("boom")
	px := tp.proxy(t, Params{Hook: failingHook{err: boom}})
	done := startRun(ctx, px)

	sendAll(t, client, frame.NewMessage([]byte("doomed")))

	err := waitRun(t, done)
	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, FrontendToBackend, hookErr.Direction)
	assert.Equal(t, 0, hookErr.FrameIndex)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateTerminated, px.State())
	assert.Equal(t, uint64(1), px.Stats().HookAborts)
}

func TestContextCancellationIsDistinguished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	px := tp.proxy(t, Params{})
	done := startRun(ctx, px)

	cancel()
	err := waitRun(t, done)
	assert.ErrorIs(t, err, ErrTerminating)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEndpointFailureIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := newTopology(t, ctx, endpoint.Config{}, endpoint.Config{})

	client := tp.client(t, "client-1")
	wrk := tp.worker(t, endpoint.Config{})
	require.NoError(t, wrk.Close())

	px := tp.proxy(t, Params{})
	done := startRun(ctx, px)

	// forwarding has no live peer left underneath it
	sendAll(t, client, frame.NewMessage([]byte("nowhere to go")))

	err := waitRun(t, done)
	var epErr *EndpointError
	require.ErrorAs(t, err, &epErr)
	assert.Equal(t, FrontendToBackend, epErr.Direction)
	assert.Equal(t, "forward", epErr.Op)
	assert.ErrorIs(t, err, endpoint.ErrClosed)
}

func TestNewValidatesEndpoints(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)
}
