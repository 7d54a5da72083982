package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/link"
	"github.com/mpd-project/mpd/pkg/linkapi"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/registry"
)

type fakeRunner struct {
	verify    func(data *authdata.Data)
	cancelled []registry.ID
}

func (f *fakeRunner) Run(_ context.Context, _ registry.ID, data *authdata.Data) {
	f.verify(data)
	data.Finish(data)
}

func (f *fakeRunner) Cancel(linkID registry.ID) {
	f.cancelled = append(f.cancelled, linkID)
}

func TestAuthStartPAPSelfToPeerSendsRequestImmediately(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	c := New(writer, lcp, &fakeRunner{verify: func(*authdata.Data) {}})

	ctx, err := c.AuthStart(1, link.Config{Authname: "me", Password: "secret", RetryTimeout: time.Hour, Retries: 3}, ppp.ProtoPAP, ppp.ProtoNone)
	require.NoError(t, err)
	defer ctx.Stop()

	require.Len(t, writer.Frames, 1)
	header, _, err := ppp.ParseHeader(writer.Frames[0].Frame)
	require.NoError(t, err)
	assert.Equal(t, ppp.PAPRequest, header.Code)
}

func TestInputPAPPeerToSelfRunsWorkerAndAcks(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	runner := &fakeRunner{verify: func(data *authdata.Data) { data.SetSuccess() }}
	c := New(writer, lcp, runner)

	_, err := c.AuthStart(7, link.Config{}, ppp.ProtoNone, ppp.ProtoPAP)
	require.NoError(t, err)

	var payload []byte
	payload = ppp.AppendLengthPrefixed(payload, []byte("alice"))
	payload = ppp.AppendLengthPrefixed(payload, []byte("pw"))
	frame := ppp.BuildHeader(ppp.PAPRequest, 1, payload)

	err = c.Input(context.Background(), 7, ppp.ProtoPAP, frame)
	require.NoError(t, err)

	require.Len(t, writer.Frames, 1)
	header, _, err := ppp.ParseHeader(writer.Frames[0].Frame)
	require.NoError(t, err)
	assert.Equal(t, ppp.PAPAck, header.Code)
	assert.Equal(t, true, lcp.Results[7])
}

func TestAuthStartCHAPPeerToSelfSendsChallenge(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	c := New(writer, lcp, &fakeRunner{verify: func(*authdata.Data) {}})

	ctx, err := c.AuthStart(3, link.Config{RetryTimeout: time.Hour, Retries: 3}, ppp.ProtoNone, ppp.ProtoCHAP)
	require.NoError(t, err)
	defer ctx.Stop()

	require.Len(t, writer.Frames, 1)
	header, _, err := ppp.ParseHeader(writer.Frames[0].Frame)
	require.NoError(t, err)
	assert.Equal(t, ppp.ChapChallenge, header.Code)
}

func TestAuthStartEAPSendsIdentityRequestThenChallenge(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	runner := &fakeRunner{verify: func(data *authdata.Data) { data.SetSuccess() }}
	c := New(writer, lcp, runner)

	_, err := c.AuthStart(9, link.Config{}, ppp.ProtoNone, ppp.ProtoEAP)
	require.NoError(t, err)

	require.Len(t, writer.Frames, 1)
	header, body, err := ppp.ParseHeader(writer.Frames[0].Frame)
	require.NoError(t, err)
	assert.Equal(t, ppp.EapRequest, header.Code)
	assert.Equal(t, byte(ppp.EapTypeIdentity), body[0])

	identityReply := ppp.BuildHeader(ppp.EapResponse, 1, append([]byte{ppp.EapTypeIdentity}, []byte("alice")...))
	err = c.Input(context.Background(), 9, ppp.ProtoEAP, identityReply)
	require.NoError(t, err)

	require.Len(t, writer.Frames, 2)
	header, _, err = ppp.ParseHeader(writer.Frames[1].Frame)
	require.NoError(t, err)
	assert.Equal(t, ppp.EapRequest, header.Code)
}

func TestInputUnknownLinkErrors(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	c := New(writer, lcp, &fakeRunner{verify: func(*authdata.Data) {}})

	err := c.Input(context.Background(), 99, ppp.ProtoPAP, ppp.BuildHeader(ppp.PAPRequest, 1, nil))
	assert.Error(t, err)
}

func TestAuthStartBothDirectionsNoneReportsSuccessImmediately(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	c := New(writer, lcp, &fakeRunner{verify: func(*authdata.Data) {}})

	_, err := c.AuthStart(13, link.Config{}, ppp.ProtoNone, ppp.ProtoNone)
	require.NoError(t, err)

	assert.Equal(t, true, lcp.Results[13])
	assert.Empty(t, writer.Frames)
}

func TestAuthStartTimerExpiryStopsAndReportsFailure(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	runner := &fakeRunner{verify: func(*authdata.Data) {}}
	c := New(writer, lcp, runner)

	_, err := c.AuthStart(21, link.Config{Timeout: 10 * time.Millisecond}, ppp.ProtoNone, ppp.ProtoPAP)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ok, present := lcp.Results[21]
		return present && !ok
	}, time.Second, time.Millisecond, "timer expiry must report failure to the LCP")
	assert.Contains(t, runner.cancelled, registry.ID(21))
}

// blockingRunner simulates a backend chain worker that is still running
// when a second packet for the same link arrives.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (r *blockingRunner) Run(_ context.Context, _ registry.ID, data *authdata.Data) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	close(r.started)
	<-r.release
	data.SetSuccess()
	data.Finish(data)
}

func (r *blockingRunner) Cancel(registry.ID) {}

func (r *blockingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// TestInputPAPDropsOverlappingRequestWhileWorkerInFlight covers Testable
// Property #1 (spec.md §8): at most one worker is ever concurrently
// associated with a given link.
func TestInputPAPDropsOverlappingRequestWhileWorkerInFlight(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	c := New(writer, lcp, runner)

	_, err := c.AuthStart(11, link.Config{}, ppp.ProtoNone, ppp.ProtoPAP)
	require.NoError(t, err)

	var payload []byte
	payload = ppp.AppendLengthPrefixed(payload, []byte("alice"))
	payload = ppp.AppendLengthPrefixed(payload, []byte("pw"))
	frame := ppp.BuildHeader(ppp.PAPRequest, 1, payload)

	go func() {
		_ = c.Input(context.Background(), 11, ppp.ProtoPAP, frame)
	}()
	<-runner.started

	// A second REQUEST arrives while the first worker is still running; it
	// must be dropped rather than spawn a second worker.
	err = c.Input(context.Background(), 11, ppp.ProtoPAP, frame)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.callCount())

	close(runner.release)
	require.Eventually(t, func() bool { return len(writer.Frames) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, runner.callCount())
}

func TestCleanupRemovesLinkAndCancelsRunner(t *testing.T) {
	t.Parallel()

	writer := linkapi.NewFake()
	lcp := linkapi.NewFake()
	runner := &fakeRunner{verify: func(*authdata.Data) {}}
	c := New(writer, lcp, runner)

	_, err := c.AuthStart(5, link.Config{}, ppp.ProtoNone, ppp.ProtoPAP)
	require.NoError(t, err)

	c.Cleanup(5)

	_, ok := c.Links.Lookup(5)
	assert.False(t, ok)
	assert.Contains(t, runner.cancelled, registry.ID(5))
}
