package radius

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/ppp"
)

type fakeClient struct {
	authenticateCalls int
	resp              *AuthResponse
	err               error
}

func (f *fakeClient) Authenticate(context.Context, *AuthRequest) (*AuthResponse, error) {
	f.authenticateCalls++
	return f.resp, f.err
}

func (f *fakeClient) Account(context.Context, *AcctRequest) error { return nil }

func newData(proto ppp.Protocol) *authdata.Data {
	params := &authparams.Params{Authname: "alice"}
	return authdata.New(authdata.LinkSnapshot{}, params, proto, 1, ppp.PAPRequest, nil)
}

func TestEAPProxyIgnoresNonEAP(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	p := &EAPProxy{Client: client}
	result, err := p.Verify(context.Background(), newData(ppp.ProtoPAP))
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
	assert.Zero(t, client.authenticateCalls)
}

func TestEAPProxyDelegatesVerdict(t *testing.T) {
	t.Parallel()

	client := &fakeClient{resp: &AuthResponse{Accept: true, ReplyMessage: "ok"}}
	p := &EAPProxy{Client: client}
	result, err := p.Verify(context.Background(), newData(ppp.ProtoEAP))
	require.NoError(t, err)
	assert.Equal(t, authdata.Success, result.Status)
	assert.Equal(t, "ok", result.ReplyMessage)
}

func TestAuthFallsThroughOnReject(t *testing.T) {
	t.Parallel()

	client := &fakeClient{resp: &AuthResponse{Accept: false}}
	a := &Auth{Client: client}
	result, err := a.Verify(context.Background(), newData(ppp.ProtoPAP))
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
}

func TestAuthSuccessEnrichesParams(t *testing.T) {
	t.Parallel()

	client := &fakeClient{resp: &AuthResponse{
		Accept:         true,
		SessionTimeout: 3600,
		Routes:         []authparams.Route{{Dest: "10.0.0.0"}},
	}}
	a := &Auth{Client: client}
	data := newData(ppp.ProtoPAP)

	result, err := a.Verify(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, authdata.Success, result.Status)
	assert.Equal(t, 3600, data.Params.SessionTimeout)
	assert.Equal(t, "alice", data.Params.Authname, "non-RADIUS fields must survive enrichment")
	require.Len(t, data.Params.Routes, 1)
}

func TestAuthPermanentErrorNotRetried(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: errors.New("boom")}
	a := &Auth{Client: client}
	_, err := a.Verify(context.Background(), newData(ppp.ProtoPAP))
	require.Error(t, err)
	assert.Equal(t, 1, client.authenticateCalls)
}

func TestAuthTransientErrorRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	client := &transientThenOKClient{calls: &calls}
	a := &Auth{Client: client}
	result, err := a.Verify(context.Background(), newData(ppp.ProtoPAP))
	require.NoError(t, err)
	assert.Equal(t, authdata.Success, result.Status)
	assert.Equal(t, 2, calls)
}

type transientThenOKClient struct{ calls *int }

func (c *transientThenOKClient) Authenticate(context.Context, *AuthRequest) (*AuthResponse, error) {
	*c.calls++
	if *c.calls == 1 {
		return nil, ErrTransient
	}
	return &AuthResponse{Accept: true}, nil
}

func (c *transientThenOKClient) Account(context.Context, *AcctRequest) error { return nil }
