package opie

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/ppp"
)

type fakeKeys struct {
	secret, seed string
	n            int
	ok           bool
	err          error
}

func (f *fakeKeys) Lookup(context.Context, string) (string, string, int, bool, error) {
	return f.secret, f.seed, f.n, f.ok, f.err
}

func TestVerifyCHAPWritesRecoveredPassword(t *testing.T) {
	t.Parallel()

	b := &Backend{Keys: &fakeKeys{secret: "s3cret", seed: "otp", n: 5, ok: true}}
	params := &authparams.Params{Authname: "alice"}
	data := authdata.New(authdata.LinkSnapshot{}, params, ppp.ProtoCHAP, 1, ppp.ChapResponse, nil)

	result, err := b.Verify(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
	assert.NotEmpty(t, data.Params.Password)

	// Recovery is deterministic given the same seed/secret/n.
	again := fold("otp", "s3cret", 5)
	assert.Equal(t, again, data.Params.Password)
}

func TestVerifyPAPMatch(t *testing.T) {
	t.Parallel()

	otp := fold("otp", "s3cret", 3)
	b := &Backend{Keys: &fakeKeys{secret: "s3cret", seed: "otp", n: 3, ok: true}}
	params := &authparams.Params{Authname: "alice", PAP: authparams.PAPParams{PeerPass: otp}}
	data := authdata.New(authdata.LinkSnapshot{}, params, ppp.ProtoPAP, 1, ppp.PAPRequest, nil)

	result, err := b.Verify(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, authdata.Success, result.Status)
}

func TestVerifyPAPMismatch(t *testing.T) {
	t.Parallel()

	b := &Backend{Keys: &fakeKeys{secret: "s3cret", seed: "otp", n: 3, ok: true}}
	params := &authparams.Params{Authname: "alice", PAP: authparams.PAPParams{PeerPass: "garbage"}}
	data := authdata.New(authdata.LinkSnapshot{}, params, ppp.ProtoPAP, 1, ppp.PAPRequest, nil)

	result, err := b.Verify(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, authdata.Fail, result.Status)
}

func TestVerifyUnknownUserFallsThrough(t *testing.T) {
	t.Parallel()

	b := &Backend{Keys: &fakeKeys{ok: false}}
	params := &authparams.Params{Authname: "ghost"}
	data := authdata.New(authdata.LinkSnapshot{}, params, ppp.ProtoPAP, 1, ppp.PAPRequest, nil)

	result, err := b.Verify(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
}
