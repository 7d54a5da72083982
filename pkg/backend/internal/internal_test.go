package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/secretsfile"
)

type fakeLookuper struct {
	entry *secretsfile.Entry
	err   error
}

func (f *fakeLookuper) Lookup(context.Context, string) (*secretsfile.Entry, error) {
	return f.entry, f.err
}

func newData(authname string) *authdata.Data {
	params := &authparams.Params{Authname: authname}
	return authdata.New(authdata.LinkSnapshot{}, params, ppp.ProtoPAP, 1, ppp.PAPRequest, nil)
}

func TestVerifyPopulatesPassword(t *testing.T) {
	t.Parallel()

	b := &Backend{Store: &fakeLookuper{entry: &secretsfile.Entry{Password: "s3cret"}}}
	data := newData("alice")

	result, err := b.Verify(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
	assert.Equal(t, "s3cret", data.Params.Password)
}

func TestVerifyNotFoundFails(t *testing.T) {
	t.Parallel()

	b := &Backend{Store: &fakeLookuper{err: &secretsfile.ErrNotFound{Authname: "carol"}}}
	data := newData("carol")

	result, err := b.Verify(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, authdata.Fail, result.Status)
	assert.Equal(t, mpderrors.InvalidLogin, result.WhyFail)
}

func TestName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, authparams.BackendInternal, (&Backend{}).Name())
}
