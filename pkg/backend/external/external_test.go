package external

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/ppp"
)

func newData(authname, linkname string) *authdata.Data {
	params := &authparams.Params{Authname: authname}
	link := authdata.LinkSnapshot{LinkName: linkname}
	return authdata.New(link, params, ppp.ProtoPAP, 1, ppp.PAPRequest, nil)
}

func TestVerifyDisabledWhenNoScript(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	result, err := b.Verify(context.Background(), newData("alice", "link0"))
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
}

func TestVerifyPasswordOnlyDefersToProtocolCompare(t *testing.T) {
	t.Parallel()

	b := &Backend{
		Script: "/bin/extauth",
		Run: func(ctx context.Context, script, linkname, hexAuthname string) ([]byte, error) {
			assert.Equal(t, "/bin/extauth", script)
			assert.Equal(t, "link0", linkname)
			return []byte("secretpw\n"), nil
		},
	}
	data := newData("alice", "link0")

	result, err := b.Verify(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
	assert.Equal(t, "secretpw", data.Params.Password)
}

// TestVerifyFailLine covers spec.md §8 scenario #7: "pw\n\n2\n" → Fail,
// why_fail = NoPermission (code 2).
func TestVerifyFailLine(t *testing.T) {
	t.Parallel()

	b := &Backend{
		Script: "/bin/extauth",
		Run: func(context.Context, string, string, string) ([]byte, error) {
			return []byte("pw\n\n2\n"), nil
		},
	}
	result, err := b.Verify(context.Background(), newData("alice", "link0"))
	require.NoError(t, err)
	assert.Equal(t, authdata.Fail, result.Status)
	assert.Equal(t, mpderrors.NoPermission, result.WhyFail)
}

func TestVerifyEmptyPasswordNoFailLineIsUndefined(t *testing.T) {
	t.Parallel()

	b := &Backend{
		Script: "/bin/extauth",
		Run: func(context.Context, string, string, string) ([]byte, error) {
			return []byte(""), nil
		},
	}
	result, err := b.Verify(context.Background(), newData("alice", "link0"))
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
}

func TestVerifyRunErrorIsUndefined(t *testing.T) {
	t.Parallel()

	b := &Backend{
		Script: "/bin/extauth",
		Run: func(context.Context, string, string, string) ([]byte, error) {
			return nil, assert.AnError
		},
	}
	result, err := b.Verify(context.Background(), newData("alice", "link0"))
	require.NoError(t, err)
	assert.Equal(t, authdata.Undefined, result.Status)
}

// TestVerifyMultiDigitWhyFail covers the resolved Open Question in
// spec.md §16: a multi-digit why_fail code is read in full, not truncated
// to two bytes.
func TestVerifyMultiDigitWhyFail(t *testing.T) {
	t.Parallel()

	b := &Backend{
		Script: "/bin/extauth",
		Run: func(context.Context, string, string, string) ([]byte, error) {
			return []byte("pw\n\n12345\n"), nil
		},
	}
	result, err := b.Verify(context.Background(), newData("alice", "link0"))
	require.NoError(t, err)
	assert.Equal(t, authdata.Fail, result.Status)
	assert.Equal(t, mpderrors.NotExpected, result.WhyFail)
}
