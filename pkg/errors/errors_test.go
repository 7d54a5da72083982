package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("underlying error")
	withCause := New(InvalidLogin, "bad secret", cause)
	assert.Equal(t, "invalid_login: bad secret: underlying error", withCause.Error())

	withoutCause := New(NotExpected, "out of sequence", nil)
	assert.Equal(t, "not_expected: out of sequence", withoutCause.Error())
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("underlying error")
	err := New(Internal, "boom", cause)
	assert.Equal(t, cause, err.Unwrap())

	require.Nil(t, New(Internal, "boom", nil).Unwrap())
}

func TestConstructorsAndCheckers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		constructor func(string, error) *Error
		checker     func(error) bool
		wantType    Type
	}{
		{"InvalidLogin", NewInvalidLoginError, IsInvalidLogin, InvalidLogin},
		{"InvalidPacket", NewInvalidPacketError, IsInvalidPacket, InvalidPacket},
		{"AcctDisabled", NewAcctDisabledError, IsAcctDisabled, AcctDisabled},
		{"NoPermission", NewNoPermissionError, IsNoPermission, NoPermission},
		{"RestrictedHours", NewRestrictedHoursError, IsRestrictedHours, RestrictedHours},
		{"NotExpected", NewNotExpectedError, IsNotExpected, NotExpected},
		{"Internal", NewInternalError, IsInternal, Internal},
		{"WorkerExhausted", NewWorkerExhaustedError, IsWorkerExhausted, WorkerExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.constructor("msg", nil)
			assert.Equal(t, tt.wantType, err.Type)
			assert.True(t, tt.checker(err))
			assert.False(t, tt.checker(stderrors.New("plain")))
		})
	}
}

func TestMSCHAPCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, MSCHAPErrorAcctDisabled, AcctDisabled.MSCHAPCode())
	assert.Equal(t, MSCHAPErrorNoDialinPermission, NoPermission.MSCHAPCode())
	assert.Equal(t, MSCHAPErrorRestrictedLogonHours, RestrictedHours.MSCHAPCode())
	assert.Equal(t, MSCHAPErrorAuthenticationFailure, InvalidLogin.MSCHAPCode())
	assert.Equal(t, MSCHAPErrorAuthenticationFailure, NotExpected.MSCHAPCode())
}
