// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

package accounting

import (
	"context"

	"github.com/mpd-project/mpd/pkg/accounting/utmpwtmp"
	"github.com/mpd-project/mpd/pkg/authdata"
)

// UtmpBackend records Start/Stop events into the utmp/wtmp log (spec.md
// §4.7 "Backends: ... UTMP/WTMP"). Update events are a no-op: utmp has no
// notion of an interim record, only login and logout.
type UtmpBackend struct {
	Store *utmpwtmp.Store
}

// Name implements Backend.
func (u *UtmpBackend) Name() string { return "utmp" }

// Run implements Backend.
func (u *UtmpBackend) Run(_ context.Context, data *authdata.Data) error {
	switch data.AcctType {
	case authdata.AcctStart:
		authname := ""
		if data.Params != nil {
			authname = data.Params.Authname
		}
		return u.Store.Login(utmpwtmp.Entry{
			Line: data.Link.LinkName,
			User: authname,
			Host: data.Link.PeerIP,
			PID:  int32(data.Link.LinkID),
		})
	case authdata.AcctStop:
		return u.Store.Logout(data.Link.LinkName)
	default:
		return nil
	}
}
