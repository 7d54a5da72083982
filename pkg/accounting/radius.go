// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

package accounting

import (
	"context"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/backend/radius"
)

// RadiusBackend sends every accounting event to a RADIUS accounting
// server (spec.md §4.7 "Backends: ... RADIUS accounting"). Unlike the
// authentication-side radius.Auth/EAPProxy, there is no verdict to weigh:
// a RADIUS accounting failure is logged by ParallelChain and never
// affects the session.
type RadiusBackend struct {
	Client radius.Client
}

// Name implements Backend.
func (r *RadiusBackend) Name() string { return "radius-accounting" }

// Run implements Backend.
func (r *RadiusBackend) Run(ctx context.Context, data *authdata.Data) error {
	req := &radius.AcctRequest{
		Type:       data.AcctType,
		SessionID:  data.Link.MSessionID,
		RecvOctets: data.Link.RecvOctets,
		XmitOctets: data.Link.XmitOctets,
	}
	if data.Params != nil {
		req.Authname = data.Params.Authname
	}
	return r.Client.Account(ctx, req)
}
