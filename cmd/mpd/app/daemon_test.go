// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/config"
	"github.com/mpd-project/mpd/pkg/linkapi"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/registry"
)

func testConfig() *config.Config {
	return &config.Config{
		Links: map[string]config.LinkOptions{
			"ppp0": {
				Authname:       "router",
				MaxLogins:      1,
				Timeout:        30 * time.Second,
				EnableInternal: true,
			},
		},
	}
}

func TestNewDaemonWiresOneLinkPerConfig(t *testing.T) {
	daemon, err := NewDaemon(testConfig(), linkapi.NewFake(), linkapi.NewFake(), HostDeps{}, nil)
	require.NoError(t, err)

	require.Contains(t, daemon.Links, "ppp0")
	ld := daemon.Links["ppp0"]
	assert.NotNil(t, ld.Controller)
	assert.NotNil(t, ld.Accounting)
	assert.Equal(t, "router", ld.Conf.Authname)
}

func TestAuthStartRejectsUnknownLink(t *testing.T) {
	daemon, err := NewDaemon(testConfig(), linkapi.NewFake(), linkapi.NewFake(), HostDeps{}, nil)
	require.NoError(t, err)

	err = daemon.AuthStart("does-not-exist", registry.ID(1), ppp.ProtoPAP, ppp.ProtoNone)
	assert.Error(t, err)
}

func TestAuthStartWiresSelfToPeerPAP(t *testing.T) {
	writer := linkapi.NewFake()
	daemon, err := NewDaemon(testConfig(), writer, linkapi.NewFake(), HostDeps{}, nil)
	require.NoError(t, err)

	require.NoError(t, daemon.AuthStart("ppp0", registry.ID(1), ppp.ProtoPAP, ppp.ProtoNone))

	require.Len(t, writer.Frames, 1, "self-to-peer PAP sends its first request immediately")
	assert.Equal(t, ppp.ProtoPAP, writer.Frames[0].Proto)
}

func TestLinkUpAndLinkDownDriveAccounting(t *testing.T) {
	daemon, err := NewDaemon(testConfig(), linkapi.NewFake(), linkapi.NewFake(), HostDeps{}, nil)
	require.NoError(t, err)

	snapshot := authdata.LinkSnapshot{LinkName: "ppp0", RecvOctets: 100, XmitOctets: 50}
	params := &authparams.Params{Authname: "router"}

	err = daemon.LinkUp(context.Background(), "ppp0", registry.ID(1), snapshot, params)
	require.NoError(t, err)

	require.NoError(t, daemon.UpdateSnapshot("ppp0", authdata.LinkSnapshot{LinkName: "ppp0", RecvOctets: 200, XmitOctets: 90}))
	require.NoError(t, daemon.LinkDown(context.Background(), "ppp0", params))
}

func TestLinkUpRejectsUnknownLink(t *testing.T) {
	daemon, err := NewDaemon(testConfig(), linkapi.NewFake(), linkapi.NewFake(), HostDeps{}, nil)
	require.NoError(t, err)

	err = daemon.LinkUp(context.Background(), "missing", registry.ID(1), authdata.LinkSnapshot{}, nil)
	assert.Error(t, err)
}

func TestBuildVerifiersSkipsBackendsMissingHostDeps(t *testing.T) {
	opts := config.LinkOptions{EnableSystem: true, EnableOPIE: true, EnableRadius: true}
	verifiers := buildVerifiers(opts, nil, HostDeps{}, "ppp0")
	assert.Empty(t, verifiers, "no verifier should be built when its host dependency is missing")
}

func TestBuildAccountingBackendsEmptyWhenNothingConfigured(t *testing.T) {
	backends := buildAccountingBackends(config.LinkOptions{}, HostDeps{}, nil)
	assert.Empty(t, backends)
}
