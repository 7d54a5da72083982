// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package external implements the External auth script backend of
// spec.md §4.5 item 1: invokes `<script> <linkname> <hex(authname)>` and
// parses three newline-terminated stdout lines: password, IP range, and a
// numeric why_fail code.
//
// Per the resolved Open Question in spec.md §16, the third line is read
// in full with bufio.Scanner and converted with strconv.Atoi, rather than
// truncated to two bytes as the source does.
package external

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"os/exec"
	"strconv"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/backend"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/logger"
)

// DefaultRunner invokes the script with os/exec, per spec.md §6's
// `<script> <linkname> <hex(authname)>` contract. Exit status is ignored
// (spec.md §6 "Exit status is ignored"); only stdout is consulted.
func DefaultRunner(ctx context.Context, script, linkname, hexAuthname string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, script, linkname, hexAuthname)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	runErr := cmd.Run()
	if _, ok := runErr.(*exec.ExitError); ok {
		// Non-zero exit is not fatal; stdout is still consulted.
		return stdout.Bytes(), nil
	}
	if runErr != nil {
		return nil, runErr
	}
	return stdout.Bytes(), nil
}

// whyFailByCode maps the external script's numeric why_fail code to a
// Type. The script contract (spec.md §6/§4.5) fixes only one point on
// this table by example (code 2 → NoPermission, spec.md §8 scenario #7);
// the rest follow the order of the why_fail enum (spec.md §3), except
// that NoPermission and AcctDisabled trade places so that code 2 stays
// NoPermission. DESIGN.md documents the table as a filled gap.
var whyFailByCode = map[int]mpderrors.Type{
	0: mpderrors.InvalidLogin,
	1: mpderrors.InvalidPacket,
	2: mpderrors.NoPermission,
	3: mpderrors.AcctDisabled,
	4: mpderrors.RestrictedHours,
	5: mpderrors.NotExpected,
}

// Runner invokes the external script and returns its raw stdout. Default
// implementation uses os/exec; overridable in tests.
type Runner func(ctx context.Context, script, linkname, hexAuthname string) ([]byte, error)

// Backend is the External script Verifier.
type Backend struct {
	Script string
	Run    Runner
}

// Name implements backend.Verifier.
func (b *Backend) Name() authparams.Backend { return authparams.BackendExternal }

// Verify implements backend.Verifier.
func (b *Backend) Verify(ctx context.Context, data *authdata.Data) (*backend.Result, error) {
	if b.Script == "" {
		return &backend.Result{Status: authdata.Undefined}, nil
	}

	run := b.Run
	if run == nil {
		run = DefaultRunner
	}

	hexAuthname := hex.EncodeToString([]byte(data.Params.Authname))
	out, err := run(ctx, b.Script, data.Link.LinkName, hexAuthname)
	if err != nil {
		// Fatal popen/read errors leave status Undefined and fall through
		// (spec.md §4.5 item 1).
		logger.Warnf("external auth script %q failed: %v", b.Script, err)
		return &backend.Result{Status: authdata.Undefined}, nil
	}

	password, ipRange, whyFailLine, hasFailLine := parseLines(out)

	if hasFailLine {
		code, err := strconv.Atoi(whyFailLine)
		if err != nil {
			logger.Warnf("external auth script %q: unparseable why_fail %q", b.Script, whyFailLine)
			return &backend.Result{Status: authdata.Undefined}, nil
		}
		why, ok := whyFailByCode[code]
		if !ok {
			why = mpderrors.NotExpected
		}
		return &backend.Result{Status: authdata.Fail, WhyFail: why}, nil
	}

	if password == "" {
		// Absence of a password line with no failure line: undefined
		// result (spec.md §6 "absence of password line = undefined
		// result").
		return &backend.Result{Status: authdata.Undefined}, nil
	}

	data.Params.Password = password
	if ipRange != "" {
		logger.Debugf("external auth script returned ip-range %q for %q (unparsed)", ipRange, data.Params.Authname)
	}
	return &backend.Result{Status: authdata.Undefined}, nil
}

// parseLines extracts the three newline-terminated lines from the
// script's stdout. hasFailLine reports whether a (non-empty) third line
// was present at all, per spec.md §4.5 item 1 ("presence ⇒ explicit
// fail").
func parseLines(out []byte) (password, ipRange, whyFail string, hasFailLine bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	lines := make([]string, 0, 3)
	for scanner.Scan() && len(lines) < 3 {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > 0 {
		password = lines[0]
	}
	if len(lines) > 1 {
		ipRange = lines[1]
	}
	if len(lines) > 2 && lines[2] != "" {
		whyFail = lines[2]
		hasFailLine = true
	}
	return password, ipRange, whyFail, hasFailLine
}
