// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package aclpolicy evaluates the optional Cedar policy statement a
// backend may attach to an authparams.ACLRule (see SPEC_FULL.md §2),
// extending the plain rule/pipe/queue/filters/limits fields with a real
// policy-as-code evaluator. Grounded on the teacher's Cedar authorizer
// wrapper (pkg/authz/authorizers/cedar), generalized from "may this
// principal call this MCP tool" to "may this session use this pipe".
package aclpolicy

import (
	"errors"
	"fmt"

	"github.com/cedar-policy/cedar-go"
	"github.com/cedar-policy/cedar-go/types"
)

// ErrNoPolicy mirrors the teacher's ErrNoPolicies: an ACL rule's
// CedarPolicy field was empty.
var ErrNoPolicy = errors.New("aclpolicy: empty policy statement")

// Request asks whether a session may perform an action on a pipe/queue
// resource, e.g. "may session S123 open pipe P0".
type Request struct {
	SessionID string
	Action    string
	Resource  string
}

// Evaluator wraps a single compiled Cedar policy statement.
type Evaluator struct {
	policySet *cedar.PolicySet
}

// Compile parses a single Cedar policy statement (as attached to an
// authparams.ACLRule) into an Evaluator.
func Compile(statement string) (*Evaluator, error) {
	if statement == "" {
		return nil, ErrNoPolicy
	}

	policySet, err := cedar.NewPolicySetFromBytes("rule.cedar", []byte(statement))
	if err != nil {
		return nil, fmt.Errorf("aclpolicy: parse policy: %w", err)
	}
	return &Evaluator{policySet: policySet}, nil
}

// IsAuthorized evaluates req against the compiled policy set and reports
// whether it is allowed.
func (e *Evaluator) IsAuthorized(req Request) bool {
	entities := types.EntityMap{}
	decision, _ := e.policySet.IsAuthorized(entities, cedar.Request{
		Principal: types.NewEntityUID("Session", types.String(req.SessionID)),
		Action:    types.NewEntityUID("Action", types.String(req.Action)),
		Resource:  types.NewEntityUID("Pipe", types.String(req.Resource)),
	})
	return decision == types.Allow
}
