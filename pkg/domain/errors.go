package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrCollaboratorUnavailable is returned when an optional collaborator (LLM, Evidence Source) is not configured.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// ErrBudgetExhausted is returned by the rate governor when no external call may be initiated.
var ErrBudgetExhausted = errors.New("external call budget exhausted")

// ErrMalformedOutput is returned when a collaborator answers with output that does not fit the expected schema.
var ErrMalformedOutput = errors.New("malformed collaborator output")

// ErrCacheMiss is returned by a VerdictCache when no entry exists for a subject.
var ErrCacheMiss = errors.New("verdict cache miss")
