// Package services implements the donation pipeline: webhook payload
// intake, moderation gating, context building, rule evaluation, leaderboard
// update, archival, audit, and action dispatch. This file centralizes the
// service-level error values so callers can branch on them with errors.Is.
package services

import "errors"

var (
	// ErrUnrecognizedPayload is returned when an inbound webhook body
	// carries neither an inline donation nor a fetchable event reference.
	ErrUnrecognizedPayload = errors.New("unrecognized webhook payload")

	// ErrProviderDisabled is returned when a payload requires an API fetch
	// but no provider credentials are configured.
	ErrProviderDisabled = errors.New("provider API not configured")

	// ErrUnsupportedEventType is returned for referenced event types the
	// pipeline does not know how to resolve.
	ErrUnsupportedEventType = errors.New("unsupported provider event type")
)
