package utils

import (
	"time"
)

// Dispatch cadence constants
const (
	// SendInterval spaces consecutive sends of one campaign (12 messages per minute)
	SendInterval = 5 * time.Second

	// CompletionGrace is added after the last scheduled send before the first completion check
	CompletionGrace = 30 * time.Second

	// CompletionRecheckInterval is the delay between completion checks
	CompletionRecheckInterval = time.Minute

	// MaxCompletionChecks bounds the number of completion checks before completion is forced
	MaxCompletionChecks = 20

	// MaxSendAttempts caps delivery attempts per recipient, the first one included
	MaxSendAttempts = 3

	// SendRetryBackoff is the fixed wait before retrying a transient send failure
	SendRetryBackoff = 30 * time.Second

	// GatewayRequestTimeout bounds a single call to the WhatsApp gateway
	GatewayRequestTimeout = 30 * time.Second
)

// Scheduler constants
const (
	// SchedulerInterval is the default cadence of the due-campaign sweep
	SchedulerInterval = time.Minute

	// SweepBatchSize limits how many due campaigns one sweep picks up
	SweepBatchSize = 100

	// SweepLockTTL bounds how long one replica holds the sweep lock
	SweepLockTTL = 50 * time.Second

	// ScheduleClockSkew is the tolerance applied when rejecting schedule times in the past
	ScheduleClockSkew = time.Minute
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// NoRecipientsErrorMessage is recorded on campaigns whose audience resolves to nobody
const NoRecipientsErrorMessage = "No recipients found for the specified audience"
