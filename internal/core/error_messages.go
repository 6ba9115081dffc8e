package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. Sentinel errors are
// matched with errors.Is first; anything else falls back to substring
// patterns on the technical message.
//
//	SRC001 - Source file not found
//	SRC002 - Source file not readable (permissions)
//	SRC003 - Database source unreachable
//	SRC004 - Database query failed
//	BND001 - Boundary file not found
//	BND002 - Boundary file has no usable features
//	SNP001 - No snapshot loaded yet
//	SNP002 - Another reload is in progress
//	SNP003 - Reload timed out
//	REG001 - Region has no boundary record
//	REQ001 - Unsupported response format
//	RATE001 - Too many requests
//	ERR000 - Anything else

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSnapshot is returned by readers before the first successful load.
	ErrNoSnapshot = errors.New("no snapshot loaded")

	// ErrReloadBusy is returned when a reload slot could not be acquired in time.
	ErrReloadBusy = errors.New("reload already in progress, please try again later")

	// ErrNoBoundaries is returned when the boundary source yields no features.
	ErrNoBoundaries = errors.New("boundary source has no features")

	// ErrUnknownRegion is returned when a region has no boundary record.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrUnsupportedFormat is returned for an unrecognized output format.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// UserMessage is a user-friendly rendering of a technical error.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrNoSnapshot, UserMessage{
		Message: "Billing data has not been loaded yet",
		Action:  "Wait for the initial load to finish or trigger a reload",
		Code:    "SNP001",
	}},
	{ErrReloadBusy, UserMessage{
		Message: "Another reload is already running",
		Action:  "Please try again in a few moments",
		Code:    "SNP002",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Reload timed out",
		Action:  "Check the data source and try again",
		Code:    "SNP003",
	}},
	{ErrNoBoundaries, UserMessage{
		Message: "Boundary data contains no regions",
		Action:  "Check BOUNDARY_PATH points at a GeoJSON FeatureCollection",
		Code:    "BND002",
	}},
	{ErrUnknownRegion, UserMessage{
		Message: "Region not found on the map",
		Action:  "Check the region name matches a boundary feature",
		Code:    "REG001",
	}},
	{ErrUnsupportedFormat, UserMessage{
		Message: "Unsupported response format",
		Action:  "Use format=json, format=text or format=html",
		Code:    "REQ001",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are checked in order; the first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "boundary",
		msg: UserMessage{
			Message: "Boundary file could not be read",
			Action:  "Check BOUNDARY_PATH and file permissions",
			Code:    "BND001",
		},
	},
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "Billing source file was not found",
			Action:  "Check SOURCE_PATH points at an existing CSV or XLSX file",
			Code:    "SRC001",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Billing source file is not readable",
			Action:  "Check file permissions for the service user",
			Code:    "SRC002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the billing database",
			Action:  "Please try again in a few moments",
			Code:    "SRC003",
		},
	},
	{
		pattern: "failed to connect",
		msg: UserMessage{
			Message: "Unable to connect to the billing database",
			Action:  "Please try again in a few moments",
			Code:    "SRC003",
		},
	},
	{
		pattern: "query billing rows",
		msg: UserMessage{
			Message: "Billing query failed",
			Action:  "Check DATABASE_QUERY returns region, category, mrc and nrc columns",
			Code:    "SRC004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Reload timed out",
			Action:  "Check the data source and try again",
			Code:    "SNP003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a minute before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error into a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	lower := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
