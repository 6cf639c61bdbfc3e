package providers

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ClassifyStatus maps an HTTP status to an error type.
func ClassifyStatus(status int) ErrorType {
	switch {
	case status == 429:
		return ErrRateLimit
	case status == 401 || status == 403:
		return ErrAuth
	case status >= 500:
		return ErrUpstream5xx
	default:
		return ErrUnknown
	}
}

// ClassifyErr maps a transport or decode error to an error type.
func ClassifyErr(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrTimeout
	case strings.Contains(msg, "unexpected end of json") ||
		strings.Contains(msg, "invalid character") ||
		strings.Contains(msg, "dynjson"):
		return ErrSchema
	default:
		return ErrUnknown
	}
}
