package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, ErrRateLimit, ClassifyStatus(429))
	assert.Equal(t, ErrAuth, ClassifyStatus(401))
	assert.Equal(t, ErrAuth, ClassifyStatus(403))
	assert.Equal(t, ErrUpstream5xx, ClassifyStatus(500))
	assert.Equal(t, ErrUpstream5xx, ClassifyStatus(503))
	assert.Equal(t, ErrUnknown, ClassifyStatus(404))
}

func TestClassifyErr(t *testing.T) {
	assert.Equal(t, ErrTimeout, ClassifyErr(context.DeadlineExceeded))
	assert.Equal(t, ErrTimeout, ClassifyErr(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrTimeout, ClassifyErr(errors.New("dial tcp: i/o timeout")))
	assert.Equal(t, ErrSchema, ClassifyErr(errors.New("invalid character '<' looking for beginning of value")))
	assert.Equal(t, ErrSchema, ClassifyErr(errors.New("dynjson: expected array, got string")))
	assert.Equal(t, ErrUnknown, ClassifyErr(errors.New("connection refused")))
	assert.Equal(t, ErrorType(""), ClassifyErr(nil))
}

func TestClassifyPrefersStatus(t *testing.T) {
	err := fmt.Errorf("executing request: %w", &statusErr{status: 503, body: "oops"})
	assert.Equal(t, ErrUpstream5xx, classify(err))
}
