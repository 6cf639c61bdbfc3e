package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel(" error "))
	assert.Equal(t, INFO, ParseLevel("anything"))
	assert.Equal(t, INFO, ParseLevel(""))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "a***@claro.com.co", RedactEmail("analyst@claro.com.co"))
	assert.Equal(t, "not-an-email", RedactEmail("not-an-email"))
	assert.Equal(t, "@nope", RedactEmail("@nope"))
}

func TestRedactValue(t *testing.T) {
	assert.Equal(t, "a***@claro.com.co", redactValue("recipient_email", "analyst@claro.com.co"))
	// Embedded addresses in generic fields are masked too.
	assert.Equal(t, "sent to a***@claro.com.co ok", redactValue("detail", "sent to analyst@claro.com.co ok"))
}
