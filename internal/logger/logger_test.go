package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLogLevel("warning"))
	assert.Equal(t, ERROR, ParseLogLevel("error"))
	assert.Equal(t, INFO, ParseLogLevel("nonsense"))
}

func TestNewRejectsUnknownOutput(t *testing.T) {
	_, err := New(Options{Output: "syslog"})
	assert.Error(t, err)

	_, err = New(Options{Output: "file"})
	assert.Error(t, err)
}

func TestForBountyCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	prev := defaultLogger
	SetDefaultLogger(NewWriter(INFO, &buf))
	t.Cleanup(func() { defaultLogger = prev })

	ForBounty("rinkeby", 42).Info("reconciled %d fulfillments", 3)
	Sync()

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "reconciled 3 fulfillments", line["message"])
	assert.Equal(t, "rinkeby", line["network"])
	assert.EqualValues(t, 42, line["standard_bounties_id"])
}
