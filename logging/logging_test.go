package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsInvalidLevel(t *testing.T) {
	assert.Error(t, Init("not-a-level", "text", nil))
}

func TestInitRejectsInvalidFormat(t *testing.T) {
	assert.Error(t, Init(LevelInfo, "not-a-format", nil))
}

func TestInitAcceptsValidLevelAndFormat(t *testing.T) {
	require.NoError(t, Init(LevelDebug, "json", nil))
	require.NoError(t, Init(LevelInfo, "text", nil))
}

func testEntry() AccessEntry {
	return AccessEntry{
		Host:         "10.0.0.1",
		Method:       "GET",
		Path:         "/widgets",
		Status:       200,
		ResponseSize: 42,
		Duration:     3 * time.Millisecond,
		FlowID:       "abc123",
		Route:        "widgets-route",
		RequestTime:  time.Date(2000, 10, 10, 13, 55, 36, 0, time.UTC),
	}
}

func TestAccessLogCommonFormat(t *testing.T) {
	var buf bytes.Buffer
	a := NewAccessLog(AccessLogOptions{Output: &buf})
	a.Log(testEntry())

	got := buf.String()
	assert.True(t, strings.Contains(got, `"GET /widgets"`))
	assert.True(t, strings.Contains(got, "200"))
	assert.True(t, strings.Contains(got, "widgets-route"))
	assert.True(t, strings.Contains(got, "abc123"))
}

func TestAccessLogJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	a := NewAccessLog(AccessLogOptions{Output: &buf, JSON: true})
	a.Log(testEntry())

	got := buf.String()
	assert.True(t, strings.Contains(got, `"status":200`))
	assert.True(t, strings.Contains(got, `"flow_id":"abc123"`))
	assert.True(t, strings.Contains(got, `"route":"widgets-route"`))
}
