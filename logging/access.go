package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// AccessEntry is one record of a completed HTTP request proxied
// through an HttpServer. It is pure observability: nothing in the
// matching or forwarding path reads it back.
type AccessEntry struct {
	Host         string
	Method       string
	Path         string
	Status       int
	ResponseSize int64
	Duration     time.Duration
	FlowID       string
	Route        string
	RequestTime  time.Time
}

// AccessLogOptions configures an AccessLog created by NewAccessLog.
type AccessLogOptions struct {
	// Output is where formatted entries are written. Defaults to
	// os.Stdout when nil.
	Output io.Writer
	// JSON switches the format from the Apache-common-log-flavoured
	// default to one JSON object per line.
	JSON bool
}

// AccessLog formats and writes AccessEntry records. It is safe for
// concurrent use: each Log call performs a single Write.
type AccessLog struct {
	out  io.Writer
	json bool
}

// NewAccessLog builds an AccessLog from opts.
func NewAccessLog(opts AccessLogOptions) *AccessLog {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &AccessLog{out: out, json: opts.JSON}
}

// Log writes one formatted line for e.
func (a *AccessLog) Log(e AccessEntry) {
	if a.json {
		a.logJSON(e)
		return
	}
	a.logCommon(e)
}

// logCommon renders e in an Apache-common-log-flavoured line:
//
//	host - - [timestamp] "METHOD path" status size duration route flow-id
//
// where duration is rendered by time.Duration.String (e.g. "3ms").
func (a *AccessLog) logCommon(e AccessEntry) {
	fmt.Fprintf(a.out, "%s - - [%s] %q %d %d %s %s %s\n",
		e.Host,
		e.RequestTime.Format("02/Jan/2006:15:04:05 -0700"),
		fmt.Sprintf("%s %s", e.Method, e.Path),
		e.Status,
		e.ResponseSize,
		e.Duration,
		e.Route,
		e.FlowID,
	)
}

type accessEntryJSON struct {
	Host         string `json:"host"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	Status       int    `json:"status"`
	ResponseSize int64  `json:"response_size"`
	DurationMS   int64  `json:"duration_ms"`
	FlowID       string `json:"flow_id"`
	Route        string `json:"route"`
	Timestamp    string `json:"timestamp"`
}

func (a *AccessLog) logJSON(e AccessEntry) {
	enc := json.NewEncoder(a.out)
	_ = enc.Encode(accessEntryJSON{
		Host:         e.Host,
		Method:       e.Method,
		Path:         e.Path,
		Status:       e.Status,
		ResponseSize: e.ResponseSize,
		DurationMS:   e.Duration.Milliseconds(),
		FlowID:       e.FlowID,
		Route:        e.Route,
		Timestamp:    e.RequestTime.Format(time.RFC3339Nano),
	})
}
