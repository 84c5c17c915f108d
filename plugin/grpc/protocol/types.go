// Package protocol defines the wire form of the pipeline service: boundary
// snapshots of live objects, the request and response messages, the JSON
// codec they travel in, and the gRPC service descriptor. Free-form data
// travels as google.protobuf.Struct.
//
// Every snapshot carries an explicit Kind tag. Receivers dispatch on it
// instead of inspecting the Go type of what they decoded.
package protocol

import (
	"time"

	"github.com/teranos/gauntlet/plugin"
)

// KindResult tags a Result snapshot. Entity kinds reuse plugin.Kind.
const KindResult plugin.Kind = "result"

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

// PingResponse is the liveness reply.
type PingResponse struct {
	Message string `json:"message"`
}

// BeginResponse names the Context a new run uses.
type BeginResponse struct {
	ContextID string `json:"contextId"`
}

// Instance is the snapshot of a live Instance.
type Instance struct {
	Kind     plugin.Kind    `json:"kind"`
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Families []string       `json:"families,omitempty"`
	Data     Struct         `json:"data"`
}

// Context is the snapshot of the active Context.
type Context struct {
	Kind      plugin.Kind    `json:"kind"`
	ID        string         `json:"id"`
	Instances []Instance     `json:"instances"`
	Data      Struct         `json:"data"`
}

// Plugin is a plugin descriptor as seen across the boundary.
type Plugin struct {
	Kind      plugin.Kind `json:"kind"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Order     float64     `json:"order"`
	Families  []string    `json:"families,omitempty"`
	Requires  string      `json:"requires,omitempty"`
	CanRepair bool        `json:"canRepair"`
}

// DiscoverResponse lists plugins in execution order.
type DiscoverResponse struct {
	Plugins []Plugin `json:"plugins"`
}

// TargetRequest addresses a plugin and an optional Instance. An empty
// InstanceID targets the Context.
type TargetRequest struct {
	PluginID   string `json:"pluginId"`
	InstanceID string `json:"instanceId,omitempty"`
}

// Record is one captured log emission.
type Record struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// UnitError is the error payload of a failed Result.
type UnitError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Result is the outcome of one execution.
type Result struct {
	Kind         plugin.Kind `json:"kind"`
	Success      bool        `json:"success"`
	PluginID     string      `json:"pluginId"`
	PluginName   string      `json:"pluginName,omitempty"`
	InstanceID   string      `json:"instanceId,omitempty"`
	InstanceName string      `json:"instanceName,omitempty"`
	Phase        string      `json:"phase"`
	Mode         string      `json:"mode"`
	Error        *UnitError  `json:"error,omitempty"`
	Records      []Record    `json:"records"`
	DurationMS   float64     `json:"durationMs"`
}

// Stats reports server request counters.
type Stats struct {
	TotalRequestCount uint64            `json:"totalRequestCount"`
	Methods           map[string]uint64 `json:"methods,omitempty"`
	UptimeSeconds     float64           `json:"uptimeSeconds"`
	MemoryRSS         uint64            `json:"memoryRSS,omitempty"`
}

// EmitRequest fires a named event. Entity arguments travel as identifiers.
type EmitRequest struct {
	Event string         `json:"event"`
	Args  Struct `json:"args,omitempty"`
}
