// Package ipc implements sunsetr's control/event protocol (spec §4.I,
// §6): a Unix socket, line-delimited JSON requests and replies, and a
// broadcast fan-out to "follow" subscribers with bounded per-client
// queues.
package ipc

// Request is the wire shape of every command frame spec §6 defines:
// `{ "cmd": "<name>", ...args }`. Unused fields are simply absent from
// the decoded value; each command handler reads only the fields it
// needs.
type Request struct {
	Cmd string `json:"cmd"`

	// preset
	Name *string `json:"name,omitempty"`

	// test
	Temp  *int     `json:"temp,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`

	// restart
	Instant    *bool `json:"instant,omitempty"`
	Background *bool `json:"background,omitempty"`

	// get/set
	Fields []string `json:"fields,omitempty"`
	Set    []string `json:"set,omitempty"`
	Target *string  `json:"target,omitempty"`

	// status/get
	JSON   *bool `json:"json,omitempty"`
	Follow *bool `json:"follow,omitempty"`
}

// Response is the wire shape of every synchronous reply spec §6
// defines: `{ "ok": true, ... }` or `{ "ok": false, "error": "...",
// "kind": "..." }`. Fields is merged into the top-level JSON object on
// success so each command can report its own result shape without a
// nested envelope.
type Response struct {
	OK     bool           `json:"ok"`
	Error  string         `json:"error,omitempty"`
	Kind   string         `json:"kind,omitempty"`
	Fields map[string]any `json:"-"`
}

// Ok builds a successful Response carrying fields as top-level keys.
func Ok(fields map[string]any) Response {
	return Response{OK: true, Fields: fields}
}

// Err builds a failed Response with the given apperr.Kind string and
// message.
func Err(kind, msg string) Response {
	return Response{OK: false, Error: msg, Kind: kind}
}

// MarshalJSON flattens Fields into the top-level object alongside
// ok/error/kind, matching spec §6's envelope exactly.
func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["ok"] = r.OK
	if r.Error != "" {
		out["error"] = r.Error
	}
	if r.Kind != "" {
		out["kind"] = r.Kind
	}
	return jsonMarshal(out)
}

// StateApplied is the `state_applied` broadcast event, emitted on
// every backend apply (spec §4.I, §6).
type StateApplied struct {
	EventType    string  `json:"event_type"`
	ActivePreset *string `json:"active_preset"`
	Period       string  `json:"period"`
	State        string  `json:"state"`
	Progress     float64 `json:"progress"`
	CurrentTemp  int     `json:"current_temp"`
	CurrentGamma float64 `json:"current_gamma"`
	TargetTemp   int     `json:"target_temp"`
	TargetGamma  float64 `json:"target_gamma"`
	NextPeriod   string  `json:"next_period"`
}

// NewStateApplied sets EventType for convenience.
func NewStateApplied() StateApplied { return StateApplied{EventType: "state_applied"} }

// PeriodChanged is the `period_changed` broadcast event, emitted on
// transitions across schedule boundaries.
type PeriodChanged struct {
	EventType  string `json:"event_type"`
	FromPeriod string `json:"from_period"`
	ToPeriod   string `json:"to_period"`
}

func NewPeriodChanged() PeriodChanged { return PeriodChanged{EventType: "period_changed"} }

// PresetChanged is the `preset_changed` broadcast event.
type PresetChanged struct {
	EventType    string  `json:"event_type"`
	FromPreset   *string `json:"from_preset"`
	ToPreset     *string `json:"to_preset"`
	TargetPeriod string  `json:"target_period"`
	TargetTemp   int     `json:"target_temp"`
	TargetGamma  float64 `json:"target_gamma"`
}

func NewPresetChanged() PresetChanged { return PresetChanged{EventType: "preset_changed"} }
