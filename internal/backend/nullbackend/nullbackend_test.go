package nullbackend

import (
	"testing"
	"time"

	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/colormath"
)

func TestSetColorDedupsUnchangedState(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	d := New(func() time.Time { return now })

	state := colormath.State{TempK: 4000, GammaPct: 95}
	if err := d.SetColor(state); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	if err := d.SetColor(state); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	if got := len(d.Log()); got != 1 {
		t.Errorf("Log length = %d, want 1 (repeated identical SetColor must not re-log)", got)
	}
}

func TestSetColorRecordsChanges(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	d := New(func() time.Time { return now })

	d.SetColor(colormath.State{TempK: 6500, GammaPct: 100})
	now = now.Add(time.Minute)
	d.SetColor(colormath.State{TempK: 6000, GammaPct: 98})

	log := d.Log()
	if len(log) != 2 {
		t.Fatalf("Log length = %d, want 2", len(log))
	}
	last, ok := d.Last()
	if !ok {
		t.Fatal("Last() ok = false, want true")
	}
	if last.State.TempK != 6000 {
		t.Errorf("Last().State.TempK = %d, want 6000", last.State.TempK)
	}
}

func TestDetachRestoresIdentity(t *testing.T) {
	d := New(time.Now)
	d.SetColor(colormath.State{TempK: 3300, GammaPct: 90})
	if err := d.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	last, _ := d.Last()
	if last.State != backend.Identity {
		t.Errorf("Last().State = %+v, want Identity %+v", last.State, backend.Identity)
	}
}

func TestWithCapabilitiesOverride(t *testing.T) {
	d := New(time.Now).WithCapabilities(backend.Capabilities{NativeAnimation: true})
	if caps := d.Capabilities(); !caps.NativeAnimation || caps.SupportsSmoothing {
		t.Errorf("Capabilities = %+v, want NativeAnimation only", caps)
	}
}
