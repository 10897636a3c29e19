package hub

import (
	"errors"
	"strings"
	"testing"

	"github.com/hub-control/hubcore/codec"
	"github.com/hub-control/hubcore/peripheral"
)

func noopHandler(p *peripheral.Peripheral, v codec.PortValue) {}

func TestBuildValidHub(t *testing.T) {
	reg := NewRegistry()
	h, err := NewBuilder(KindBoost, "train").
		WithAddress("00:11:22:33:44:55").
		Attach(peripheral.NewMotor("wheel", 0)).
		Attach(peripheral.NewVisionSensor("eyes", 1)).
		OnSense("color_change", noopHandler).
		OnSense("distance_change", noopHandler).
		Build(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if h.Name() != "train" || h.Kind() != KindBoost {
		t.Errorf("hub = %s/%s", h.Name(), h.Kind())
	}
	if h.Address() != "00:11:22:33:44:55" {
		t.Errorf("address = %q", h.Address())
	}
	if h.ID() == "" {
		t.Error("hub id not generated")
	}
	if h.State() != Created {
		t.Errorf("state = %s, want created", h.State())
	}
	if reg.Len() != 1 {
		t.Errorf("registry len = %d, want 1", reg.Len())
	}
}

func TestBuildAddressDefaultsToName(t *testing.T) {
	reg := NewRegistry()
	h, err := NewBuilder(KindPoweredUp, "train").Build(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if h.Address() != "train" {
		t.Errorf("address = %q, want hub name", h.Address())
	}
}

func TestBuildRejectsMissingSensingHandler(t *testing.T) {
	reg := NewRegistry()
	_, err := NewBuilder(KindBoost, "train").
		Attach(peripheral.NewVisionSensor("eyes", 1)).
		OnSense("color_change", noopHandler). // distance_change missing
		Build(reg)
	if err == nil {
		t.Fatal("build accepted sensing capability without handler")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want %v", err, ErrConfiguration)
	}

	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("err type = %T", err)
	}
	if ce.Peripheral != "eyes" {
		t.Errorf("peripheral = %q, want eyes", ce.Peripheral)
	}
	if !strings.Contains(ce.Reason, "distance_change") {
		t.Errorf("reason %q does not name the missing callback", ce.Reason)
	}
	if reg.Len() != 0 {
		t.Error("failed build still registered the hub")
	}
}

func TestBuildRejectsDuplicatePort(t *testing.T) {
	reg := NewRegistry()
	_, err := NewBuilder(KindTechnic, "crane").
		Attach(peripheral.NewMotor("lift", 0)).
		Attach(peripheral.NewMotor("swing", 0)).
		Build(reg)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want %v", err, ErrConfiguration)
	}

	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("err type = %T", err)
	}
	if ce.Peripheral != "swing" {
		t.Errorf("peripheral = %q, want swing", ce.Peripheral)
	}
	if !strings.Contains(ce.Reason, "lift") {
		t.Errorf("reason %q does not name the occupant", ce.Reason)
	}
}

func TestBuildRejectsMissingNames(t *testing.T) {
	if _, err := NewBuilder(KindPoweredUp, "").Build(NewRegistry()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty hub name: err = %v", err)
	}

	_, err := NewBuilder(KindPoweredUp, "train").
		Attach(peripheral.NewMotor("", 0)).
		Build(NewRegistry())
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty peripheral name: err = %v", err)
	}
}

func TestBuildRejectsNilRegistry(t *testing.T) {
	if _, err := NewBuilder(KindPoweredUp, "train").Build(nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("nil registry: err = %v", err)
	}
}

func TestBuildAutoPortStaysUnassigned(t *testing.T) {
	reg := NewRegistry()
	m := peripheral.NewMotor("wheel", peripheral.PortAuto)
	h, err := NewBuilder(KindPoweredUp, "train").Attach(m).Build(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := h.Peripheral("wheel"); got == nil {
		t.Fatal("auto-port peripheral not reachable by name")
	}
	if m.Port() != peripheral.PortAuto {
		t.Errorf("port = %d before any attachment report", m.Port())
	}
}

func TestRegistryPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"first", "second", "third"} {
		if _, err := NewBuilder(KindPoweredUp, name).Build(reg); err != nil {
			t.Fatalf("build %s: %v", name, err)
		}
	}
	hubs := reg.Hubs()
	if len(hubs) != 3 {
		t.Fatalf("registry len = %d", len(hubs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if hubs[i].Name() != want {
			t.Errorf("hubs[%d] = %q, want %q", i, hubs[i].Name(), want)
		}
	}
}
