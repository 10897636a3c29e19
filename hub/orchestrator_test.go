package hub

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hub-control/hubcore/codec"
	"github.com/hub-control/hubcore/peripheral"
	"github.com/hub-control/hubcore/transport"
	"github.com/hub-control/hubcore/transport/fake"
)

// buildHub registers one hub carrying a button so initialize has a visible
// wire footprint (its input format setup write).
func buildHub(t *testing.T, reg *Registry, name string) *Hub {
	t.Helper()
	h, err := NewBuilder(KindPoweredUp, name).
		Attach(peripheral.NewButton(name+"-button", 0)).
		OnSense("press_change", noopHandler).
		Build(reg)
	if err != nil {
		t.Fatalf("build %s: %v", name, err)
	}
	return h
}

func TestInitializeRunsHubsInRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	buildHub(t, reg, "h1")
	buildHub(t, reg, "h2")

	tr := fake.New()
	orch := NewOrchestrator(reg, tr, testConfig(), zerolog.Nop())
	defer orch.Channel().DisconnectAll()

	if err := orch.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// h1 connects and fully initializes before h2 is touched.
	want := []string{"open:h1", "write:h1", "open:h2", "write:h2"}
	got := tr.CallLog()
	if len(got) != len(want) {
		t.Fatalf("call log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call log = %v, want %v", got, want)
		}
	}
}

func TestInitializeAbortsOnFirstFailure(t *testing.T) {
	reg := NewRegistry()
	buildHub(t, reg, "h1")
	buildHub(t, reg, "h2")
	buildHub(t, reg, "h3")

	tr := fake.New()
	tr.FailOpen["h2"] = true
	orch := NewOrchestrator(reg, tr, testConfig(), zerolog.Nop())
	defer orch.Channel().DisconnectAll()

	err := orch.Initialize(context.Background())
	if !errors.Is(err, transport.ErrConnection) {
		t.Fatalf("err = %v, want %v", err, transport.ErrConnection)
	}

	for _, call := range tr.CallLog() {
		if call == "open:h3" {
			t.Error("later hub connected after an earlier failure")
		}
	}
}

func TestRunFinalizesOnProgramError(t *testing.T) {
	reg := NewRegistry()
	buildHub(t, reg, "h1")

	tr := fake.New()
	orch := NewOrchestrator(reg, tr, testConfig(), zerolog.Nop())

	boom := errors.New("program failed")
	err := orch.Run(context.Background(), func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want program error", err)
	}
	if tr.OpenCount() != 0 {
		t.Errorf("open count = %d after run, want 0", tr.OpenCount())
	}
}

func TestRunWithNilProgram(t *testing.T) {
	reg := NewRegistry()
	buildHub(t, reg, "h1")

	tr := fake.New()
	orch := NewOrchestrator(reg, tr, testConfig(), zerolog.Nop())

	if err := orch.Run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.OpenCount() != 0 {
		t.Errorf("open count = %d after run, want 0", tr.OpenCount())
	}
}

func TestFinalizeSweepsRefusedConnections(t *testing.T) {
	reg := NewRegistry()
	buildHub(t, reg, "h1")
	buildHub(t, reg, "h2")

	tr := fake.New()
	tr.FailClose["h1"] = true
	orch := NewOrchestrator(reg, tr, testConfig(), zerolog.Nop())

	ctx := context.Background()
	if err := orch.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// h1's close is refused, so Finalize reports the error, but the command
	// channel's final sweep still leaves nothing open.
	if err := orch.Finalize(ctx); err == nil {
		t.Error("refused close not reported")
	}
	if tr.OpenCount() != 0 {
		t.Errorf("open count = %d after finalize, want 0", tr.OpenCount())
	}
}

func TestRunProgramWritesStayOrdered(t *testing.T) {
	reg := NewRegistry()
	motorA := peripheral.NewMotor("motorA", 0)
	motorB := peripheral.NewMotor("motorB", 1)
	if _, err := NewBuilder(KindTechnic, "crane").
		Attach(motorA).
		Attach(motorB).
		Build(reg); err != nil {
		t.Fatalf("build: %v", err)
	}

	tr := fake.New()
	orch := NewOrchestrator(reg, tr, testConfig(), zerolog.Nop())

	err := orch.Run(context.Background(), func(ctx context.Context) error {
		if err := motorA.SetSpeed(ctx, 40); err != nil {
			return err
		}
		return motorB.SetSpeed(ctx, 60)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var program [][]byte
	for _, w := range tr.WrittenFrames() {
		if len(w.Frame) > 2 && w.Frame[2] == codec.MsgPortOutputCommand {
			program = append(program, w.Frame)
		}
	}
	// Two speed commands plus two finalize stops, in submission order.
	want := [][]byte{
		codec.EncodeSetPower(0, 40),
		codec.EncodeSetPower(1, 60),
	}
	if len(program) < 2 {
		t.Fatalf("recorded %d output commands, want at least 2", len(program))
	}
	for i := range want {
		if !bytes.Equal(program[i], want[i]) {
			t.Errorf("command %d = % x, want % x", i, program[i], want[i])
		}
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	reg := NewRegistry()
	buildHub(t, reg, "h1")

	tr := fake.New()
	orch := NewOrchestrator(reg, tr, testConfig(), zerolog.Nop())

	sub, cancel := orch.Events().Subscribe(64)
	defer cancel()

	if err := orch.Run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	seen := map[string]bool{}
	for {
		select {
		case ev := <-sub:
			seen[ev.Type] = true
			if seen["initialized"] && seen["finalized"] {
				return
			}
		default:
			t.Fatalf("lifecycle events missing, saw %v", seen)
		}
	}
}
