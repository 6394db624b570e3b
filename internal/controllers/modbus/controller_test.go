package modbusctrl

import (
	"context"
	"encoding/binary"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/modbus"

	"github.com/Agrid-Dev/heatpumpsim/internal/ports"
	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
	"github.com/Agrid-Dev/heatpumpsim/internal/testutil"
	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

// spy service for tests; handlers run on the server's goroutines.
type spySimulationService struct {
	mu   sync.Mutex
	s    scenario.Scenario
	last *scenario.Run

	runErr error

	// record calls
	setInitialCalls  []float64
	setOnCalls       []float64
	setOffCalls      []float64
	setSetpointCalls []float64
	applyCalls       []scenario.Patch
	runCalls         int
}

func (f *spySimulationService) Get() scenario.Scenario {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}
func (f *spySimulationService) SetInitialTankTemperature(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.InitialTankTemperature = v
	f.setInitialCalls = append(f.setInitialCalls, v)
	return nil
}
func (f *spySimulationService) SetOnThreshold(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v >= f.s.Tank.OffThreshold {
		return thermal.ErrThresholdOrder
	}
	f.s.Tank.OnThreshold = v
	f.setOnCalls = append(f.setOnCalls, v)
	return nil
}
func (f *spySimulationService) SetOffThreshold(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v <= f.s.Tank.OnThreshold {
		return thermal.ErrThresholdOrder
	}
	f.s.Tank.OffThreshold = v
	f.setOffCalls = append(f.setOffCalls, v)
	return nil
}
func (f *spySimulationService) SetSetpointTemperature(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Building.SetpointTemperature = v
	f.setSetpointCalls = append(f.setSetpointCalls, v)
	return nil
}
func (f *spySimulationService) SetThresholds(on, off float64) error {
	return f.Apply(scenario.Patch{OnThreshold: &on, OffThreshold: &off})
}
func (f *spySimulationService) Apply(p scenario.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.s
	for dst, v := range map[*float64]*float64{
		&next.InitialTankTemperature:       p.InitialTankTemperature,
		&next.Tank.OnThreshold:             p.OnThreshold,
		&next.Tank.OffThreshold:            p.OffThreshold,
		&next.Building.SetpointTemperature: p.SetpointTemperature,
	} {
		if v != nil {
			*dst = *v
		}
	}
	if next.Tank.OnThreshold >= next.Tank.OffThreshold {
		return thermal.ErrThresholdOrder
	}
	f.s = next
	f.applyCalls = append(f.applyCalls, p)
	return nil
}
func (f *spySimulationService) ApplyPreset(string) error { return nil }
func (f *spySimulationService) Run(context.Context) (*scenario.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls++
	if f.runErr != nil {
		f.last = &scenario.Run{ID: "failed", Err: f.runErr}
		return f.last, f.runErr
	}
	f.last = testutil.CannedRun()
	return f.last, nil
}
func (f *spySimulationService) RunScenario(context.Context, scenario.Scenario) (*scenario.Run, error) {
	return testutil.CannedRun(), nil
}
func (f *spySimulationService) Last() (*scenario.Run, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.last != nil
}

func findFreeTCPAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	a := l.Addr().String()
	_ = l.Close()
	return a
}

const settle = 50 * time.Millisecond

func newSpy() *spySimulationService {
	fs := &spySimulationService{}
	fs.s = testutil.NewFakeSimulationService().S
	return fs
}

func startController(t *testing.T, fs ports.SimulationService) modbus.Client {
	t.Helper()
	addr := findFreeTCPAddr(t)

	ctrl, err := New(fs, Config{
		DeviceID: "dev",
		Addr:     addr,
		UnitID:   1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := t.Context()
	go func() {
		_ = ctrl.Run(ctx)
	}()

	time.Sleep(settle)

	handler := modbus.NewTCPClientHandler(addr)
	handler.Timeout = 2 * time.Second
	if err := handler.Connect(); err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = handler.Close() })
	return modbus.NewClient(handler)
}

func TestNewValidation(t *testing.T) {
	if _, err := New(newSpy(), Config{}); err == nil {
		t.Fatal("expected error when UnitID missing")
	}
	c, err := New(newSpy(), Config{UnitID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if c.cfg.Addr != "127.0.0.1:1502" {
		t.Fatalf("expected default address, got %q", c.cfg.Addr)
	}
}

func TestModbusControllerHandlers(t *testing.T) {
	fs := newSpy()
	client := startController(t, fs)

	// Read holding registers 0..3
	res, err := client.ReadHoldingRegisters(0, 4)
	if err != nil {
		t.Fatalf("read holding: %v", err)
	}
	if len(res) != 8 {
		t.Fatalf("expected 8 bytes got %d", len(res))
	}
	get := func(b []byte, i int) uint16 { return binary.BigEndian.Uint16(b[i*2 : i*2+2]) }
	if get(res, 0) != 4500 {
		t.Fatalf("initial temperature mismatch: %d", get(res, 0))
	}
	if get(res, 1) != 4000 || get(res, 2) != 6000 {
		t.Fatalf("threshold mismatch: %d %d", get(res, 1), get(res, 2))
	}
	if get(res, 3) != 2000 {
		t.Fatalf("setpoint mismatch: %d", get(res, 3))
	}

	// Out of range
	if _, err := client.ReadHoldingRegisters(2, 3); err == nil {
		t.Fatal("expected illegal address error")
	}

	// Write on threshold register (38.5 °C)
	if _, err := client.WriteSingleRegister(1, 3850); err != nil {
		t.Fatalf("write register: %v", err)
	}
	fs.mu.Lock()
	if len(fs.setOnCalls) == 0 || fs.setOnCalls[len(fs.setOnCalls)-1] != decodeTemp(3850) {
		fs.mu.Unlock()
		t.Fatalf("SetOnThreshold not called")
	}
	fs.mu.Unlock()

	// Rejected by the service: on threshold above off threshold (70 °C)
	if _, err := client.WriteSingleRegister(1, 7000); err == nil {
		t.Fatal("expected illegal data value error")
	}

	// Write initial temperature and setpoint together
	values := []byte{0x11, 0x94, 0x08, 0x34} // 4500, 2100
	if _, err := client.WriteMultipleRegisters(2, 2, values); err != nil {
		t.Fatalf("write multiple: %v", err)
	}
	fs.mu.Lock()
	if got := fs.s.Tank.OffThreshold; got != decodeTemp(4500) {
		fs.mu.Unlock()
		t.Fatalf("off threshold = %v", got)
	}
	if got := fs.s.Building.SetpointTemperature; got != decodeTemp(2100) {
		fs.mu.Unlock()
		t.Fatalf("setpoint = %v", got)
	}
	fs.mu.Unlock()
}

// registers packs °C×100 values for a multi-register write.
func registers(vals ...uint16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint16(b[i*2:], v)
	}
	return b
}

func TestModbusWriteMultipleIsAtomic(t *testing.T) {
	svc, err := scenario.New(testutil.NewFakeSimulationService().S, nil, nil)
	if err != nil {
		t.Fatalf("scenario.New: %v", err)
	}
	client := startController(t, svc)

	// A band entirely above the current 40..60 °C one, written in a single request.
	if _, err := client.WriteMultipleRegisters(1, 2, registers(6200, 7000)); err != nil {
		t.Fatalf("shift band: %v", err)
	}
	got := svc.Get()
	if got.Tank.OnThreshold != decodeTemp(6200) || got.Tank.OffThreshold != decodeTemp(7000) {
		t.Fatalf("thresholds = %v/%v, want %v/%v",
			got.Tank.OnThreshold, got.Tank.OffThreshold, decodeTemp(6200), decodeTemp(7000))
	}

	// Valid initial temperature, inverted band: nothing may change.
	before := svc.Get()
	if _, err := client.WriteMultipleRegisters(0, 3, registers(5000, 7500, 6000)); err == nil {
		t.Fatal("expected illegal data value error")
	}
	if got := svc.Get(); !reflect.DeepEqual(got, before) {
		t.Fatalf("rejected write changed the scenario: initial %v, thresholds %v/%v",
			got.InitialTankTemperature, got.Tank.OnThreshold, got.Tank.OffThreshold)
	}

	// Back down below the current band, again in one request.
	if _, err := client.WriteMultipleRegisters(0, 4, registers(4500, 3500, 5500, 2100)); err != nil {
		t.Fatalf("write all holding registers: %v", err)
	}
	got = svc.Get()
	if got.InitialTankTemperature != decodeTemp(4500) || got.Tank.OnThreshold != decodeTemp(3500) ||
		got.Tank.OffThreshold != decodeTemp(5500) || got.Building.SetpointTemperature != decodeTemp(2100) {
		t.Fatalf("unexpected scenario after full write: %+v", got)
	}
}

func TestModbusWriteMultipleUsesOneUpdate(t *testing.T) {
	fs := newSpy()
	client := startController(t, fs)

	if _, err := client.WriteMultipleRegisters(1, 2, registers(6200, 7000)); err != nil {
		t.Fatalf("write multiple: %v", err)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.applyCalls) != 1 {
		t.Fatalf("expected one Apply call, got %d", len(fs.applyCalls))
	}
	p := fs.applyCalls[0]
	if p.InitialTankTemperature != nil || p.SetpointTemperature != nil {
		t.Fatalf("untouched registers must stay out of the patch: %+v", p)
	}
	if len(fs.setOnCalls)+len(fs.setOffCalls) != 0 {
		t.Fatalf("single-field setters must not be used for a block write")
	}
}

func TestModbusRunCoilAndInputRegisters(t *testing.T) {
	fs := newSpy()
	client := startController(t, fs)

	// Before any run: coil off, input registers zero.
	coils, err := client.ReadCoils(0, 1)
	if err != nil {
		t.Fatalf("read coils: %v", err)
	}
	if coils[0] != 0 {
		t.Fatalf("expected coil 0 off before a run")
	}
	res, err := client.ReadInputRegisters(0, 4)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	for i, b := range res {
		if b != 0 {
			t.Fatalf("expected zero input registers before a run, byte %d = %d", i, b)
		}
	}

	// Trigger a run
	if _, err := client.WriteSingleCoil(0, 0xFF00); err != nil {
		t.Fatalf("write coil: %v", err)
	}
	fs.mu.Lock()
	if fs.runCalls != 1 {
		fs.mu.Unlock()
		t.Fatalf("expected one run, got %d", fs.runCalls)
	}
	fs.mu.Unlock()

	coils, err = client.ReadCoils(0, 1)
	if err != nil {
		t.Fatalf("read coils: %v", err)
	}
	if coils[0] != 1 {
		t.Fatalf("expected coil 0 on after a successful run")
	}

	res, err = client.ReadInputRegisters(0, 4)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	get := func(i int) uint16 { return binary.BigEndian.Uint16(res[i*2 : i*2+2]) }
	if get(0) != 4700 || get(1) != 250 || get(2) != 100 || get(3) != 3 {
		t.Fatalf("unexpected input registers %d %d %d %d", get(0), get(1), get(2), get(3))
	}

	// Coil OFF is accepted and does nothing.
	if _, err := client.WriteSingleCoil(0, 0x0000); err != nil {
		t.Fatalf("write coil off: %v", err)
	}
	fs.mu.Lock()
	if fs.runCalls != 1 {
		fs.mu.Unlock()
		t.Fatalf("expected no extra run, got %d", fs.runCalls)
	}
	fs.mu.Unlock()
}

func TestModbusRunFailure(t *testing.T) {
	fs := newSpy()
	fs.runErr = thermal.ErrNonPositiveCOP
	client := startController(t, fs)

	if _, err := client.WriteSingleCoil(0, 0xFF00); err == nil {
		t.Fatal("expected device failure exception")
	}
	coils, err := client.ReadCoils(0, 1)
	if err != nil {
		t.Fatalf("read coils: %v", err)
	}
	if coils[0] != 0 {
		t.Fatalf("expected coil 0 off after a failed run")
	}
}

func TestTemperatureCodec(t *testing.T) {
	tests := []struct {
		kelvin float64
		want   uint16
	}{
		{313.15, 4000},
		{273.15, 0},
		{263.15, uint16(0xFC18)}, // -10 °C
		{1000, 32767},            // clamped
	}
	for _, tt := range tests {
		if got := encodeTemp(tt.kelvin); got != tt.want {
			t.Errorf("encodeTemp(%v) = %d, want %d", tt.kelvin, got, tt.want)
		}
	}
	if got := decodeTemp(4000); got != thermal.CelsiusToKelvin(40) {
		t.Errorf("decodeTemp(4000) = %v", got)
	}
}
