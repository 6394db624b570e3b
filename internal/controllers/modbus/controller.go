package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/Agrid-Dev/heatpumpsim/internal/ports"
	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

// Register map.
//
//	Coil 0:              write ON to run the current scenario; read = last run succeeded
//	Holding 0..3 (°C×100): initial tank temperature, on threshold, off threshold, indoor setpoint;
//	                       a multi-register write is validated and applied as a whole
//	Input 0..3:          final tank °C×100, average COP×100, delivered kWh×10, activations
const (
	holdingRegisters = 4
	inputRegisters   = 4
)

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
	Logger   *slog.Logger
}

type Controller struct {
	svc ports.SimulationService
	cfg Config

	serv *mbserver.Server

	mu  sync.Mutex
	ctx context.Context
}

func New(svc ports.SimulationService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{svc: svc, cfg: cfg, ctx: context.Background()}, nil
}

// Run starts the Modbus server and registers handlers that apply writes immediately and
// answer reads from the simulation service. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	serv.RegisterFunctionHandler(1, c.readCoils)
	serv.RegisterFunctionHandler(3, c.readHoldingRegisters)
	serv.RegisterFunctionHandler(4, c.readInputRegisters)
	serv.RegisterFunctionHandler(5, c.writeSingleCoil)
	serv.RegisterFunctionHandler(6, c.writeSingleRegister)
	serv.RegisterFunctionHandler(16, c.writeMultipleRegisters)

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}
	c.cfg.Logger.Info("modbus listening", "addr", c.cfg.Addr, "unit_id", c.cfg.UnitID)

	// Block until ctx.Done()
	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

// Read Coils (function 1) - coil 0 reports whether the last run succeeded.
func (c *Controller) readCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := addressRange(frame.GetData(), 2000)
	if exc != nil {
		return []byte{}, exc
	}
	if start != 0 || qty != 1 {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	coilByte := byte(0)
	if run, ok := c.svc.Last(); ok && run.Succeeded() {
		coilByte = 0x01
	}
	// response: byte count (1) + coil bytes
	return []byte{1, coilByte}, &mbserver.Success
}

// Read Holding Registers (function 3).
func (c *Controller) readHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := addressRange(frame.GetData(), 125)
	if exc != nil {
		return []byte{}, exc
	}
	if start+qty > holdingRegisters {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	s := c.svc.Get()
	all := [holdingRegisters]uint16{
		encodeTemp(s.InitialTankTemperature),
		encodeTemp(s.Tank.OnThreshold),
		encodeTemp(s.Tank.OffThreshold),
		encodeTemp(s.Building.SetpointTemperature),
	}
	return registersResponse(all[start : start+qty]), &mbserver.Success
}

// Read Input Registers (function 4) - summary of the last run, zeros before the first one.
func (c *Controller) readInputRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := addressRange(frame.GetData(), 125)
	if exc != nil {
		return []byte{}, exc
	}
	if start+qty > inputRegisters {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	var all [inputRegisters]uint16
	if run, ok := c.svc.Last(); ok && run.Succeeded() {
		sum := run.Summary()
		all = [inputRegisters]uint16{
			encodeScaled(sum.FinalTankTemperature, TemperatureScale),
			encodeScaled(sum.AverageCOP, COPScale),
			encodeScaled(sum.DeliveredEnergyKWh, EnergyScale),
			uint16(min(sum.Activations, math.MaxUint16)),
		}
	}
	return registersResponse(all[start : start+qty]), &mbserver.Success
}

// Write Single Coil (function 5) - ON at coil 0 runs the simulation.
func (c *Controller) writeSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if addr != 0 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	switch value {
	case 0x0000:
	case 0xFF00:
		c.mu.Lock()
		ctx := c.ctx
		c.mu.Unlock()
		if _, err := c.svc.Run(ctx); err != nil {
			c.cfg.Logger.Warn("modbus run failed", "error", err)
			return []byte{}, &mbserver.SlaveDeviceFailure
		}
	default:
		return []byte{}, &mbserver.IllegalDataValue
	}

	// echo request (address + value)
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

// Write Single Register (function 6)
func (c *Controller) writeSingleRegister(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if exc := c.writeHolding(int(addr), value); exc != nil {
		return []byte{}, exc
	}

	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

// Write Multiple Registers (function 16)
func (c *Controller) writeMultipleRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	d := frame.GetData()
	if len(d) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := binary.BigEndian.Uint16(d[0:2])
	quantity := binary.BigEndian.Uint16(d[2:4])
	byteCount := int(d[4])
	if quantity == 0 || byteCount != int(quantity)*2 || len(d) < 5+byteCount {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if int(start)+int(quantity) > holdingRegisters {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	// The block is one update: either every register is applied or none is.
	var patch scenario.Patch
	for i := 0; i < int(quantity); i++ {
		val := decodeTemp(binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2]))
		*holdingField(&patch, int(start)+i) = &val
	}
	if err := c.svc.Apply(patch); err != nil {
		c.cfg.Logger.Debug("modbus write rejected", "start", start, "quantity", quantity, "error", err)
		return []byte{}, &mbserver.IllegalDataValue
	}

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], start)
	binary.BigEndian.PutUint16(resp[2:4], quantity)
	return resp, &mbserver.Success
}

func (c *Controller) writeHolding(addr int, value uint16) *mbserver.Exception {
	var set func(float64) error
	switch addr {
	case 0:
		set = c.svc.SetInitialTankTemperature
	case 1:
		set = c.svc.SetOnThreshold
	case 2:
		set = c.svc.SetOffThreshold
	case 3:
		set = c.svc.SetSetpointTemperature
	default:
		return &mbserver.IllegalDataAddress
	}
	if err := set(decodeTemp(value)); err != nil {
		return &mbserver.IllegalDataValue
	}
	return nil
}

// holdingField maps a holding register to its field in a patch. addr must be below
// holdingRegisters.
func holdingField(p *scenario.Patch, addr int) **float64 {
	switch addr {
	case 0:
		return &p.InitialTankTemperature
	case 1:
		return &p.OnThreshold
	case 2:
		return &p.OffThreshold
	default:
		return &p.SetpointTemperature
	}
}

func addressRange(data []byte, maxQty int) (start, qty int, exc *mbserver.Exception) {
	if len(data) < 4 {
		return 0, 0, &mbserver.IllegalDataValue
	}
	start = int(binary.BigEndian.Uint16(data[0:2]))
	qty = int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > maxQty {
		return 0, 0, &mbserver.IllegalDataValue
	}
	return start, qty, nil
}

// registersResponse builds byte count + big-endian register bytes.
func registersResponse(regs []uint16) []byte {
	byteCount := len(regs) * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i, r := range regs {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
	}
	return resp
}

const (
	TemperatureScale = 100
	COPScale         = 100
	EnergyScale      = 10
)

// encodeTemp writes a kelvin temperature as signed °C×100.
func encodeTemp(k float64) uint16 {
	return encodeScaled(thermal.KelvinToCelsius(k), TemperatureScale)
}

func decodeTemp(u uint16) float64 {
	return thermal.CelsiusToKelvin(float64(int16(u)) / float64(TemperatureScale))
}

func encodeScaled(v float64, scale int) uint16 {
	r := min(max(int(math.Round(v*float64(scale))), math.MinInt16), math.MaxInt16)
	return uint16(int16(r))
}
