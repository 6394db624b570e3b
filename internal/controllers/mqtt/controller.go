package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/Agrid-Dev/heatpumpsim/internal/ports"
	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainSnapshot  bool
	PublishInterval time.Duration

	Username string
	Password string

	Logger *slog.Logger
}

type Controller struct {
	svc ports.SimulationService
	cfg Config

	client mqtt.Client

	mu  sync.Mutex
	ctx context.Context
}

func New(svc ports.SimulationService, cfg Config) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "heatpumpsim/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "heatpumpsim-" + cfg.DeviceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		ctx: context.Background(),
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		topic := c.topic("set/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.cfg.Logger.Error("mqtt subscribe failed", "topic", topic, "error", err)
			return
		}
		c.cfg.Logger.Info("mqtt connected", "broker", c.cfg.BrokerURL, "topic", topic)
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: publish snapshot on interval, and only when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	var last scenarioDTO
	first := true

	// publish immediately once
	c.publishSnapshot()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			cur := toScenarioDTO(c.svc.Get())
			if first || !reflect.DeepEqual(cur, last) {
				c.publishSnapshot()
				last = cur
				first = false
			}
		}
	}
}

type scenarioDTO struct {
	Preset                 string  `json:"preset,omitempty"`
	InitialTankTemperature float64 `json:"initial_tank_temperature"`
	OnThreshold            float64 `json:"on_threshold"`
	OffThreshold           float64 `json:"off_threshold"`
	SetpointTemperature    float64 `json:"setpoint_temperature"`
	HorizonSeconds         float64 `json:"horizon_seconds"`
	ReportingPoints        int     `json:"reporting_points"`
	AmbientMinC            float64 `json:"ambient_min_c"`
	AmbientMaxC            float64 `json:"ambient_max_c"`
}

func toScenarioDTO(s scenario.Scenario) scenarioDTO {
	in := s.Input()
	dto := scenarioDTO{
		Preset:                 s.Preset,
		InitialTankTemperature: s.InitialTankTemperature,
		OnThreshold:            s.Tank.OnThreshold,
		OffThreshold:           s.Tank.OffThreshold,
		SetpointTemperature:    s.Building.SetpointTemperature,
		HorizonSeconds:         in.Horizon,
		ReportingPoints:        in.ReportingPoints,
	}
	if s.Ambient.Len() > 0 {
		dto.AmbientMinC, dto.AmbientMaxC = s.Ambient.Bounds()
	}
	return dto
}

func (c *Controller) publishSnapshot() {
	b, _ := json.Marshal(toScenarioDTO(c.svc.Get()))
	c.client.Publish(c.topic("snapshot"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

func (c *Controller) publishResult(run *scenario.Run) {
	b, _ := json.Marshal(run.Summary())
	c.client.Publish(c.topic("result"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	t := msg.Topic()
	prefix := c.cfg.BaseTopic + "/set/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	field := strings.TrimPrefix(t, prefix)

	payload := msg.Payload()

	var err error
	switch field {
	case "initial_tank_temperature":
		err = applyValue(payload, c.svc.SetInitialTankTemperature)
	case "on_threshold":
		err = applyValue(payload, c.svc.SetOnThreshold)
	case "off_threshold":
		err = applyValue(payload, c.svc.SetOffThreshold)
	case "setpoint_temperature":
		err = applyValue(payload, c.svc.SetSetpointTemperature)
	case "preset":
		err = applyValue(payload, c.svc.ApplyPreset)
	case "run":
		// a run publishes its result, never the snapshot
		start, err := decodeValueStrict[bool](payload)
		if err != nil {
			c.cfg.Logger.Debug("mqtt command ignored", "field", field, "error", err)
			return
		}
		if start {
			c.run()
		}
		return
	default:
		return
	}
	if err != nil {
		c.cfg.Logger.Debug("mqtt command ignored", "field", field, "error", err)
		return
	}
	c.publishSnapshot()
}

func (c *Controller) run() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	run, err := c.svc.Run(ctx)
	if run == nil {
		c.cfg.Logger.Warn("mqtt run produced no result", "error", err)
		return
	}
	c.publishResult(run)
}

func applyValue[T any](payload []byte, apply func(T) error) error {
	v, err := decodeValueStrict[T](payload)
	if err != nil {
		return err
	}
	return apply(v)
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
