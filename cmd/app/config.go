package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Agrid-Dev/heatpumpsim/internal/dataset"
	"github.com/Agrid-Dev/heatpumpsim/internal/logging"
	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

const envPrefix = "HEATPUMPSIM_"

type Config struct {
	DeviceID    string            `koanf:"device_id"`
	Controllers ControllersConfig `koanf:"controllers"`
	Log         logging.Config    `koanf:"log"`

	Simulation SimulationConfig `koanf:"simulation"`
	Building   BuildingConfig   `koanf:"building"`
	Tank       TankConfig       `koanf:"tank"`
	Data       DataConfig       `koanf:"data"`

	// directory of the loaded config file, relative data paths resolve against it
	baseDir string
}

type ControllersConfig struct {
	HTTP   HTTPConfig   `koanf:"http"`
	MQTT   MQTTConfig   `koanf:"mqtt"`
	Modbus ModbusConfig `koanf:"modbus"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BrokerURL       string        `koanf:"broker_url"`
	ClientID        string        `koanf:"client_id"`
	BaseTopic       string        `koanf:"base_topic"`
	QoS             byte          `koanf:"qos"`
	RetainSnapshot  bool          `koanf:"retain_snapshot"`
	PublishInterval time.Duration `koanf:"publish_interval"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	UnitID  byte   `koanf:"unit_id"`
}

type SimulationConfig struct {
	Preset                 string  `koanf:"preset"` // A, B, C or D
	InitialTankTemperature float64 `koanf:"initial_tank_temperature"`
	InitiallyActive        bool    `koanf:"initially_active"`
	HorizonSeconds         float64 `koanf:"horizon_seconds"`
	ReportingPoints        int     `koanf:"reporting_points"`
	MaxStepSeconds         float64 `koanf:"max_step_seconds"`
	RelTol                 float64 `koanf:"rel_tol"`
	AbsTol                 float64 `koanf:"abs_tol"`
	MaxSteps               int     `koanf:"max_steps"`
}

// BuildingConfig mirrors thermal.BuildingParameters. Temperatures in K.
type BuildingConfig struct {
	WallArea            float64 `koanf:"wall_area"`
	WallUValue          float64 `koanf:"wall_u_value"`
	RoofArea            float64 `koanf:"roof_area"`
	RoofUValue          float64 `koanf:"roof_u_value"`
	SetpointTemperature float64 `koanf:"setpoint_temperature"`
}

// TankConfig mirrors thermal.TankParameters. WaterMassKg, when positive, replaces Capacity.
type TankConfig struct {
	Capacity             float64 `koanf:"capacity"`
	WaterMassKg          float64 `koanf:"water_mass_kg"`
	LossCoefficient      float64 `koanf:"loss_coefficient"`
	SurfaceArea          float64 `koanf:"surface_area"`
	CondenserCoefficient float64 `koanf:"condenser_coefficient"`
	CondenserArea        float64 `koanf:"condenser_area"`
	CondenserTemperature float64 `koanf:"condenser_temperature"`
	OnThreshold          float64 `koanf:"on_threshold"`
	OffThreshold         float64 `koanf:"off_threshold"`
}

type DataConfig struct {
	COPFile        string    `koanf:"cop_file"`
	AmbientFile    string    `koanf:"ambient_file"`
	AmbientCelsius []float64 `koanf:"ambient_celsius"`
	BuildingFile   string    `koanf:"building_file"`
}

// presetLayer holds the keys a preset seeds. It is merged between the defaults and the
// file/env overrides.
type presetLayer struct {
	Simulation presetSimulation `koanf:"simulation"`
	Building   BuildingConfig   `koanf:"building"`
	Tank       TankConfig       `koanf:"tank"`
}

type presetSimulation struct {
	InitialTankTemperature float64 `koanf:"initial_tank_temperature"`
}

func defaultConfig() Config {
	return Config{
		DeviceID: "default",
		Controllers: ControllersConfig{
			HTTP:   HTTPConfig{Addr: ":8080"},
			MQTT:   MQTTConfig{PublishInterval: time.Second},
			Modbus: ModbusConfig{Addr: ":1502", UnitID: 1},
		},
		Log: logging.Config{Level: "info", Format: "text"},
		Simulation: SimulationConfig{
			Preset:          thermal.DefaultPreset,
			HorizonSeconds:  thermal.DefaultHorizon,
			ReportingPoints: thermal.DefaultReportingPoints,
			MaxStepSeconds:  thermal.DefaultMaxStep,
			RelTol:          thermal.DefaultRelTol,
			AbsTol:          thermal.DefaultAbsTol,
		},
		Data: DataConfig{AmbientCelsius: []float64{0}},
	}
}

func layerFromPreset(p thermal.Preset) presetLayer {
	return presetLayer{
		Simulation: presetSimulation{InitialTankTemperature: p.InitialTankTemperature},
		Building: BuildingConfig{
			WallArea:            p.Building.WallArea,
			WallUValue:          p.Building.WallUValue,
			RoofArea:            p.Building.RoofArea,
			RoofUValue:          p.Building.RoofUValue,
			SetpointTemperature: p.Building.SetpointTemperature,
		},
		Tank: TankConfig{
			Capacity:             p.Tank.Capacity,
			LossCoefficient:      p.Tank.LossCoefficient,
			SurfaceArea:          p.Tank.SurfaceArea,
			CondenserCoefficient: p.Tank.CondenserCoefficient,
			CondenserArea:        p.Tank.CondenserArea,
			CondenserTemperature: p.Tank.CondenserTemperature,
			OnThreshold:          p.Tank.OnThreshold,
			OffThreshold:         p.Tank.OffThreshold,
		},
	}
}

// LoadConfig layers compiled defaults, the preset, the config file and the environment.
// A missing file falls back to defaults. A non-empty preset argument wins over every layer.
func LoadConfig(path, preset string) (Config, error) {
	return load(path, preset, os.Environ)
}

func load(path, preset string, environ func() []string) (Config, error) {
	overrides := koanf.New(".")
	loaded, err := loadFile(overrides, path)
	if err != nil {
		return Config{}, err
	}
	if err := overrides.Load(env.Provider(".", env.Opt{
		Prefix:        "PORT",
		EnvironFunc:   environ,
		TransformFunc: portTransform,
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}
	if err := overrides.Load(env.Provider(".", env.Opt{
		Prefix:      envPrefix,
		EnvironFunc: environ,
		TransformFunc: func(k, v string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(k, envPrefix)), v
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}
	if preset != "" {
		if err := overrides.Set("simulation.preset", preset); err != nil {
			return Config{}, err
		}
	}

	name := overrides.String("simulation.preset")
	if name == "" {
		name = thermal.DefaultPreset
	}
	p, err := thermal.LookupPreset(name)
	if err != nil {
		return Config{}, fmt.Errorf("simulation.preset: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(structs.Provider(layerFromPreset(p), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load preset: %w", err)
	}
	if err := k.Merge(overrides); err != nil {
		return Config{}, fmt.Errorf("merge config: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Simulation.Preset = p.Name
	if loaded {
		cfg.baseDir = filepath.Dir(path)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// loadFile reports whether a file was read. An absent file is not an error.
func loadFile(k *koanf.Koanf, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config: %w", err)
	}

	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return false, fmt.Errorf("unsupported config extension %q", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return false, fmt.Errorf("parse config: %w", err)
	}
	return true, nil
}

func applyDefaults(cfg *Config) {
	c := &cfg.Controllers
	if !c.HTTP.Enabled && !c.MQTT.Enabled && !c.Modbus.Enabled {
		c.HTTP.Enabled = true
	}
	if c.MQTT.PublishInterval <= 0 {
		c.MQTT.PublishInterval = time.Second
	}
	if c.Modbus.UnitID == 0 {
		c.Modbus.UnitID = 1
	}
}

// portTransform listens on all interfaces when the container convention PORT is set.
func portTransform(k, v string) (string, any) {
	if k != "PORT" || strings.TrimSpace(v) == "" {
		return "", nil
	}
	return "controllers.http.addr", ":" + strings.TrimSpace(v)
}

var sections = []string{"simulation", "building", "tank", "data", "log"}

// envKeyTransform maps an env name (prefix already removed) to a koanf path:
// CONTROLLERS_HTTP_ADDR -> controllers.http.addr, TANK_ON_THRESHOLD -> tank.on_threshold.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, "controllers_") {
		parts := strings.SplitN(s, "_", 3)
		if len(parts) < 3 {
			return s
		}
		return parts[0] + "." + parts[1] + "." + parts[2]
	}

	for _, sec := range sections {
		if strings.HasPrefix(s, sec+"_") {
			return sec + "." + strings.TrimPrefix(s, sec+"_")
		}
	}
	return s
}

func (c Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

// TankParameters applies the water-mass shortcut.
func (c Config) TankParameters() thermal.TankParameters {
	t := c.Tank
	capacity := t.Capacity
	if t.WaterMassKg > 0 {
		capacity = thermal.CapacityFromWaterMass(t.WaterMassKg)
	}
	return thermal.TankParameters{
		Capacity:             capacity,
		LossCoefficient:      t.LossCoefficient,
		SurfaceArea:          t.SurfaceArea,
		CondenserCoefficient: t.CondenserCoefficient,
		CondenserArea:        t.CondenserArea,
		CondenserTemperature: t.CondenserTemperature,
		OnThreshold:          t.OnThreshold,
		OffThreshold:         t.OffThreshold,
	}
}

// Scenario assembles the initial scenario, reading the COP, ambient and building data files.
func (c Config) Scenario() (scenario.Scenario, error) {
	s := c.Simulation
	sc := scenario.Scenario{
		Preset: s.Preset,
		Building: thermal.BuildingParameters{
			WallArea:            c.Building.WallArea,
			WallUValue:          c.Building.WallUValue,
			RoofArea:            c.Building.RoofArea,
			RoofUValue:          c.Building.RoofUValue,
			SetpointTemperature: c.Building.SetpointTemperature,
		},
		Tank:                   c.TankParameters(),
		InitialTankTemperature: s.InitialTankTemperature,
		InitiallyActive:        s.InitiallyActive,
		Horizon:                s.HorizonSeconds,
		ReportingPoints:        s.ReportingPoints,
		Solver: thermal.SolverSettings{
			MaxStep:  s.MaxStepSeconds,
			RelTol:   s.RelTol,
			AbsTol:   s.AbsTol,
			MaxSteps: s.MaxSteps,
		},
	}

	if c.Data.BuildingFile != "" {
		b, err := dataset.LoadBuildingInputs(c.resolve(c.Data.BuildingFile))
		if err != nil {
			return scenario.Scenario{}, fmt.Errorf("data.building_file: %w", err)
		}
		sc.Building = b
	}

	if c.Data.COPFile == "" {
		return scenario.Scenario{}, fmt.Errorf("data.cop_file: %w", thermal.ErrNoCOPSamples)
	}
	cop, err := dataset.LoadCOPSamples(c.resolve(c.Data.COPFile))
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("data.cop_file: %w", err)
	}
	sc.COPSamples = cop

	if c.Data.AmbientFile != "" {
		sc.Ambient, err = dataset.LoadAmbient(c.resolve(c.Data.AmbientFile), s.HorizonSeconds)
		if err != nil {
			return scenario.Scenario{}, fmt.Errorf("data.ambient_file: %w", err)
		}
	} else {
		sc.Ambient, err = thermal.UniformAmbientSeries(c.Data.AmbientCelsius, s.HorizonSeconds)
		if err != nil {
			return scenario.Scenario{}, fmt.Errorf("data.ambient_celsius: %w", err)
		}
	}
	return sc, nil
}
