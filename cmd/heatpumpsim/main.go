package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/Agrid-Dev/heatpumpsim/cmd/app"
	httpctrl "github.com/Agrid-Dev/heatpumpsim/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/heatpumpsim/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/heatpumpsim/internal/controllers/mqtt"
	"github.com/Agrid-Dev/heatpumpsim/internal/device"
	"github.com/Agrid-Dev/heatpumpsim/internal/logging"
	"github.com/Agrid-Dev/heatpumpsim/internal/metrics"
	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
)

func main() {
	var (
		configPath string
		preset     string
		once       bool
	)
	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "path to config file (.yaml/.yml/.json)")
	pflag.StringVarP(&preset, "preset", "p", "", "house preset A-D, overrides simulation.preset")
	pflag.BoolVar(&once, "once", false, "run one simulation, print the summary as JSON and exit")
	pflag.Parse()

	if err := run(configPath, preset, once); err != nil {
		fmt.Fprintln(os.Stderr, "heatpumpsim:", err)
		os.Exit(1)
	}
}

func run(configPath, preset string, once bool) error {
	cfg, err := app.LoadConfig(configPath, preset)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	sc, err := cfg.Scenario()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc, err := scenario.New(sc, logger, m)
	if err != nil {
		return err
	}
	dev := device.New(cfg.DeviceID, svc)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if once {
		r, runErr := dev.Svc.Run(ctx)
		if r != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(r.Summary()); err != nil {
				return err
			}
		}
		return runErr
	}

	return serve(ctx, cfg, dev, m, logger)
}

type runner interface {
	Run(ctx context.Context) error
}

func serve(ctx context.Context, cfg app.Config, dev *device.Device, m *metrics.Metrics, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	named := map[string]runner{}
	c := cfg.Controllers
	if c.HTTP.Enabled {
		named["http"] = httpctrl.New(dev.Svc, c.HTTP.Addr, dev.ID, m)
		logger.Info("http listening", "addr", c.HTTP.Addr, "device_id", dev.ID)
	}
	if c.MQTT.Enabled {
		ctrl, err := mqttctrl.New(dev.Svc, mqttctrl.Config{
			DeviceID:        dev.ID,
			BrokerURL:       c.MQTT.BrokerURL,
			ClientID:        c.MQTT.ClientID,
			BaseTopic:       c.MQTT.BaseTopic,
			QoS:             c.MQTT.QoS,
			RetainSnapshot:  c.MQTT.RetainSnapshot,
			PublishInterval: c.MQTT.PublishInterval,
			Username:        c.MQTT.Username,
			Password:        c.MQTT.Password,
			Logger:          logger.With("controller", "mqtt"),
		})
		if err != nil {
			return err
		}
		named["mqtt"] = ctrl
	}
	if c.Modbus.Enabled {
		ctrl, err := modbusctrl.New(dev.Svc, modbusctrl.Config{
			DeviceID: dev.ID,
			Addr:     c.Modbus.Addr,
			UnitID:   c.Modbus.UnitID,
			Logger:   logger.With("controller", "modbus"),
		})
		if err != nil {
			return err
		}
		named["modbus"] = ctrl
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for name, r := range named {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Run(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("controller exited", "controller", name, "err", err)
			errMu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
			errMu.Unlock()
			cancel()
		}()
	}
	wg.Wait()
	logger.Info("shutdown complete")
	return firstErr
}
