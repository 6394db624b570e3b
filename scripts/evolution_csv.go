package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/Agrid-Dev/heatpumpsim/internal/dataset"
	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
	"github.com/spf13/pflag"
)

// SimulatePresets runs every house preset on the same day and writes the tank trajectories
// to filename, one row per preset and reporting point.
func SimulatePresets(filename string, cop []thermal.COPSample, ambient thermal.AmbientSeries) ([]*thermal.Result, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Preset", "Time", "Tank", "Ambient", "Active", "HeatPumpOutput", "COP"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %v", err)
	}

	var results []*thermal.Result
	for _, name := range thermal.PresetNames() {
		sc, err := scenario.FromPreset(name, 0, cop)
		if err != nil {
			return nil, err
		}
		sc.Ambient = ambient

		res, err := thermal.Simulate(sc.Input())
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		results = append(results, res)

		for i, t := range res.Times {
			if err := writer.Write([]string{
				name,
				strconv.FormatFloat(t, 'f', 1, 64),
				fmt.Sprintf("%.3f", res.TankTemperaturesC[i]),
				fmt.Sprintf("%.2f", res.AmbientTemperatures[i]),
				strconv.FormatBool(res.HeatSourceActive[i]),
				fmt.Sprintf("%.1f", res.HeatPumpOutput[i]),
				fmt.Sprintf("%.3f", res.COP[i]),
			}); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %v", err)
			}
		}
	}
	return results, writer.Error()
}

type options struct {
	copPath     string
	ambientPath string
	out         string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("evolution_csv", pflag.ContinueOnError)
	fs.StringVar(&o.copPath, "cop", "configs/cop_samples.yaml", "COP samples YAML")
	fs.StringVarP(&o.ambientPath, "ambient", "a", "configs/ambient_hourly.csv", "ambient series (.csv/.yaml)")
	fs.StringVarP(&o.out, "out", "o", "heatpumpsim.csv", "trajectory CSV")
	err := fs.Parse(args)
	return o, err
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cop, err := dataset.LoadCOPSamples(opts.copPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ambient, err := dataset.LoadAmbient(opts.ambientPath, thermal.DefaultHorizon)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	results, err := SimulatePresets(opts.out, cop, ambient)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "preset\tfinal °C\tdelivered kWh\telectrical kWh\tavg COP\tactivations")
	for i, name := range thermal.PresetNames() {
		r := results[i]
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.3f\t%d\n",
			name, thermal.KelvinToCelsius(r.FinalTankTemperature()),
			r.DeliveredEnergyKWh(), r.ElectricalEnergyKWh(), r.AverageCOP, r.Activations)
	}
	tw.Flush()
}
