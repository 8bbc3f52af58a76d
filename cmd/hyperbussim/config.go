package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment variables that supply the defaults of the run command.
const (
	envVariant     = "HYPERBUS_VARIANT"
	envLatency     = "HYPERBUS_LATENCY"
	envChipSelects = "HYPERBUS_CHIP_SELECTS"
	envFreqMHz     = "HYPERBUS_FREQ_MHZ"
	envTraceDB     = "HYPERBUS_TRACE_DB"
	envMonitorPort = "HYPERBUS_MONITOR_PORT"
)

type config struct {
	Variant     string
	Latency     uint8
	ChipSelects int
	FreqMHz     float64
	TraceDB     string
	MonitorPort int
}

func defaultConfig() config {
	return config{
		Variant:     "hyperflash",
		ChipSelects: 1,
		FreqMHz:     100,
	}
}

type lookupFunc func(key string) (string, bool)

// loadConfig reads the defaults from the process environment, after loading
// the given env file into it. A missing env file is not an error.
func loadConfig(path string) (config, error) {
	if path != "" {
		err := godotenv.Load(path)
		if err != nil && !os.IsNotExist(errors.Cause(err)) {
			return config{}, errors.Wrapf(err, "loading %s", path)
		}
	}

	return configFromEnv(os.LookupEnv)
}

// parseConfig reads the defaults from the content of an env file only.
func parseConfig(content string) (config, error) {
	env, err := godotenv.Unmarshal(content)
	if err != nil {
		return config{}, errors.Wrap(err, "parsing env")
	}

	return configFromEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

func configFromEnv(lookup lookupFunc) (config, error) {
	c := defaultConfig()

	if v, ok := lookup(envVariant); ok && v != "" {
		c.Variant = v
	}

	if v, ok := lookup(envTraceDB); ok {
		c.TraceDB = v
	}

	if v, ok := lookup(envLatency); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return c, errors.Wrapf(err, "parsing %s", envLatency)
		}

		c.Latency = uint8(n)
	}

	if v, ok := lookup(envChipSelects); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.Wrapf(err, "parsing %s", envChipSelects)
		}

		c.ChipSelects = n
	}

	if v, ok := lookup(envFreqMHz); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, errors.Wrapf(err, "parsing %s", envFreqMHz)
		}

		if f <= 0 {
			return c, errors.Errorf("%s must be positive, got %s",
				envFreqMHz, v)
		}

		c.FreqMHz = f
	}

	if v, ok := lookup(envMonitorPort); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.Wrapf(err, "parsing %s", envMonitorPort)
		}

		c.MonitorPort = n
	}

	return c, nil
}
