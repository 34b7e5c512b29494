// Package gpu provides an NVML-backed metric source for GPU utilization,
// memory and temperature.
package gpu

import (
	"errors"
	"fmt"
	"time"

	"codeberg.org/mutker/perfmond/internal/logger"
	"codeberg.org/mutker/perfmond/internal/metric"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const bytesPerMegabyte = 1024 * 1024

var ErrNVMLFailure = errors.New("NVML operation failed")

// Source reads GPU metrics through NVML. It implements metric.Source.
type Source struct {
	device nvml.Device
}

// NewSource initializes NVML and binds to the first GPU.
func NewSource() (*Source, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("%w: %v", ErrNVMLFailure, nvml.ErrorString(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return nil, fmt.Errorf("%w: %v", ErrNVMLFailure, nvml.ErrorString(ret))
	}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		logger.Info().Msgf("Detected GPU: %v", name)
	} else {
		logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return &Source{device: device}, nil
}

// Collect reads the current GPU utilization, used memory and temperature.
// Readings that fail individually are omitted from the sample rather than
// failing the whole collection.
func (s *Source) Collect() (*metric.Sample, error) {
	values := make(map[metric.Kind]float64)

	if util, ret := s.device.GetUtilizationRates(); ret == nvml.SUCCESS {
		values[metric.GPUUsage] = float64(util.Gpu)
	}

	if mem, ret := s.device.GetMemoryInfo(); ret == nvml.SUCCESS {
		values[metric.MemoryUsage] = float64(mem.Used) / bytesPerMegabyte
	}

	if temp, ret := s.device.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
		values[metric.ThermalState] = float64(temp)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no readings available", ErrNVMLFailure)
	}

	return metric.NewSample(time.Now(), values, nil), nil
}

// Shutdown releases the NVML handle.
func (s *Source) Shutdown() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("%w: %v", ErrNVMLFailure, nvml.ErrorString(ret))
	}

	return nil
}
