package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// SimulatedSource produces readings around a baseline with uniform jitter.
// Tests and bench setups can move the baseline, slow the sensor down or
// make it fail.
type SimulatedSource struct {
	mu          sync.Mutex
	temperature float64
	humidity    float64
	jitter      float64
	delay       time.Duration
	fail        error
}

// NewSimulatedSource creates a source centred on the given values.
func NewSimulatedSource(temperatureC, humidityPct, jitter float64) *SimulatedSource {
	return &SimulatedSource{temperature: temperatureC, humidity: humidityPct, jitter: jitter}
}

// SetBaseline moves the centre values.
func (s *SimulatedSource) SetBaseline(temperatureC, humidityPct float64) {
	s.mu.Lock()
	s.temperature, s.humidity = temperatureC, humidityPct
	s.mu.Unlock()
}

// SetDelay makes every read take d.
func (s *SimulatedSource) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// SetFailure makes every read fail with err (nil clears it).
func (s *SimulatedSource) SetFailure(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// Read returns one simulated sample.
func (s *SimulatedSource) Read(ctx context.Context) (fridge.SensorReading, error) {
	s.mu.Lock()
	temp, hum, jitter, delay, fail := s.temperature, s.humidity, s.jitter, s.delay, s.fail
	s.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fridge.SensorReading{}, ctx.Err()
		case <-t.C:
		}
	}
	if fail != nil {
		return fridge.SensorReading{}, fail
	}

	if jitter > 0 {
		temp += (rand.Float64()*2 - 1) * jitter
		hum += (rand.Float64()*2 - 1) * jitter
	}
	hum = min(max(hum, MinHumidityPct), MaxHumidityPct)

	return fridge.SensorReading{TemperatureC: temp, HumidityPct: hum, At: time.Now()}, nil
}
