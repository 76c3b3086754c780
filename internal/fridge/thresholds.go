package fridge

import (
	"fmt"
	"strings"
)

// Breach is a set of threshold conditions currently violated.
type Breach uint8

// Breach flags.
const (
	BreachTemperatureHigh Breach = 1 << iota
	BreachTemperatureLow
	BreachHumidityHigh
)

// None reports whether no condition is violated.
func (b Breach) None() bool { return b == 0 }

// Has reports whether flag is set in b.
func (b Breach) Has(flag Breach) bool { return b&flag != 0 }

// String lists the violated conditions, e.g. "temperature_high,humidity_high".
func (b Breach) String() string {
	if b == 0 {
		return "none"
	}
	var parts []string
	if b.Has(BreachTemperatureHigh) {
		parts = append(parts, "temperature_high")
	}
	if b.Has(BreachTemperatureLow) {
		parts = append(parts, "temperature_low")
	}
	if b.Has(BreachHumidityHigh) {
		parts = append(parts, "humidity_high")
	}
	return strings.Join(parts, ",")
}

// MarshalText renders the breach set for JSON.
func (b Breach) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText parses the form produced by MarshalText.
func (b *Breach) UnmarshalText(text []byte) error {
	*b = 0
	s := string(text)
	if s == "" || s == "none" {
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		switch part {
		case "temperature_high":
			*b |= BreachTemperatureHigh
		case "temperature_low":
			*b |= BreachTemperatureLow
		case "humidity_high":
			*b |= BreachHumidityHigh
		default:
			return fmt.Errorf("unknown breach %q", part)
		}
	}
	return nil
}

// Thresholds is the safe envelope. A reading at or beyond a limit is a breach.
type Thresholds struct {
	TemperatureMaxC float64 `json:"temperature_max_c"`
	TemperatureMinC float64 `json:"temperature_min_c"`
	HumidityMaxPct  float64 `json:"humidity_max_pct"`

	// Hysteresis is the margin a value must move back inside the envelope
	// before an active breach clears. Zero clears as soon as the value is
	// back inside.
	Hysteresis float64 `json:"hysteresis"`
}

// Validate checks that the envelope is usable.
func (t Thresholds) Validate() error {
	if t.TemperatureMinC >= t.TemperatureMaxC {
		return fmt.Errorf("temperature min %.1f must be below max %.1f", t.TemperatureMinC, t.TemperatureMaxC)
	}
	if t.HumidityMaxPct <= 0 || t.HumidityMaxPct > 100 {
		return fmt.Errorf("humidity max %.1f out of range (0, 100]", t.HumidityMaxPct)
	}
	if t.Hysteresis < 0 {
		return fmt.Errorf("hysteresis %.2f cannot be negative", t.Hysteresis)
	}
	return nil
}

// Evaluate returns the breach set for r, given the currently active set.
// Active conditions use the hysteresis band to clear; new ones trip at the limit.
func (t Thresholds) Evaluate(r SensorReading, active Breach) Breach {
	var next Breach

	if tripHigh(r.TemperatureC, t.TemperatureMaxC, t.Hysteresis, active.Has(BreachTemperatureHigh)) {
		next |= BreachTemperatureHigh
	}
	if tripLow(r.TemperatureC, t.TemperatureMinC, t.Hysteresis, active.Has(BreachTemperatureLow)) {
		next |= BreachTemperatureLow
	}
	if tripHigh(r.HumidityPct, t.HumidityMaxPct, t.Hysteresis, active.Has(BreachHumidityHigh)) {
		next |= BreachHumidityHigh
	}

	return next
}

func tripHigh(v, limit, hyst float64, active bool) bool {
	if active {
		return v >= limit-hyst
	}
	return v >= limit
}

func tripLow(v, limit, hyst float64, active bool) bool {
	if active {
		return v <= limit+hyst
	}
	return v <= limit
}
