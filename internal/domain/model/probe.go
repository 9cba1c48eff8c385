package model

// StepOutcome is the result category of one hardware probe step.
type StepOutcome string

const (
	StepPassed  StepOutcome = "passed"
	StepFailed  StepOutcome = "failed"
	StepSkipped StepOutcome = "skipped"
)

// ProbeStep records one hardware probe step for the final summary.
type ProbeStep struct {
	Name     string      `json:"name"`
	Required bool        `json:"required"`
	Outcome  StepOutcome `json:"outcome"`
	Detail   string      `json:"detail,omitempty"`
}

// BarometerReading is one BMP280 sample.
type BarometerReading struct {
	Address      uint16  `json:"address"`
	TemperatureC float64 `json:"temperature_c"`
	PressureHPa  float64 `json:"pressure_hpa"`
	AltitudeM    float64 `json:"altitude_m"`
}

// ProbeReport is the outcome of a full probe run.
type ProbeReport struct {
	Steps  []ProbeStep `json:"steps"`
	Passed bool        `json:"passed"`
}
