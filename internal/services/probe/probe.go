// Package probe runs the on-device hardware validation: SSH key, I²C bus,
// BMP280, optional NeoSlider and the student's sensor script. Each step that
// passes leaves a marker file for the grader to find.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"formatif-grader/internal/adapters/hardware"
	"formatif-grader/internal/adapters/markers"
	"formatif-grader/internal/adapters/sshkey"
	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/services/report"
	"formatif-grader/internal/services/validator"
)

// Step names, in execution order.
const (
	StepSSH       = "SSH"
	StepI2C       = "I2C"
	StepBMP280    = "BMP280"
	StepNeoSlider = "NeoSlider"
	StepScript    = "Script"
)

// Barometer is a sensor that can be sampled.
type Barometer interface {
	Read() (model.BarometerReading, error)
}

// Slider is the optional LED peripheral.
type Slider interface {
	Chip() string
	Flash(ctx context.Context, c hardware.Color, d time.Duration) error
}

// Options configures a Prober. Zero values select the real hardware.
type Options struct {
	RepoDir     string
	Markers     *markers.Store
	SSHDir      string
	SeaLevelHPa float64
	ScriptPath  string

	OpenBus      func() (hardware.Bus, error)
	NewBarometer func(dev hardware.Tx, addr uint16, seaLevelHPa float64) (Barometer, error)
	NewSlider    func(dev hardware.Tx) (Slider, error)
	SSHExec      sshkey.Exec
	Syntax       validator.SyntaxChecker
	Flash        time.Duration

	Console *report.Console
	Logger  *zap.Logger
}

type Prober struct {
	opts  Options
	con   *report.Console
	log   *zap.Logger
	steps []model.ProbeStep
}

func New(opts Options) *Prober {
	if opts.Markers == nil {
		opts.Markers = markers.New(filepath.Join(opts.RepoDir, ".test_markers"))
	}
	if opts.ScriptPath == "" {
		opts.ScriptPath = "test_bmp280.py"
	}
	if opts.SeaLevelHPa <= 0 {
		opts.SeaLevelHPa = hardware.DefaultSeaLevelHPa
	}
	if opts.OpenBus == nil {
		opts.OpenBus = func() (hardware.Bus, error) { return hardware.Open("") }
	}
	if opts.NewBarometer == nil {
		opts.NewBarometer = func(dev hardware.Tx, addr uint16, sea float64) (Barometer, error) {
			return hardware.NewBMP280(dev, addr, sea)
		}
	}
	if opts.NewSlider == nil {
		opts.NewSlider = func(dev hardware.Tx) (Slider, error) { return hardware.NewNeoSlider(dev) }
	}
	if opts.Flash <= 0 {
		opts.Flash = 500 * time.Millisecond
	}
	if opts.Console == nil {
		opts.Console = report.NewConsole(os.Stdout, false)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Prober{opts: opts, con: opts.Console, log: opts.Logger}
}

// Run executes every step once and prints the summary. Driver and library
// errors become failed or skipped steps; Run itself cannot fail.
func (p *Prober) Run(ctx context.Context) model.ProbeReport {
	p.steps = nil

	p.checkSSH(ctx)

	bus := p.checkI2C()
	if bus != nil {
		defer func() {
			if err := bus.Close(); err != nil {
				p.log.Warn("close i2c bus", zap.Error(err))
			}
		}()
	}
	p.checkBMP280(bus)
	p.checkNeoSlider(ctx, bus)
	p.checkScript(ctx)

	rep := model.ProbeReport{Steps: p.steps, Passed: requiredPassed(p.steps)}
	p.con.ProbeSummary(rep)
	if rep.Passed {
		p.mark(model.MarkerAllPassed, "All required validations completed")
		p.con.Section("Next steps")
		p.con.Hint("git add .test_markers/\ngit commit -m \"feat: local validation complete\"\ngit push")
	} else {
		p.con.Hint("Fix the failed steps and run validate-pi again.")
	}
	return rep
}

func requiredPassed(steps []model.ProbeStep) bool {
	for _, s := range steps {
		if s.Required && s.Outcome != model.StepPassed {
			return false
		}
	}
	return len(steps) > 0
}

func (p *Prober) record(name string, required bool, outcome model.StepOutcome, detail string) {
	p.steps = append(p.steps, model.ProbeStep{Name: name, Required: required, Outcome: outcome, Detail: detail})
}

func (p *Prober) mark(name, content string) {
	if _, err := p.opts.Markers.Write(name, content); err != nil {
		p.con.Step(model.StepFailed, "could not write marker %s: %v", name, err)
		p.log.Error("write marker", zap.String("marker", name), zap.Error(err))
	}
}

func (p *Prober) checkSSH(ctx context.Context) {
	p.con.Section("SSH key")
	key, err := sshkey.Find(p.opts.SSHDir)
	if err != nil {
		p.con.Step(model.StepFailed, "No SSH public key found")
		p.log.Info("ssh key lookup", zap.Error(err))
		p.con.Hint("To generate an SSH key:\n  ssh-keygen -t ed25519 -C 'iot-course' -f ~/.ssh/id_ed25519_iot\n" +
			"Then add it to GitHub:\n  cat ~/.ssh/id_ed25519_iot.pub\n  GitHub > Settings > SSH and GPG keys")
		p.record(StepSSH, true, model.StepFailed, "no key")
		return
	}
	name := filepath.Base(key.Path)
	content := "Key: " + name
	if key.Parsed() {
		p.con.Step(model.StepPassed, "SSH key found: %s (%s %s)", name, key.Type, key.Fingerprint)
	} else {
		p.con.Step(model.StepPassed, "SSH key found: %s (could not be parsed)", name)
		p.log.Warn("ssh key unparsed", zap.String("path", key.Path), zap.Error(key.ParseErr))
		content += " (unparsed)"
	}

	status, detail := sshkey.CheckGitHub(ctx, p.opts.SSHExec)
	switch status {
	case sshkey.GitHubAuthenticated:
		p.con.Step(model.StepPassed, "GitHub SSH connection works")
	case sshkey.GitHubUncertain:
		p.con.Step(model.StepSkipped, "GitHub connection uncertain - key may not be added (%s)", detail)
		content += " (unverified)"
	default:
		p.con.Step(model.StepSkipped, "Could not test GitHub connection: %s", detail)
		content += " (connection not tested)"
	}
	p.mark(model.MarkerSSHKey, content)
	p.record(StepSSH, true, model.StepPassed, content)
}

func (p *Prober) checkI2C() hardware.Bus {
	p.con.Section("I2C communication")
	bus, err := p.opts.OpenBus()
	if err != nil {
		p.con.Step(model.StepFailed, "I2C initialization failed: %v", err)
		if errors.Is(err, model.ErrLibraryUnavailable) {
			p.con.Hint("The host I2C drivers could not be loaded on this machine.")
		}
		p.con.Hint("Enable I2C on the Raspberry Pi:\n  sudo raspi-config > Interface Options > I2C > Enable\n  sudo reboot")
		p.record(StepI2C, true, model.StepFailed, err.Error())
		return nil
	}
	p.con.Step(model.StepPassed, "I2C bus initialized (%s)", bus.Name())
	p.record(StepI2C, true, model.StepPassed, bus.Name())
	return bus
}

func (p *Prober) checkBMP280(bus hardware.Bus) {
	p.con.Section("BMP280 sensor")
	if bus == nil {
		p.con.Step(model.StepFailed, "Cannot test BMP280 - I2C not available")
		p.record(StepBMP280, true, model.StepFailed, "no i2c bus")
		return
	}

	var sensor Barometer
	var lastErr error
	for _, addr := range []uint16{hardware.BMP280Primary, hardware.BMP280Secondary} {
		s, err := p.opts.NewBarometer(bus.Device(addr), addr, p.opts.SeaLevelHPa)
		if err != nil {
			p.log.Debug("bmp280 probe", zap.Uint16("addr", addr), zap.Error(err))
			lastErr = err
			continue
		}
		p.con.Step(model.StepPassed, "BMP280 found at address 0x%02x", addr)
		sensor = s
		break
	}
	if sensor == nil {
		p.con.Step(model.StepFailed, "BMP280 not detected at 0x76 or 0x77")
		p.con.Hint("Check connections:\n  - VCC to 3.3V (NOT 5V!)\n  - GND to GND\n  - SCL to GPIO 3 (Pin 5)\n  - SDA to GPIO 2 (Pin 3)\n" +
			"Run i2cdetect to verify:\n  sudo i2cdetect -y 1")
		p.record(StepBMP280, true, model.StepFailed, errText(lastErr))
		return
	}

	r, err := sensor.Read()
	if err != nil {
		p.con.Step(model.StepFailed, "BMP280 error: %v", err)
		p.record(StepBMP280, true, model.StepFailed, err.Error())
		return
	}
	p.con.Step(model.StepPassed, "Temperature: %.1f C", r.TemperatureC)
	p.con.Step(model.StepPassed, "Pressure: %.1f hPa", r.PressureHPa)
	p.con.Step(model.StepPassed, "Altitude: %.1f m", r.AltitudeM)
	content := fmt.Sprintf("T=%.1fC P=%.1fhPa A=%.1fm", r.TemperatureC, r.PressureHPa, r.AltitudeM)
	p.mark(model.MarkerBMP280, content)
	p.record(StepBMP280, true, model.StepPassed, content)
}

// checkNeoSlider never fails the probe.
func (p *Prober) checkNeoSlider(ctx context.Context, bus hardware.Bus) {
	p.con.Section("NeoSlider (optional)")
	if bus == nil {
		p.con.Step(model.StepSkipped, "Cannot test NeoSlider - I2C not available")
		p.record(StepNeoSlider, false, model.StepSkipped, "no i2c bus")
		return
	}
	slider, err := p.opts.NewSlider(bus.Device(hardware.NeoSliderAddr))
	if err != nil {
		p.con.Step(model.StepSkipped, "NeoSlider not detected: %v", err)
		p.con.Hint("NeoSlider is optional - this doesn't affect your grade")
		p.record(StepNeoSlider, false, model.StepSkipped, "not detected")
		return
	}
	if err := slider.Flash(ctx, hardware.Green, p.opts.Flash); err != nil {
		p.con.Step(model.StepSkipped, "NeoSlider LED test failed: %v", err)
		p.record(StepNeoSlider, false, model.StepSkipped, err.Error())
		return
	}
	p.con.Step(model.StepPassed, "NeoSlider LEDs working (%s)", slider.Chip())
	p.mark(model.MarkerNeoSlider, "LEDs tested successfully")
	p.record(StepNeoSlider, false, model.StepPassed, slider.Chip())
}

var scriptPatterns = []model.PatternSpec{
	{Label: "board import", Literal: "import board"},
	{Label: "adafruit_bmp280 import", Literal: "adafruit_bmp280"},
}

func (p *Prober) checkScript(ctx context.Context) {
	p.con.Section("Script validation")
	rel := p.opts.ScriptPath
	b, err := os.ReadFile(filepath.Join(p.opts.RepoDir, rel))
	if err != nil {
		p.con.Step(model.StepFailed, "%s not found", rel)
		p.con.Hint("Create your " + rel + " script in the repository folder.")
		p.record(StepScript, true, model.StepFailed, "missing")
		return
	}
	p.con.Step(model.StepPassed, "%s exists", rel)
	text := string(b)

	v := validator.New(validator.Options{RepoDir: p.opts.RepoDir, Markers: p.opts.Markers, Syntax: p.opts.Syntax, Logger: p.log})
	ok, syn, err := v.SyntaxValid(ctx, rel, text)
	switch {
	case err != nil:
		p.con.Step(model.StepSkipped, "Syntax check unavailable: %v", err)
	case !ok:
		p.con.Step(model.StepFailed, "Syntax error on line %d: %s", syn.Line, syn.Msg)
		p.record(StepScript, true, model.StepFailed, fmt.Sprintf("syntax error line %d", syn.Line))
		return
	default:
		p.con.Step(model.StepPassed, "Python syntax is valid")
	}

	missing := validator.ContainsAll(text, scriptPatterns)
	for _, pat := range scriptPatterns {
		if lo.Contains(missing, pat.Display()) {
			p.con.Step(model.StepFailed, "Missing: %s", pat.Display())
		} else {
			p.con.Step(model.StepPassed, "Found: %s", pat.Display())
		}
	}
	if len(missing) > 0 {
		p.record(StepScript, true, model.StepFailed, "missing "+strings.Join(missing, ", "))
		return
	}
	p.mark(model.MarkerBMP280Script, "Script structure valid")
	p.record(StepScript, true, model.StepPassed, "")
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
