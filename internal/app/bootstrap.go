package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Build metadata, set with -ldflags "-X formatif-grader/internal/app.Version=...".
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Syntax backend names accepted by GRADER_SYNTAX and --syntax.
const (
	SyntaxBuiltin = "builtin"
	SyntaxDocker  = "docker"
	SyntaxAuto    = "auto"
)

// Config holds application defaults. Relative paths resolve against RepoDir.
type Config struct {
	RepoDir       string
	MarkersDir    string
	Suite         string
	DBPath        string
	Syntax        string
	PythonImage   string
	PythonVersion string
	SeaLevelHPa   float64
	SSHDir        string
	LogLevel      string
	LogFile       string
}

// DefaultConfig returns the defaults for a checkout of the course repository.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		RepoDir:       ".",
		MarkersDir:    ".test_markers",
		Suite:         "formatif-f1",
		Syntax:        SyntaxAuto,
		PythonImage:   "python:3.12-alpine",
		PythonVersion: "3.12",
		SeaLevelHPa:   1013.25,
		SSHDir:        filepath.Join(home, ".ssh"),
		LogLevel:      "warn",
	}
}

// Load reads an optional .env file from dir and overlays GRADER_* variables
// on top of DefaultConfig. A missing .env is not an error.
func Load(dir string) (Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := DefaultConfig()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("GRADER_REPO_DIR", &c.RepoDir)
	str("GRADER_MARKERS_DIR", &c.MarkersDir)
	str("GRADER_SUITE", &c.Suite)
	str("GRADER_DB", &c.DBPath)
	str("GRADER_SYNTAX", &c.Syntax)
	str("GRADER_PYTHON_IMAGE", &c.PythonImage)
	str("GRADER_PYTHON_VERSION", &c.PythonVersion)
	str("GRADER_SSH_DIR", &c.SSHDir)
	str("GRADER_LOG_LEVEL", &c.LogLevel)
	str("GRADER_LOG_FILE", &c.LogFile)

	if v := strings.TrimSpace(getenv("GRADER_SEA_LEVEL_HPA")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("GRADER_SEA_LEVEL_HPA: invalid value %q", v)
		}
		c.SeaLevelHPa = f
	}
	return c.Validate()
}

// Validate rejects values no command can work with.
func (c Config) Validate() error {
	switch c.Syntax {
	case SyntaxBuiltin, SyntaxDocker, SyntaxAuto:
	default:
		return fmt.Errorf("unknown syntax backend %q (want builtin, docker or auto)", c.Syntax)
	}
	if c.SeaLevelHPa <= 0 {
		return fmt.Errorf("sea level pressure must be positive")
	}
	return nil
}

// ResolveMarkersDir returns MarkersDir, joined to RepoDir when relative.
func (c Config) ResolveMarkersDir() string {
	if filepath.IsAbs(c.MarkersDir) {
		return c.MarkersDir
	}
	return filepath.Join(c.RepoDir, c.MarkersDir)
}
