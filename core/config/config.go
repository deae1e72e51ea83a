package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
)

// Color settings.
const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs  afero.Fs
	configDir string

	Prompt       string `json:"prompt" validate:"required"`
	Path         string `json:"path"`
	HistoryFile  string `json:"history_file" validate:"omitempty,excludesall=/"`
	Color        string `json:"color" validate:"oneof=always auto never"`
	ListingWidth int    `json:"listing_width" validate:"gte=40,lte=200"`
	EventLog     string `json:"event_log" validate:"omitempty,excludesall=/"`
	Banner       bool   `json:"banner"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// Dir is the directory the configuration was loaded from, empty for the
// built-in defaults.
func (c *Configuration) Dir() string {
	return c.configDir
}

// HistoryPath is the absolute path of the readline history file, empty if
// history isn't persisted.
func (c *Configuration) HistoryPath() string {
	if c.configDir == "" || c.HistoryFile == "" {
		return ""
	}
	return filepath.Join(c.configDir, c.HistoryFile)
}

// OpenEventLog opens the event log in an append only state. It returns a nil
// file if event logging is disabled.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	if c.fs() == nil || c.EventLog == "" {
		return nil, nil
	}
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	if c.fs() == nil || c.EventLog == "" {
		return nil, os.ErrNotExist
	}
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// ShouldColor resolves the color setting, isTerminal is consulted for "auto".
func (c *Configuration) ShouldColor(isTerminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}

// Default returns the built-in configuration, it isn't backed by a directory
// so nothing is persisted.
func Default() *Configuration {
	return defaultConfig()
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
