package config

import (
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"

	// EnvPrefix is the prefix of environment variables overriding the
	// configuration, e.g. MYSH_PROMPT.
	EnvPrefix = "MYSH"
)

const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	Prompt             string `json:"prompt"`
	ContinuationPrompt string `json:"continuation_prompt" split_words:"true"`
	MaxLineLength      int    `json:"max_line_length" split_words:"true" validate:"gte=1"`
	HistoryLimit       int    `json:"history_limit" split_words:"true" validate:"gte=0"`
	ReportStatus       bool   `json:"report_status" split_words:"true"`
	Color              string `json:"color" validate:"oneof=always auto never"`

	Aliases map[string]string `json:"aliases" validate:"dive,keys,required,endkeys,required"`

	Log Log `json:"log"`

	EventLog string `json:"event_log" split_words:"true"`
}

type Log struct {
	Level string `json:"level" validate:"oneof=debug info warn error"`
	Path  string `json:"path"`
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

// ApplyEnv overrides fields with MYSH_* environment variables.
func (c *Configuration) ApplyEnv() error {
	return envconfig.Process(EnvPrefix, c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewOsFs()
	}
	return c.configFs
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// Alias returns the executable configured for verb, or verb itself.
func (c *Configuration) Alias(verb string) string {
	if target, ok := c.Aliases[verb]; ok && target != "" {
		return target
	}
	return verb
}

// Default returns the built-in configuration.
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
