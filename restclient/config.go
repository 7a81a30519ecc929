// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"io/ioutil"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// Config describes how to reach an API.
type Config struct {
	// URL is the base URL of the API root document.
	URL string `yaml:"url" mapstructure:"url"`

	// Username and Password, if set, are exchanged for a token
	// when the client is created.
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`

	// Cache enables the client-side response cache.
	Cache bool `yaml:"cache" mapstructure:"cache"`

	// CacheSize is the number of responses kept; zero means the
	// cache package default.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`

	// Concurrency limits the requests a bulk operation has in
	// flight; zero means no limit.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// Retries is the number of times a request that failed at
	// the transport level is tried again.
	Retries int `yaml:"retries" mapstructure:"retries"`

	// ContentType is sent with every request body; it defaults
	// to application/json.
	ContentType string `yaml:"content_type" mapstructure:"content_type"`
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required, is.RequestURL),
		validation.Field(&c.Password, validation.When(c.Username != "", validation.Required)),
		validation.Field(&c.CacheSize, validation.Min(0)),
		validation.Field(&c.Concurrency, validation.Min(0)),
		validation.Field(&c.Retries, validation.Min(0), validation.Max(10)),
	)
}

// DecodeConfig builds a configuration from generic data, such as a
// parsed YAML document or command-line settings.  Strings are
// converted to numbers and booleans as needed.
func DecodeConfig(data map[string]interface{}) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return cfg, err
	}
	err = decoder.Decode(data)
	return cfg, err
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	bytes, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(bytes, &data); err != nil {
		return Config{}, err
	}
	cfg, err := DecodeConfig(data)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
