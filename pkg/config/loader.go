// Package config loads env-tagged structs from the environment and an
// optional dotenv-style file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/viper"
)

// Load parses environment variables into cfg, which must be a pointer to a
// struct with `env` tags.
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8000"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadFile is Load with the dotenv file at path layered underneath the
// process environment: a variable set in both places takes the process
// value. A missing file is not an error.
func LoadFile(cfg any, path string) error {
	fileVars, err := readEnvFile(path)
	if err != nil {
		return err
	}
	vars := env.ToMap(os.Environ())
	for k, v := range fileVars {
		if _, set := vars[k]; !set {
			vars[k] = v
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// readEnvFile reads a dotenv file with viper. Viper lowercases keys, so they
// are upper-cased again to match the env tags.
func readEnvFile(path string) (map[string]string, error) {
	vars := map[string]string{}
	if path == "" {
		return vars, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return vars, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		vars[strings.ToUpper(key)] = v.GetString(key)
	}
	return vars, nil
}
