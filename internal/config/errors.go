package config

import "errors"

// Error variables for config loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrFileEmpty          = errors.New("file cannot be empty")
	ErrInvalidValue       = errors.New("invalid config value")
)
