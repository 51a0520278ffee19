package web

import "errors"

var (
	// ErrConfigNil is returned when New is called without a config.
	ErrConfigNil = errors.New("config cannot be nil")

	// ErrServiceNil is returned when New is called without the settings service.
	ErrServiceNil = errors.New("settings service cannot be nil")
)
