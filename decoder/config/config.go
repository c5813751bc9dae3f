/*
DESCRIPTION
  config.go provides the configuration of an av1 decoder instance.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package config contains the configuration settings for the av1 decoder.
package config

import (
	"errors"

	"github.com/ausocean/utils/logging"
)

// ErrNoLogger is returned by Validate for a config without a Logger.
var ErrNoLogger = errors.New("no logger")

// Config provides parameters relevant to a decoder instance. A config must be
// passed to the decoder constructor, which validates it.
type Config struct {
	// Logger holds an implementation of the Logger interface. This must be
	// set for the decoder to work correctly.
	Logger logging.Logger

	// LogLevel is the decoder logging verbosity level.
	// Valid values are defined by enums from the logging package: logging.Debug,
	// logging.Info, logging.Warning logging.Error, logging.Fatal.
	LogLevel int8

	// Threads is the number of worker goroutines shared by all frames in
	// flight. It is unused when FrameThreads is 1.
	Threads uint

	// FrameThreads is the number of frames decoded concurrently. A value of 1
	// decodes each frame inline, in a single pass, on the goroutine calling
	// Submit.
	FrameThreads uint

	// MemoryLimit is the largest number of bytes that the buffers of one frame
	// may occupy. A value of 0 means unlimited.
	MemoryLimit uint

	// OutputInvisible makes frames that are not shown available for output.
	OutputInvisible bool
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined.
func (c *Config) Validate() error {
	if c.Logger == nil {
		return ErrNoLogger
	}
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
