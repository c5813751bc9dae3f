/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and a validation function to check the validity of the
  corresponding field value in the Config.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"
)

// Config map Keys.
const (
	KeyFrameThreads    = "FrameThreads"
	KeyLogging         = "logging"
	KeyMemoryLimit     = "MemoryLimit"
	KeyOutputInvisible = "OutputInvisible"
	KeyThreads         = "Threads"
)

// Config map parameter types.
const (
	typeUint = "uint"
	typeBool = "bool"
)

// Default variable values.
const (
	defaultVerbosity    = logging.Error
	defaultThreads      = 4
	defaultFrameThreads = 2

	// Limits.
	maxThreads      = 256
	maxFrameThreads = 32
)

// Variables describes the variables that can be used for decoder control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyFrameThreads,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.FrameThreads = parseUint(KeyFrameThreads, v, c) },
		Validate: func(c *Config) {
			c.FrameThreads = inRange(KeyFrameThreads, c.FrameThreads, 1, maxFrameThreads, c, defaultFrameThreads)
		},
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyMemoryLimit,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.MemoryLimit = parseUint(KeyMemoryLimit, v, c) },
	},
	{
		Name:   KeyOutputInvisible,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.OutputInvisible = parseBool(KeyOutputInvisible, v, c) },
	},
	{
		Name:   KeyThreads,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Threads = parseUint(KeyThreads, v, c) },
		Validate: func(c *Config) {
			c.Threads = inRange(KeyThreads, c.Threads, 1, maxThreads, c, defaultThreads)
		},
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

func inRange(n string, v, lo, hi uint, c *Config, def uint) uint {
	if v < lo || v > hi {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}
