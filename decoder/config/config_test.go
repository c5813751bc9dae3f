/*
DESCRIPTION
  config_test.go provides testing for the Config struct methods (Validate and Update).

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
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestValidate(t *testing.T) {
	dl := &dumbLogger{}

	tests := []struct {
		in   Config
		want Config
	}{
		{
			in: Config{Logger: dl},
			want: Config{
				Logger:       dl,
				Threads:      defaultThreads,
				FrameThreads: defaultFrameThreads,
			},
		},
		{
			in: Config{Logger: dl, LogLevel: 7, Threads: 1000, FrameThreads: 1, MemoryLimit: 1 << 20},
			want: Config{
				Logger:       dl,
				LogLevel:     defaultVerbosity,
				Threads:      defaultThreads,
				FrameThreads: 1,
				MemoryLimit:  1 << 20,
			},
		},
		{
			in: Config{Logger: dl, LogLevel: logging.Warning, Threads: 8, FrameThreads: 100},
			want: Config{
				Logger:       dl,
				LogLevel:     logging.Warning,
				Threads:      8,
				FrameThreads: defaultFrameThreads,
			},
		},
	}

	for i, test := range tests {
		got := test.in
		err := (&got).Validate()
		if err != nil {
			t.Fatalf("did not expect error for test %d: %v", i, err)
		}
		if !cmp.Equal(got, test.want) {
			t.Errorf("configs not equal for test %d\nwant: %v\ngot: %v", i, test.want, got)
		}
	}
}

func TestUpdate(t *testing.T) {
	updateMap := map[string]string{
		"FrameThreads":    "3",
		"logging":         "Warning",
		"MemoryLimit":     "1000000",
		"OutputInvisible": "true",
		"Threads":         "6",
		"Unknown":         "value",
	}

	dl := &dumbLogger{}

	want := Config{
		Logger:          dl,
		LogLevel:        logging.Warning,
		Threads:         6,
		FrameThreads:    3,
		MemoryLimit:     1000000,
		OutputInvisible: true,
	}

	got := Config{Logger: dl}
	got.Update(updateMap)
	if !cmp.Equal(want, got) {
		t.Errorf("configs not equal\nwant: %v\ngot: %v", want, got)
	}
}

func TestValidateNoLogger(t *testing.T) {
	c := Config{Threads: 2}
	if err := c.Validate(); err != ErrNoLogger {
		t.Errorf("unexpected error: got %v, want %v", err, ErrNoLogger)
	}
}
