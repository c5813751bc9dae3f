/*
DESCRIPTION
  errors.go provides the errors returned by the av1 decoder.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package decoder

import "errors"

var (
	// ErrNoMemory is returned when the buffers of a frame cannot be
	// allocated within the memory limit.
	ErrNoMemory = errors.New("out of memory")

	// ErrInvalidData is returned for invalid headers, missing references
	// and corrupt tile data.
	ErrInvalidData = errors.New("invalid data")

	// ErrAgain is returned by Picture when no picture is ready yet.
	ErrAgain = errors.New("try again")

	// ErrClosed is returned by calls on a closed decoder.
	ErrClosed = errors.New("decoder closed")

	// errRefFailed fails a frame whose reference failed to decode.
	errRefFailed = errors.New("reference frame failed")
)
