// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package mo emulates the command interface of a magneto-optical disk drive, as seen by a host
// over ATAPI, SCSI or USB mass storage.
//
// The emulation is single-threaded and cooperatively stepped. A host bus adapter delivers
// command descriptor blocks and data through a Registry, and advances time with
// Registry.Advance; completion is signalled back through the HostAdapter interface.
package mo

import (
	"time"
)

const (
	// Number of drive slots in a Registry
	NumUnits = 4

	// Size of the per-unit data buffer. No single transfer may exceed it.
	BufferSize = 32768

	// Device latency before a command without data completes. Data transfers add one
	// BaseLatency per 512 bytes moved (half that in DMA mode).
	BaseLatency = 10 * time.Microsecond
)
