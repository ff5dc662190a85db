// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA / ATAPI command and register definitions.

package ata

const (
	// ATA commands accepted by a packet device
	ATA_DEVICE_RESET           = 0x08
	ATA_PACKET                 = 0xa0
	ATA_IDENTIFY_PACKET_DEVICE = 0xa1
	ATA_SET_FEATURES           = 0xef

	// ATAPI packets are always 12 bytes
	ATAPI_PACKET_LEN = 12

	// Byte count limit used when the host programs zero
	ATAPI_DEFAULT_BYTE_COUNT = 0xfffe
)

// Status register bits
const (
	STATUS_ERR  = 0x01
	STATUS_DRQ  = 0x08
	STATUS_DSC  = 0x10
	STATUS_DRDY = 0x40
	STATUS_BSY  = 0x80
)

// Error register bits. The upper nibble carries the sense key of the failed packet command.
const (
	ERROR_ABRT = 0x04
)

// Features register bits for the PACKET command
const (
	FEATURES_DMA = 0x01
)

// Interrupt reason register (sector count) bits
const (
	IREASON_COD = 0x01 // Command or data
	IREASON_IO  = 0x02 // Direction is device to host

	IREASON_COMMAND  = IREASON_COD
	IREASON_DATA_IN  = IREASON_IO
	IREASON_DATA_OUT = 0
	IREASON_STATUS   = IREASON_COD | IREASON_IO
)
