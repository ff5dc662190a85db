// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI command definitions.

package scsi

const (
	// SCSI commands implemented by the optical memory device
	SCSI_TEST_UNIT_READY       = 0x00
	SCSI_REZERO_UNIT           = 0x01
	SCSI_REQUEST_SENSE         = 0x03
	SCSI_FORMAT_UNIT           = 0x04
	SCSI_READ_6                = 0x08
	SCSI_WRITE_6               = 0x0a
	SCSI_SEEK_6                = 0x0b
	SCSI_INQUIRY               = 0x12
	SCSI_MODE_SELECT_6         = 0x15
	SCSI_RESERVE_6             = 0x16
	SCSI_RELEASE_6             = 0x17
	SCSI_MODE_SENSE_6          = 0x1a
	SCSI_START_STOP_UNIT       = 0x1b
	SCSI_SEND_DIAGNOSTIC       = 0x1d
	SCSI_PREVENT_ALLOW_REMOVAL = 0x1e
	SCSI_READ_CAPACITY_10      = 0x25
	SCSI_READ_10               = 0x28
	SCSI_WRITE_10              = 0x2a
	SCSI_SEEK_10               = 0x2b
	SCSI_ERASE_10              = 0x2c
	SCSI_WRITE_AND_VERIFY_10   = 0x2e
	SCSI_VERIFY_10             = 0x2f
	SCSI_SYNCHRONIZE_CACHE_10  = 0x35
	SCSI_MODE_SELECT_10        = 0x55
	SCSI_MODE_SENSE_10         = 0x5a
	SCSI_READ_12               = 0xa8
	SCSI_WRITE_12              = 0xaa
	SCSI_ERASE_12              = 0xac
	SCSI_WRITE_AND_VERIFY_12   = 0xae
	SCSI_VERIFY_12             = 0xaf

	// Minimum length of standard INQUIRY response
	INQ_REPLY_LEN = 36

	// Peripheral device type of an optical memory device
	TYPE_OPTICAL = 0x07

	// Vital product data pages
	VPD_SUPPORTED_PAGES = 0x00
	VPD_UNIT_SERIAL     = 0x80
	VPD_DEVICE_ID       = 0x83

	// Mode pages
	READ_WRITE_ERROR_RECOVERY_PAGE = 0x01
	DISCONNECT_RECONNECT_PAGE      = 0x02
	CACHING_PAGE                   = 0x08
	ALL_PAGES                      = 0x3f

	// Mode page control field
	MPAGE_CONTROL_CURRENT    = 0
	MPAGE_CONTROL_CHANGEABLE = 1
	MPAGE_CONTROL_DEFAULT    = 2
	MPAGE_CONTROL_SAVED      = 3
)

// SAM status codes
const (
	SAM_STAT_GOOD            = 0x00
	SAM_STAT_CHECK_CONDITION = 0x02
	SAM_STAT_BUSY            = 0x08
)

// SCSI CDB types
type CDB6 [6]byte
type CDB10 [10]byte
type CDB12 [12]byte
type CDB16 [16]byte
