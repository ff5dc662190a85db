// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI sense data.

package scsi

import (
	"fmt"
)

const (
	SENSE_LEN       = 256
	FIXED_SENSE_LEN = 18

	// Response code for current errors, fixed format
	SENSE_CURRENT_FIXED = 0x70

	// Fixed byte offsets within the sense record
	SENSE_ERROR_CODE_OFS = 0
	SENSE_KEY_OFS        = 2
	SENSE_ADD_LEN_OFS    = 7
	SENSE_ASC_OFS        = 12
	SENSE_ASCQ_OFS       = 13
)

// Sense keys
const (
	SENSE_NO_SENSE        = 0x00
	SENSE_RECOVERED_ERROR = 0x01
	SENSE_NOT_READY       = 0x02
	SENSE_MEDIUM_ERROR    = 0x03
	SENSE_HARDWARE_ERROR  = 0x04
	SENSE_ILLEGAL_REQUEST = 0x05
	SENSE_UNIT_ATTENTION  = 0x06
	SENSE_DATA_PROTECT    = 0x07
	SENSE_ABORTED_COMMAND = 0x0b
)

// Additional sense codes. See http://www.t10.org/lists/asc-num.htm
const (
	ASC_NONE                      = 0x00
	ASC_WRITE_ERROR               = 0x0c
	ASC_UNRECOVERED_READ_ERROR    = 0x11
	ASC_PARAMETER_LIST_LENGTH     = 0x1a
	ASC_INVALID_COMMAND_OPCODE    = 0x20
	ASC_LBA_OUT_OF_RANGE          = 0x21
	ASC_INVALID_FIELD_IN_CDB      = 0x24
	ASC_INVALID_FIELD_IN_PARAMS   = 0x26
	ASC_WRITE_PROTECTED           = 0x27
	ASC_MEDIUM_MAY_HAVE_CHANGED   = 0x28
	ASC_COMMAND_SEQUENCE_ERROR    = 0x2c
	ASC_INCOMPATIBLE_MEDIUM       = 0x30
	ASC_MEDIUM_NOT_PRESENT        = 0x3a
	ASC_INTERNAL_TARGET_FAILURE   = 0x44
	ASC_MEDIUM_REMOVAL_PREVENTED  = 0x53
	ASCQ_MEDIUM_REMOVAL_PREVENTED = 0x02
)

// Sense is a sense record. Only the fixed format fields are interpreted; the remaining bytes
// are vendor specific and stay zero.
type Sense [SENSE_LEN]byte

func (s *Sense) ErrorCode() uint8 { return s[SENSE_ERROR_CODE_OFS] }
func (s *Sense) Key() uint8       { return s[SENSE_KEY_OFS] & 0x0f }
func (s *Sense) ASC() uint8       { return s[SENSE_ASC_OFS] }
func (s *Sense) ASCQ() uint8      { return s[SENSE_ASCQ_OFS] }

// Set records a current error in fixed format.
func (s *Sense) Set(key, asc, ascq uint8) {
	s.Clear()
	s[SENSE_ERROR_CODE_OFS] = SENSE_CURRENT_FIXED
	s[SENSE_KEY_OFS] = key & 0x0f
	s[SENSE_ADD_LEN_OFS] = FIXED_SENSE_LEN - 8
	s[SENSE_ASC_OFS] = asc
	s[SENSE_ASCQ_OFS] = ascq
}

// Clear resets the record to "no sense".
func (s *Sense) Clear() {
	*s = Sense{}
}

// Fixed returns the fixed format portion of the record, as returned by REQUEST SENSE. An
// empty record is reported as a current error with NO SENSE.
func (s *Sense) Fixed() []byte {
	buf := make([]byte, FIXED_SENSE_LEN)
	copy(buf, s[:FIXED_SENSE_LEN])

	if buf[SENSE_ERROR_CODE_OFS] == 0 {
		buf[SENSE_ERROR_CODE_OFS] = SENSE_CURRENT_FIXED
		buf[SENSE_ADD_LEN_OFS] = FIXED_SENSE_LEN - 8
	}

	return buf
}

// SenseError is a failed command, expressed as the sense data it produces.
type SenseError struct {
	Key  uint8
	ASC  uint8
	ASCQ uint8
	err  error
}

// NewSenseError returns a SenseError for the given sense triple. cause classifies the
// failure and is returned by Cause.
func NewSenseError(key, asc, ascq uint8, cause error) *SenseError {
	return &SenseError{Key: key, ASC: asc, ASCQ: ascq, err: cause}
}

func (e *SenseError) Error() string {
	msg := fmt.Sprintf("sense key: %#02x, asc: %#02x, ascq: %#02x", e.Key, e.ASC, e.ASCQ)
	if e.err != nil {
		return e.err.Error() + ": " + msg
	}

	return msg
}

// Cause returns the error class, for github.com/pkg/errors.Cause.
func (e *SenseError) Cause() error { return e.err }

func (e *SenseError) Unwrap() error { return e.err }
