// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package mo

import (
	"github.com/pkg/errors"

	"github.com/dswarbrick/mo/scsi"
)

// Error classes. Command failures never cross the host boundary as Go errors; they are
// turned into sense data. The classes are kept as the cause of each scsi.SenseError so that
// callers and tests can tell them apart with errors.Is.
var (
	ErrValidation   = errors.New("invalid command")
	ErrMedia        = errors.New("medium error")
	ErrAddress      = errors.New("address out of range")
	ErrState        = errors.New("command sequence error")
	ErrWriteProtect = errors.New("medium is write protected")
	ErrAttention    = errors.New("unit attention")
	ErrInternal     = errors.New("internal state inconsistent")

	ErrNoSuchUnit = errors.New("no such unit")
	ErrWrongBus   = errors.New("operation not supported on this bus")
)

func errInvalidOpcode() error {
	return scsi.NewSenseError(scsi.SENSE_ILLEGAL_REQUEST, scsi.ASC_INVALID_COMMAND_OPCODE, 0, ErrValidation)
}

func errInvalidField() error {
	return scsi.NewSenseError(scsi.SENSE_ILLEGAL_REQUEST, scsi.ASC_INVALID_FIELD_IN_CDB, 0, ErrValidation)
}

func errInvalidParams() error {
	return scsi.NewSenseError(scsi.SENSE_ILLEGAL_REQUEST, scsi.ASC_INVALID_FIELD_IN_PARAMS, 0, ErrValidation)
}

func errParamLength() error {
	return scsi.NewSenseError(scsi.SENSE_ILLEGAL_REQUEST, scsi.ASC_PARAMETER_LIST_LENGTH, 0, ErrValidation)
}

func errNoMedium() error {
	return scsi.NewSenseError(scsi.SENSE_NOT_READY, scsi.ASC_MEDIUM_NOT_PRESENT, 0, ErrMedia)
}

func errReadFailed() error {
	return scsi.NewSenseError(scsi.SENSE_MEDIUM_ERROR, scsi.ASC_UNRECOVERED_READ_ERROR, 0, ErrMedia)
}

func errWriteFailed() error {
	return scsi.NewSenseError(scsi.SENSE_MEDIUM_ERROR, scsi.ASC_WRITE_ERROR, 0, ErrMedia)
}

func errOutOfRange() error {
	return scsi.NewSenseError(scsi.SENSE_ILLEGAL_REQUEST, scsi.ASC_LBA_OUT_OF_RANGE, 0, ErrAddress)
}

func errWriteProtected() error {
	return scsi.NewSenseError(scsi.SENSE_DATA_PROTECT, scsi.ASC_WRITE_PROTECTED, 0, ErrWriteProtect)
}

func errMediumChanged() error {
	return scsi.NewSenseError(scsi.SENSE_UNIT_ATTENTION, scsi.ASC_MEDIUM_MAY_HAVE_CHANGED, 0, ErrAttention)
}

func errRemovalPrevented() error {
	return scsi.NewSenseError(scsi.SENSE_ILLEGAL_REQUEST, scsi.ASC_MEDIUM_REMOVAL_PREVENTED,
		scsi.ASCQ_MEDIUM_REMOVAL_PREVENTED, ErrValidation)
}

// errSequence is returned directly to the host adapter when a command arrives while another
// is in flight.
func errSequence() *scsi.SenseError {
	return scsi.NewSenseError(scsi.SENSE_ILLEGAL_REQUEST, scsi.ASC_COMMAND_SEQUENCE_ERROR, 0, ErrState)
}

func errInternal() error {
	return scsi.NewSenseError(scsi.SENSE_HARDWARE_ERROR, scsi.ASC_INTERNAL_TARGET_FAILURE, 0, ErrInternal)
}
