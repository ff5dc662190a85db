// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// CDB field decoding.

package scsi

import "encoding/binary"

// GroupLength returns the CDB length implied by the group code in the top three bits of an
// opcode, or 0 for the reserved and vendor specific groups.
func GroupLength(opcode byte) int {
	switch opcode >> 5 {
	case 0:
		return 6
	case 1, 2:
		return 10
	case 4:
		return 16
	case 5:
		return 12
	}

	return 0
}

// BlockAddress decodes the logical block address of a block-oriented command.
func BlockAddress(cdb []byte) uint32 {
	if GroupLength(cdb[0]) == 6 {
		return uint32(cdb[1]&0x1f)<<16 | uint32(cdb[2])<<8 | uint32(cdb[3])
	}

	return binary.BigEndian.Uint32(cdb[2:6])
}

// BlockCount decodes the transfer (or verification) length of a block-oriented command. A
// zero count in a 6-byte READ or WRITE is returned as-is; the caller decides whether it
// means 256.
func BlockCount(cdb []byte) uint32 {
	switch GroupLength(cdb[0]) {
	case 6:
		return uint32(cdb[4])
	case 10:
		return uint32(binary.BigEndian.Uint16(cdb[7:9]))
	case 12:
		return binary.BigEndian.Uint32(cdb[6:10])
	}

	return 0
}

// AllocationLength decodes the allocation length (or parameter list length) of INQUIRY,
// REQUEST SENSE, MODE SENSE and MODE SELECT commands.
func AllocationLength(cdb []byte) uint32 {
	switch cdb[0] {
	case SCSI_INQUIRY:
		return uint32(binary.BigEndian.Uint16(cdb[3:5]))
	case SCSI_MODE_SENSE_10, SCSI_MODE_SELECT_10:
		return uint32(binary.BigEndian.Uint16(cdb[7:9]))
	}

	return uint32(cdb[4])
}
