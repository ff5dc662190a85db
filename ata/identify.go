// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// IDENTIFY PACKET DEVICE response.

package ata

import (
	"bytes"
	"encoding/binary"

	"github.com/dswarbrick/mo/utils"
)

const (
	IDENTIFY_LEN = 512

	// General configuration: ATAPI, optical memory command set, removable, accelerated DRQ,
	// 12-byte packets
	GENCONF_ATAPI_OPTICAL = 0x8000 | 0x07<<8 | 0x80 | 2<<5

	CAP_DMA = 1 << 8
	CAP_LBA = 1 << 9
)

// IdentifyPacketData is the 256-word IDENTIFY PACKET DEVICE page.
type IdentifyPacketData struct {
	GeneralConfiguration uint16
	Reserved1            [9]uint16
	SerialNumber         [20]byte
	Reserved2            [3]uint16
	FirmwareRevision     [8]byte
	ModelNumber          [40]byte
	Reserved3            [2]uint16
	Capabilities         uint16
	Reserved4            [3]uint16
	FieldValidity        uint16
	Reserved5            [9]uint16
	MultiwordDMA         uint16
	PIOModes             uint16
	Reserved6            [15]uint16
	MajorVersion         uint16
	Reserved7            [175]uint16
}

// NewIdentifyPacketData builds an IDENTIFY PACKET DEVICE page. ATA strings are stored with
// the bytes of each word swapped.
func NewIdentifyPacketData(serial, firmware, model string, dma bool) IdentifyPacketData {
	id := IdentifyPacketData{
		GeneralConfiguration: GENCONF_ATAPI_OPTICAL,
		Capabilities:         CAP_LBA,
		FieldValidity:        0x0002, // words 64-70 valid
		PIOModes:             0x0003, // PIO 3 and 4
		MajorVersion:         0x007e, // ATA/ATAPI-1 to 6
	}

	if dma {
		id.Capabilities |= CAP_DMA
		id.MultiwordDMA = 0x0007
	}

	copy(id.SerialNumber[:], utils.SwapBytes(utils.PadString(serial, 20)))
	copy(id.FirmwareRevision[:], utils.SwapBytes(utils.PadString(firmware, 8)))
	copy(id.ModelNumber[:], utils.SwapBytes(utils.PadString(model, 40)))

	return id
}

// MarshalTo writes the page in little-endian word order to buf and returns the number of
// bytes written, or 0 if buf is too small.
func (id *IdentifyPacketData) MarshalTo(buf []byte) int {
	if len(buf) < IDENTIFY_LEN {
		return 0
	}

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, id)
	return copy(buf, b.Bytes())
}
