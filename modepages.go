// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Mode parameter pages.

package mo

import (
	"encoding/binary"

	"github.com/dswarbrick/mo/scsi"
)

// modePageSet holds one image of every supported page, indexed by page code. Each page starts
// with its code and length bytes.
type modePageSet [0x40][]byte

var defaultModePages = modePageSet{
	scsi.READ_WRITE_ERROR_RECOVERY_PAGE: {
		0x01, 0x0a, 0xc0, 0x08, 0x00, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00,
	},
	scsi.DISCONNECT_RECONNECT_PAGE: {
		0x02, 0x0e, 0x80, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	},
	scsi.CACHING_PAGE: {
		0x08, 0x12, 0x00, 0x00, 0xff, 0xff, 0x00, 0x00, 0xff, 0xff, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	},
}

// Bits the host may change with MODE SELECT.
var changeableModePages = modePageSet{
	scsi.READ_WRITE_ERROR_RECOVERY_PAGE: {
		0x01, 0x0a, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00, 0xff, 0x00, 0x00, 0x00,
	},
	scsi.DISCONNECT_RECONNECT_PAGE: {
		0x02, 0x0e, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	},
	scsi.CACHING_PAGE: {
		0x08, 0x12, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	},
}

// Order of pages in an "all pages" reply.
var modePageOrder = []byte{
	scsi.READ_WRITE_ERROR_RECOVERY_PAGE,
	scsi.DISCONNECT_RECONNECT_PAGE,
	scsi.CACHING_PAGE,
}

func (s *modePageSet) clone() modePageSet {
	var c modePageSet

	for i, page := range s {
		if page != nil {
			c[i] = append([]byte(nil), page...)
		}
	}

	return c
}

type modePages struct {
	current modePageSet
	saved   modePageSet
}

func (m *modePages) reset() {
	m.current = defaultModePages.clone()
	m.saved = defaultModePages.clone()
}

func (m *modePages) images(pc byte) *modePageSet {
	switch pc {
	case scsi.MPAGE_CONTROL_CHANGEABLE:
		return &changeableModePages
	case scsi.MPAGE_CONTROL_DEFAULT:
		return &defaultModePages
	case scsi.MPAGE_CONTROL_SAVED:
		return &m.saved
	}

	return &m.current
}

// apply validates a MODE SELECT parameter list and, only if every page in it is acceptable,
// updates the current images (and the saved images if save is set).
func (m *modePages) apply(param []byte, ten, save bool) error {
	hdr, bdlen := 4, 0

	if len(param) >= 8 && ten {
		hdr, bdlen = 8, int(binary.BigEndian.Uint16(param[6:8]))
	} else if len(param) >= 4 && !ten {
		bdlen = int(param[3])
	} else {
		return errParamLength()
	}

	if hdr+bdlen > len(param) {
		return errParamLength()
	}

	var updates [][]byte

	for off := hdr + bdlen; off < len(param); {
		if off+2 > len(param) {
			return errParamLength()
		}

		code, plen := param[off]&0x3f, int(param[off+1])

		def := defaultModePages[code]
		if def == nil || plen != len(def)-2 {
			return errInvalidParams()
		}

		if off+2+plen > len(param) {
			return errParamLength()
		}

		page := param[off : off+2+plen]
		cur, mask := m.current[code], changeableModePages[code]

		for i := 2; i < len(page); i++ {
			if (page[i]^cur[i])&^mask[i] != 0 {
				return errInvalidParams()
			}
		}

		updates = append(updates, page)
		off += 2 + plen
	}

	for _, page := range updates {
		code := page[0] & 0x3f

		copy(m.current[code][2:], page[2:])
		if save {
			copy(m.saved[code][2:], page[2:])
		}
	}

	return nil
}

func (p *Processor) modeSense() error {
	ten := p.cdb[0] == scsi.SCSI_MODE_SENSE_10
	dbd := p.cdb[1]&0x08 != 0
	pc, code := p.cdb[2]>>6, p.cdb[2]&0x3f

	images := p.pages.images(pc)
	b := p.buffer[:]

	n := 4
	if ten {
		n = 8
	}

	for i := 0; i < n+8; i++ {
		b[i] = 0
	}

	if !dbd {
		blocks, bs := p.drive.Sectors(), uint32(p.drive.SectorSize())
		if blocks > 0xffffff {
			blocks = 0xffffff
		}

		if bs == 0 {
			bs = 512
		}

		binary.BigEndian.PutUint32(b[n:n+4], blocks) // density code stays zero
		b[n] = 0
		binary.BigEndian.PutUint32(b[n+4:n+8], bs)
		n += 8
	}

	switch {
	case code == scsi.ALL_PAGES:
		for _, c := range modePageOrder {
			n += copy(b[n:], images[c])
		}
	case images[code] != nil:
		n += copy(b[n:], images[code])
	default:
		return errInvalidField()
	}

	var wp byte
	if p.drive.ReadOnly() {
		wp = 0x80
	}

	if ten {
		binary.BigEndian.PutUint16(b[0:2], uint16(n-2))
		b[3] = wp
		if !dbd {
			binary.BigEndian.PutUint16(b[6:8], 8)
		}
	} else {
		b[0] = byte(n - 1)
		b[2] = wp
		if !dbd {
			b[3] = 8
		}
	}

	length := uint32(n)
	if alloc := scsi.AllocationLength(p.cdb[:]); alloc < length {
		length = alloc
	}

	return p.startData(length, false, nil)
}

func (p *Processor) modeSelect() error {
	ten := p.cdb[0] == scsi.SCSI_MODE_SELECT_10
	save := p.cdb[1]&0x01 != 0

	length := scsi.AllocationLength(p.cdb[:])
	if length > BufferSize {
		return errInvalidField()
	}

	return p.startData(length, true, func() error {
		return p.pages.apply(p.buffer[:length], ten, save)
	})
}
