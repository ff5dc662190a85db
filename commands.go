// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI command handlers. Every handler either returns an error, or leaves the processor in a
// data phase or with completion scheduled.

package mo

import (
	"encoding/binary"

	"github.com/golang/glog"

	"github.com/dswarbrick/mo/scsi"
	"github.com/dswarbrick/mo/utils"
)

type command struct {
	name string
	run  func(p *Processor) error
	// Runs even while a unit attention is pending
	ignoresAttention bool
}

var commands = map[byte]command{
	scsi.SCSI_TEST_UNIT_READY:       {name: "TEST UNIT READY", run: (*Processor).testUnitReady},
	scsi.SCSI_REZERO_UNIT:           {name: "REZERO UNIT", run: (*Processor).rezeroUnit},
	scsi.SCSI_REQUEST_SENSE:         {name: "REQUEST SENSE", run: (*Processor).requestSense, ignoresAttention: true},
	scsi.SCSI_FORMAT_UNIT:           {name: "FORMAT UNIT", run: (*Processor).formatUnit},
	scsi.SCSI_READ_6:                {name: "READ(6)", run: (*Processor).readBlocks},
	scsi.SCSI_WRITE_6:               {name: "WRITE(6)", run: (*Processor).writeBlocks},
	scsi.SCSI_SEEK_6:                {name: "SEEK(6)", run: (*Processor).seek},
	scsi.SCSI_INQUIRY:               {name: "INQUIRY", run: (*Processor).inquiry, ignoresAttention: true},
	scsi.SCSI_MODE_SELECT_6:         {name: "MODE SELECT(6)", run: (*Processor).modeSelect},
	scsi.SCSI_RESERVE_6:             {name: "RESERVE(6)", run: (*Processor).noData},
	scsi.SCSI_RELEASE_6:             {name: "RELEASE(6)", run: (*Processor).noData},
	scsi.SCSI_MODE_SENSE_6:          {name: "MODE SENSE(6)", run: (*Processor).modeSense},
	scsi.SCSI_START_STOP_UNIT:       {name: "START STOP UNIT", run: (*Processor).startStopUnit},
	scsi.SCSI_SEND_DIAGNOSTIC:       {name: "SEND DIAGNOSTIC", run: (*Processor).noData},
	scsi.SCSI_PREVENT_ALLOW_REMOVAL: {name: "PREVENT ALLOW MEDIUM REMOVAL", run: (*Processor).preventAllowRemoval},
	scsi.SCSI_READ_CAPACITY_10:      {name: "READ CAPACITY(10)", run: (*Processor).readCapacity},
	scsi.SCSI_READ_10:               {name: "READ(10)", run: (*Processor).readBlocks},
	scsi.SCSI_WRITE_10:              {name: "WRITE(10)", run: (*Processor).writeBlocks},
	scsi.SCSI_SEEK_10:               {name: "SEEK(10)", run: (*Processor).seek},
	scsi.SCSI_ERASE_10:              {name: "ERASE(10)", run: (*Processor).erase},
	scsi.SCSI_WRITE_AND_VERIFY_10:   {name: "WRITE AND VERIFY(10)", run: (*Processor).writeBlocks},
	scsi.SCSI_VERIFY_10:             {name: "VERIFY(10)", run: (*Processor).verify},
	scsi.SCSI_SYNCHRONIZE_CACHE_10:  {name: "SYNCHRONIZE CACHE(10)", run: (*Processor).synchronizeCache},
	scsi.SCSI_MODE_SELECT_10:        {name: "MODE SELECT(10)", run: (*Processor).modeSelect},
	scsi.SCSI_MODE_SENSE_10:         {name: "MODE SENSE(10)", run: (*Processor).modeSense},
	scsi.SCSI_READ_12:               {name: "READ(12)", run: (*Processor).readBlocks},
	scsi.SCSI_WRITE_12:              {name: "WRITE(12)", run: (*Processor).writeBlocks},
	scsi.SCSI_ERASE_12:              {name: "ERASE(12)", run: (*Processor).erase},
	scsi.SCSI_WRITE_AND_VERIFY_12:   {name: "WRITE AND VERIFY(12)", run: (*Processor).writeBlocks},
	scsi.SCSI_VERIFY_12:             {name: "VERIFY(12)", run: (*Processor).verify},
}

func (p *Processor) requireMedium() error {
	if !p.drive.Present() {
		return errNoMedium()
	}

	return nil
}

func (p *Processor) checkRange(lba, count uint32) error {
	sectors := p.drive.Sectors()
	if lba >= sectors || uint64(lba)+uint64(count) > uint64(sectors) {
		return errOutOfRange()
	}

	return nil
}

// blockRange decodes and validates the address and length of a block command. buffered
// commands move their data through the unit buffer and are limited by its size.
func (p *Processor) blockRange(write, buffered bool) (uint32, uint32, error) {
	if err := p.requireMedium(); err != nil {
		return 0, 0, err
	}

	if write && p.drive.ReadOnly() {
		return 0, 0, errWriteProtected()
	}

	cdb := p.cdb[:]
	lba, count := scsi.BlockAddress(cdb), scsi.BlockCount(cdb)

	// A zero length in a 6-byte READ or WRITE means 256 blocks
	if count == 0 && scsi.GroupLength(cdb[0]) == 6 {
		count = 256
	}

	bs := uint32(p.drive.SectorSize())

	if buffered && uint64(count)*uint64(bs) > BufferSize {
		return 0, 0, errInvalidField()
	}

	if err := p.checkRange(lba, count); err != nil {
		return 0, 0, err
	}

	p.blockSize, p.lba, p.sectorPos = bs, lba, lba
	p.requestedBlocks, p.sectorLen = count, count
	p.seekPos = lba

	return lba, count, nil
}

func (p *Processor) testUnitReady() error {
	if err := p.requireMedium(); err != nil {
		return err
	}

	return p.noData()
}

func (p *Processor) rezeroUnit() error {
	if err := p.requireMedium(); err != nil {
		return err
	}

	p.seekPos = 0

	return p.noData()
}

func (p *Processor) requestSense() error {
	if p.unitAttention {
		p.unitAttention = false
		p.sense.Set(scsi.SENSE_UNIT_ATTENTION, scsi.ASC_MEDIUM_MAY_HAVE_CHANGED, 0)
	} else if p.sense.Key() == scsi.SENSE_NO_SENSE && !p.drive.Present() {
		p.sense.Set(scsi.SENSE_NOT_READY, scsi.ASC_MEDIUM_NOT_PRESENT, 0)
	}

	n := uint32(copy(p.buffer[:], p.sense.Fixed()))
	p.sense.Clear()

	if alloc := scsi.AllocationLength(p.cdb[:]); alloc < n {
		n = alloc
	}

	return p.startData(n, false, nil)
}

// Physical formatting is not emulated; the image already holds every sector.
func (p *Processor) formatUnit() error {
	if err := p.requireMedium(); err != nil {
		return err
	}

	if p.drive.ReadOnly() {
		return errWriteProtected()
	}

	return p.noData()
}

func (p *Processor) readBlocks() error {
	lba, count, err := p.blockRange(false, true)
	if err != nil {
		return err
	}

	n := count * p.blockSize
	if err := p.drive.ReadSectors(lba, p.buffer[:n]); err != nil {
		glog.Warningf("unit %d: %v", p.drive.cfg.ID, err)
		return errReadFailed()
	}

	return p.startData(n, false, nil)
}

func (p *Processor) writeBlocks() error {
	lba, count, err := p.blockRange(true, true)
	if err != nil {
		return err
	}

	n := count * p.blockSize

	return p.startData(n, true, func() error {
		// The medium may have been removed or replaced during the data phase
		if err := p.requireMedium(); err != nil {
			return err
		}

		if err := p.checkRange(lba, count); err != nil {
			return err
		}

		if uint32(p.drive.SectorSize()) != p.blockSize {
			return errMediumChanged()
		}

		if err := p.drive.WriteSectors(lba, p.buffer[:n]); err != nil {
			glog.Warningf("unit %d: %v", p.drive.cfg.ID, err)
			return errWriteFailed()
		}

		return nil
	})
}

func (p *Processor) seek() error {
	if err := p.requireMedium(); err != nil {
		return err
	}

	lba := scsi.BlockAddress(p.cdb[:])
	if err := p.checkRange(lba, 0); err != nil {
		return err
	}

	p.seekPos = lba

	return p.noData()
}

// verify checks the medium without comparing host data; byte-by-byte comparison is refused.
func (p *Processor) verify() error {
	if p.cdb[1]&0x02 != 0 {
		return errInvalidField()
	}

	if _, _, err := p.blockRange(false, false); err != nil {
		return err
	}

	return p.noData()
}

func (p *Processor) erase() error {
	lba, count, err := p.blockRange(true, false)
	if err != nil {
		return err
	}

	zero := p.buffer[:]
	for i := range zero {
		zero[i] = 0
	}

	perChunk := BufferSize / p.blockSize

	for count > 0 {
		n := count
		if n > perChunk {
			n = perChunk
		}

		if err := p.drive.WriteSectors(lba, zero[:n*p.blockSize]); err != nil {
			glog.Warningf("unit %d: %v", p.drive.cfg.ID, err)
			return errWriteFailed()
		}

		lba += n
		count -= n
	}

	return p.noData()
}

func (p *Processor) inquiry() error {
	evpd := p.cdb[1]&0x01 != 0
	page := p.cdb[2]

	var n uint32

	switch {
	case !evpd && page != 0:
		return errInvalidField()
	case !evpd:
		n = p.standardInquiry(p.buffer[:])
	case page == scsi.VPD_SUPPORTED_PAGES:
		n = vpdPage(p.buffer[:], page, []byte{scsi.VPD_SUPPORTED_PAGES, scsi.VPD_UNIT_SERIAL, scsi.VPD_DEVICE_ID})
	case page == scsi.VPD_UNIT_SERIAL:
		n = vpdPage(p.buffer[:], page, []byte(p.drive.Serial()))
	case page == scsi.VPD_DEVICE_ID:
		n = vpdPage(p.buffer[:], page, p.deviceIdentifier())
	default:
		return errInvalidField()
	}

	if alloc := scsi.AllocationLength(p.cdb[:]); alloc < n {
		n = alloc
	}

	return p.startData(n, false, nil)
}

func (p *Processor) standardInquiry(buf []byte) uint32 {
	prof := &p.drive.profile
	b := buf[:scsi.INQ_REPLY_LEN]

	for i := range b {
		b[i] = 0
	}

	b[0] = scsi.TYPE_OPTICAL
	b[1] = 0x80 // removable

	if p.drive.cfg.Bus == BusATAPI {
		b[3] = 0x21 // ATAPI-2, response data format 1
	} else {
		b[2] = 0x02 // SCSI-2
		b[3] = 0x02
	}

	b[4] = scsi.INQ_REPLY_LEN - 5

	copy(b[8:16], utils.PadString(prof.Vendor, 8))
	copy(b[16:32], utils.PadString(prof.Model, 16))
	copy(b[32:36], utils.PadString(prof.Revision, 4))

	return scsi.INQ_REPLY_LEN
}

func vpdPage(buf []byte, page byte, data []byte) uint32 {
	buf[0] = scsi.TYPE_OPTICAL
	buf[1] = page
	buf[2] = 0
	buf[3] = byte(len(data))

	return uint32(4 + copy(buf[4:], data))
}

// deviceIdentifier returns a T10 vendor ID based designation descriptor.
func (p *Processor) deviceIdentifier() []byte {
	prof := &p.drive.profile

	id := append(utils.PadString(prof.Vendor, 8), utils.PadString(prof.Model, 16)...)
	id = append(id, p.drive.Serial()...)

	return append([]byte{0x02, 0x01, 0x00, byte(len(id))}, id...)
}

func (p *Processor) startStopUnit() error {
	start := p.cdb[4]&0x01 != 0
	loej := p.cdb[4]&0x02 != 0

	switch {
	case !loej:
		// Spindle control only
	case !start:
		if p.preventRemoval {
			return errRemovalPrevented()
		}

		if err := p.drive.Close(); err != nil {
			glog.Warningf("unit %d: %v", p.drive.cfg.ID, err)
		}
	case !p.drive.Present():
		if err := p.drive.Reload(); err != nil {
			glog.Warningf("unit %d: load failed: %v", p.drive.cfg.ID, err)
			return errNoMedium()
		}

		p.unitAttention = true
	}

	return p.noData()
}

func (p *Processor) preventAllowRemoval() error {
	p.preventRemoval = p.cdb[4]&0x01 != 0

	return p.noData()
}

func (p *Processor) readCapacity() error {
	if err := p.requireMedium(); err != nil {
		return err
	}

	binary.BigEndian.PutUint32(p.buffer[0:4], p.drive.Sectors()-1)
	binary.BigEndian.PutUint32(p.buffer[4:8], uint32(p.drive.SectorSize()))

	return p.startData(8, false, nil)
}

func (p *Processor) synchronizeCache() error {
	if err := p.requireMedium(); err != nil {
		return err
	}

	if p.drive.ReadOnly() {
		return p.noData()
	}

	if err := p.drive.Sync(); err != nil {
		glog.Warningf("unit %d: %v", p.drive.cfg.ID, err)
		return errWriteFailed()
	}

	return p.noData()
}
