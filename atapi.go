// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATAPI packet interface and task file emulation.

package mo

import (
	"github.com/dswarbrick/mo/ata"
)

// TaskFile is a snapshot of the ATA registers of an ATAPI unit.
type TaskFile struct {
	Status          uint8
	Error           uint8
	Features        uint8
	InterruptReason uint8
	ByteCount       uint16
}

type atapiTransport struct{}

// AcceptCommand takes a packet. Packets are always 12 bytes; shorter CDBs are zero padded.
func (atapiTransport) AcceptCommand(p *Processor, cdb []byte) error {
	var packet [ata.ATAPI_PACKET_LEN]byte
	copy(packet[:], cdb)

	if p.phase == PhaseIdle {
		p.dma = p.features&ata.FEATURES_DMA != 0 && p.drive.cfg.Mode&ModeDMA != 0
		p.statusReg = ata.STATUS_BSY
	}

	if err := p.Accept(packet[:]); err != nil {
		return err
	}

	p.updateTaskFile()

	return nil
}

// TransferChunk moves at most one DRQ block, as bounded by the host's byte count limit. DMA
// transfers are not bounded by the cylinder registers.
func (atapiTransport) TransferChunk(p *Processor, buf []byte) (int, error) {
	var limit uint32
	if !p.dma {
		limit = uint32(p.byteCountLimit())
	}

	n, err := p.Transfer(buf, limit)
	p.updateTaskFile()

	return n, err
}

// CompleteStatus reports the ATA status and error registers in place of a SCSI status byte.
func (atapiTransport) CompleteStatus(p *Processor) (StatusReport, error) {
	p.updateTaskFile()
	status, errReg := p.statusReg, p.errorReg

	r, err := p.CompleteStatus()
	if err != nil {
		return r, err
	}

	r.Status, r.Error = status, errReg
	p.updateTaskFile()

	return r, nil
}

// setTaskFile latches the features and byte count registers written ahead of a PACKET command.
func (p *Processor) setTaskFile(features uint8, byteCount uint16) {
	p.features = features
	p.requestLength = byteCount
}

// byteCountLimit returns the even DRQ block size requested by the host.
func (p *Processor) byteCountLimit() uint16 {
	limit := p.requestLength &^ 1
	if limit == 0 {
		limit = ata.ATAPI_DEFAULT_BYTE_COUNT
	}

	return limit
}

// updateTaskFile derives the status, error, interrupt reason and byte count registers from
// the processor phase.
func (p *Processor) updateTaskFile() {
	switch p.phase {
	case PhaseIdle:
		p.statusReg = ata.STATUS_DRDY | ata.STATUS_DSC
		p.byteCount = 0
	case PhaseCommandReceived, PhaseNoData, PhaseCompletionPending:
		p.statusReg = ata.STATUS_BSY | ata.STATUS_DRDY
		p.byteCount = 0
	case PhaseDataIn, PhaseDataOut:
		p.errorReg = 0

		if p.phase == PhaseDataIn {
			p.ireason = ata.IREASON_DATA_IN
		} else {
			p.ireason = ata.IREASON_DATA_OUT
		}

		if p.dma {
			p.statusReg = ata.STATUS_BSY | ata.STATUS_DRDY
			p.byteCount = 0
			break
		}

		p.statusReg = ata.STATUS_DRDY | ata.STATUS_DRQ | ata.STATUS_DSC

		remaining := p.totalLength - p.pos
		if limit := uint32(p.byteCountLimit()); remaining > limit {
			remaining = limit
		}

		p.byteCount = uint16(remaining)
	case PhaseStatusDone:
		p.statusReg = ata.STATUS_DRDY | ata.STATUS_DSC
		p.errorReg = 0
		p.ireason = ata.IREASON_STATUS
		p.byteCount = 0
	case PhaseErrorReported:
		p.statusReg = ata.STATUS_DRDY | ata.STATUS_DSC | ata.STATUS_ERR
		p.errorReg = p.sense.Key() << 4
		p.ireason = ata.IREASON_STATUS
		p.byteCount = 0
	}
}

func (p *Processor) taskFile() TaskFile {
	return TaskFile{
		Status:          p.statusReg,
		Error:           p.errorReg,
		Features:        p.features,
		InterruptReason: p.ireason,
		ByteCount:       p.byteCount,
	}
}

// identifyPacketDevice writes the IDENTIFY PACKET DEVICE page to buf.
func (p *Processor) identifyPacketDevice(buf []byte) int {
	prof := &p.drive.profile
	id := ata.NewIdentifyPacketData(p.drive.Serial(), prof.Revision, prof.Ident(), p.drive.cfg.Mode&ModeDMA != 0)

	return id.MarshalTo(buf)
}
