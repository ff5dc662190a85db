// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package mo

import (
	"github.com/golang/glog"

	"github.com/dswarbrick/mo/scsi"
)

// Transport adapts the command processor to the conventions of one host bus.
type Transport interface {
	AcceptCommand(p *Processor, cdb []byte) error
	TransferChunk(p *Processor, buf []byte) (int, error)
	CompleteStatus(p *Processor) (StatusReport, error)
}

// newTransport returns the transport for bus, or nil for a disabled unit.
func newTransport(bus BusType) Transport {
	switch bus {
	case BusATAPI:
		return atapiTransport{}
	case BusSCSI:
		return scsiTransport{}
	case BusUSB:
		return usbTransport{}
	}

	return nil
}

// Parallel SCSI. The CDB length follows from the opcode group and status is a SAM status byte.
type scsiTransport struct{}

func (scsiTransport) AcceptCommand(p *Processor, cdb []byte) error {
	return p.Accept(cdb)
}

func (scsiTransport) TransferChunk(p *Processor, buf []byte) (int, error) {
	return p.Transfer(buf, 0)
}

func (scsiTransport) CompleteStatus(p *Processor) (StatusReport, error) {
	return p.CompleteStatus()
}

// Bulk-Only command status wrapper codes
const (
	CSWPassed     = 0x00
	CSWFailed     = 0x01
	CSWPhaseError = 0x02
)

// USB mass storage, Bulk-Only transport with the SCSI command set.
type usbTransport struct {
	scsiTransport
}

// CompleteStatus reports a CSW status. A host that asks for status in the middle of the data
// phase gets a phase error and the command is dropped.
func (usbTransport) CompleteStatus(p *Processor) (StatusReport, error) {
	switch p.Phase() {
	case PhaseIdle:
		return StatusReport{}, errSequence()
	case PhaseStatusDone, PhaseErrorReported:
	default:
		glog.Warningf("unit %d: status requested in phase %s", p.drive.cfg.ID, p.Phase())

		r := StatusReport{
			Status:  CSWPhaseError,
			CDB:     append([]byte(nil), p.received[:p.cdbLen]...),
			Residue: p.totalLength - p.pos,
		}
		p.abort()

		return r, nil
	}

	r, err := p.CompleteStatus()
	if err != nil {
		return r, err
	}

	if r.Status == scsi.SAM_STAT_GOOD {
		r.Status = CSWPassed
	} else {
		r.Status = CSWFailed
	}

	return r, nil
}
