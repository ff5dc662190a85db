// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Command processing state machine.

package mo

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/dswarbrick/mo/scsi"
)

// Phase is the state of the command currently being processed by a unit.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseCommandReceived
	PhaseDataIn
	PhaseDataOut
	PhaseNoData
	PhaseCompletionPending
	PhaseStatusDone
	PhaseErrorReported
)

var phaseNames = [...]string{
	PhaseIdle:              "idle",
	PhaseCommandReceived:   "command received",
	PhaseDataIn:            "data in",
	PhaseDataOut:           "data out",
	PhaseNoData:            "no data",
	PhaseCompletionPending: "completion pending",
	PhaseStatusDone:        "status done",
	PhaseErrorReported:     "error reported",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}

	return fmt.Sprintf("phase(%d)", uint8(p))
}

// Bus-visible transaction state.
type packetStatus uint8

const (
	packetIdle packetStatus = iota
	packetCommand
	packetDataIn
	packetDataOut
	packetDataInDMA
	packetDataOutDMA
	packetComplete
	packetError
)

// StatusReport is the outcome of a command, as handed to the host once it has completed.
type StatusReport struct {
	// SCSI status byte, Bulk-Only CSW status or ATA status register, depending on the bus
	Status uint8
	// ATA error register (ATAPI only)
	Error uint8

	SenseKey uint8
	ASC      uint8
	ASCQ     uint8

	// Echo of the command descriptor block as received
	CDB []byte
	// Bytes of the data phase that were not transferred
	Residue uint32
}

// Processor runs commands for one drive.
type Processor struct {
	drive      *Drive
	onComplete func()

	phase        Phase
	packetStatus packetStatus

	// ATA task file
	statusReg     uint8
	errorReg      uint8
	features      uint8
	ireason       uint8
	byteCount     uint16
	requestLength uint16

	dma            bool
	unitAttention  bool
	preventRemoval bool

	cdb      [16]byte
	received [16]byte
	cdbLen   int

	buffer      [BufferSize]byte
	totalLength uint32
	pos         uint32

	// Block addressed transfers
	blockSize       uint32
	lba             uint32
	requestedBlocks uint32
	sectorPos       uint32
	sectorLen       uint32
	seekPos         uint32

	commit   func() error
	deferred error
	status   uint8

	sense scsi.Sense
	pages modePages
	timer Timer
}

func newProcessor(d *Drive, onComplete func()) *Processor {
	p := &Processor{drive: d, onComplete: onComplete}
	p.pages.reset()

	return p
}

func (p *Processor) Phase() Phase {
	return p.phase
}

// MediumChanged raises a unit attention, reported once by the next command.
func (p *Processor) MediumChanged() {
	p.unitAttention = true
}

// Accept starts processing cdb. Only a command arriving while another is in flight is refused
// with an error; every other failure is reported through sense data at status time.
func (p *Processor) Accept(cdb []byte) error {
	if err := p.check(); err != nil {
		return err
	}

	if p.phase != PhaseIdle {
		glog.Warningf("unit %d: command rejected in phase %s", p.drive.cfg.ID, p.phase)
		return errSequence()
	}

	p.phase = PhaseCommandReceived
	p.packetStatus = packetCommand
	p.status = scsi.SAM_STAT_GOOD

	p.cdb = [16]byte{}
	p.cdbLen = copy(p.cdb[:], cdb)
	p.received = p.cdb

	if err := p.execute(cdb); err != nil {
		p.fail(err)
	}

	return nil
}

func (p *Processor) execute(cdb []byte) error {
	if len(cdb) == 0 || len(cdb) > len(p.cdb) {
		return errInvalidField()
	}

	op := cdb[0]

	cmd, ok := commands[op]
	if !ok {
		return errInvalidOpcode()
	}

	if len(cdb) < scsi.GroupLength(op) {
		return errInvalidField()
	}

	glog.V(2).Infof("unit %d: %s % x", p.drive.cfg.ID, cmd.name, cdb)

	if p.unitAttention && !cmd.ignoresAttention {
		p.unitAttention = false
		return errMediumChanged()
	}

	if op != scsi.SCSI_REQUEST_SENSE {
		p.sense.Clear()
	}

	return cmd.run(p)
}

// fail ends the current command with CHECK CONDITION.
func (p *Processor) fail(err error) {
	var se *scsi.SenseError
	if !errors.As(err, &se) {
		glog.Errorf("unit %d: %v", p.drive.cfg.ID, err)
		se = errInternal().(*scsi.SenseError)
	} else {
		glog.Warningf("unit %d: command %#02x failed: %v", p.drive.cfg.ID, p.cdb[0], err)
	}

	p.timer.Cancel()
	p.commit = nil
	p.sense.Set(se.Key, se.ASC, se.ASCQ)
	p.status = scsi.SAM_STAT_CHECK_CONDITION
	p.phase = PhaseErrorReported
	p.packetStatus = packetError
	p.interrupt()
}

// startData enters a data phase of n bytes. For DATA OUT, commit runs once the last byte has
// arrived.
func (p *Processor) startData(n uint32, out bool, commit func() error) error {
	if n > BufferSize {
		return errInvalidField()
	}

	if n == 0 {
		return p.noData()
	}

	p.totalLength, p.pos = n, 0
	p.commit = commit

	switch {
	case out && p.dma:
		p.phase, p.packetStatus = PhaseDataOut, packetDataOutDMA
	case out:
		p.phase, p.packetStatus = PhaseDataOut, packetDataOut
	case p.dma:
		p.phase, p.packetStatus = PhaseDataIn, packetDataInDMA
	default:
		p.phase, p.packetStatus = PhaseDataIn, packetDataIn
	}

	return nil
}

func (p *Processor) noData() error {
	p.phase = PhaseNoData
	p.schedule(0)

	return nil
}

func (p *Processor) schedule(n uint32) {
	p.phase = PhaseCompletionPending
	p.timer.Arm(transferLatency(n, p.dma), p.complete)
}

func (p *Processor) complete() {
	if err := p.deferred; err != nil {
		p.deferred = nil
		p.fail(err)
		return
	}

	p.phase = PhaseStatusDone
	p.packetStatus = packetComplete
	p.interrupt()
}

func (p *Processor) interrupt() {
	if p.onComplete != nil {
		p.onComplete()
	}
}

// Transfer moves up to len(buf) bytes of the current data phase, further bounded by limit
// when it is non-zero. It returns the number of bytes moved.
func (p *Processor) Transfer(buf []byte, limit uint32) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}

	var out bool

	switch p.phase {
	case PhaseDataIn:
	case PhaseDataOut:
		out = true
	default:
		return 0, errSequence()
	}

	n := p.totalLength - p.pos
	if uint32(len(buf)) < n {
		n = uint32(len(buf))
	}

	if limit > 0 && limit < n {
		n = limit
	}

	if out {
		copy(p.buffer[p.pos:p.pos+n], buf)
	} else {
		copy(buf, p.buffer[p.pos:p.pos+n])
	}

	p.pos += n

	if p.blockSize > 0 {
		p.sectorPos = p.lba + p.pos/p.blockSize
	}

	glog.V(3).Infof("unit %d: transferred %d bytes (%d/%d)", p.drive.cfg.ID, n, p.pos, p.totalLength)

	if p.pos < p.totalLength {
		return int(n), nil
	}

	if out && p.commit != nil {
		p.deferred = p.commit()
		p.commit = nil
	}

	p.schedule(p.totalLength)

	return int(n), nil
}

// CompleteStatus returns the outcome of a finished command and makes the unit idle again.
func (p *Processor) CompleteStatus() (StatusReport, error) {
	switch p.phase {
	case PhaseStatusDone, PhaseErrorReported:
	default:
		return StatusReport{}, errSequence()
	}

	r := StatusReport{
		Status:   p.status,
		SenseKey: p.sense.Key(),
		ASC:      p.sense.ASC(),
		ASCQ:     p.sense.ASCQ(),
		CDB:      append([]byte(nil), p.received[:p.cdbLen]...),
		Residue:  p.totalLength - p.pos,
	}

	p.endTransaction()

	return r, nil
}

// abort drops the current command without reporting status.
func (p *Processor) abort() {
	p.timer.Cancel()
	p.endTransaction()
}

func (p *Processor) endTransaction() {
	p.phase = PhaseIdle
	p.packetStatus = packetIdle
	p.totalLength, p.pos = 0, 0
	p.blockSize, p.lba, p.requestedBlocks, p.sectorPos, p.sectorLen = 0, 0, 0, 0, 0
	p.commit = nil
	p.deferred = nil
}

// Advance moves emulated time forward.
func (p *Processor) Advance(d time.Duration) {
	p.timer.Advance(d)
}

// Reset returns the unit to its power-on state. A pending unit attention survives.
func (p *Processor) Reset() {
	p.timer.Cancel()
	p.endTransaction()

	p.statusReg, p.errorReg, p.features, p.ireason = 0, 0, 0, 0
	p.byteCount, p.requestLength = 0, 0
	p.dma = false
	p.preventRemoval = false

	p.cdb, p.received, p.cdbLen = [16]byte{}, [16]byte{}, 0
	p.seekPos = 0
	p.status = scsi.SAM_STAT_GOOD

	p.sense.Clear()
	p.pages.reset()

	glog.V(1).Infof("unit %d: reset", p.drive.cfg.ID)
}

// check verifies the transaction counters. A violation means the emulation itself is broken;
// the unit is reset so that the host can recover.
func (p *Processor) check() error {
	var what string

	switch {
	case p.phase > PhaseErrorReported:
		what = "unknown phase"
	case p.totalLength > BufferSize:
		what = "transfer length exceeds buffer"
	case p.pos > p.totalLength:
		what = "position beyond transfer length"
	default:
		return nil
	}

	glog.Errorf("unit %d: %s (phase %d, pos %d, length %d), resetting", p.drive.cfg.ID, what,
		p.phase, p.pos, p.totalLength)

	p.Reset()

	return errInternal()
}
