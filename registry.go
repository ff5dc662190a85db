// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package mo

//go:generate mockgen -destination=mocks/mock_adapter.go -package=mock_mo github.com/dswarbrick/mo HostAdapter

import (
	"time"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/dswarbrick/mo/ata"
	"github.com/dswarbrick/mo/drivedb"
)

// HostAdapter is notified when a unit has status ready for the host.
type HostAdapter interface {
	Interrupt(unit uint8)
}

type unit struct {
	cfg       DriveConfig
	drive     *Drive
	proc      *Processor
	transport Transport
}

// Registry owns every emulated unit. All access to drives and their command processors goes
// through it.
type Registry struct {
	db      drivedb.DriveDb
	units   [NumUnits]*unit
	adapter HostAdapter
}

// UnitInfo describes a unit and its mounted medium.
type UnitInfo struct {
	Config         DriveConfig
	Vendor         string
	Model          string
	Revision       string
	Present        bool
	Media          string
	Sectors        uint32
	BytesPerSector uint16
}

// NewRegistry validates the drive database and the unit configurations, and creates a drive
// and command processor for every enabled unit. Units with an image path are mounted; a mount
// failure is logged and leaves the unit empty.
func NewRegistry(db drivedb.DriveDb, configs []DriveConfig, adapter HostAdapter) (*Registry, error) {
	if err := db.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid drive database")
	}

	var (
		result *multierror.Error
		seen   [NumUnits]bool
	)

	r := &Registry{db: db, adapter: adapter}

	for _, cfg := range configs {
		if err := validateConfig(&db, cfg); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "unit %d", cfg.ID))
			continue
		}

		if seen[cfg.ID] {
			result = multierror.Append(result, errors.Errorf("unit %d configured twice", cfg.ID))
			continue
		}

		seen[cfg.ID] = true

		if cfg.Bus != BusDisabled {
			r.units[cfg.ID] = r.newUnit(cfg)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	for id, u := range r.units {
		if u == nil || u.cfg.ImagePath == "" {
			continue
		}

		if err := u.drive.Load(u.cfg.ImagePath); err != nil {
			glog.Warningf("unit %d: %v", id, err)
		}
	}

	return r, nil
}

func validateConfig(db *drivedb.DriveDb, cfg DriveConfig) error {
	switch {
	case cfg.ID >= NumUnits:
		return errors.Errorf("id must be below %d", NumUnits)
	case !cfg.Bus.Valid():
		return errors.Errorf("invalid bus type %d", uint8(cfg.Bus))
	case cfg.Bus == BusDisabled:
		return nil
	case cfg.Mode == 0 || cfg.Mode&^(ModePIO|ModeDMA) != 0:
		return errors.Errorf("invalid transfer mode %#x", uint8(cfg.Mode))
	case cfg.Profile < 0 || cfg.Profile >= len(db.Drives):
		return errors.Errorf("profile %d out of range", cfg.Profile)
	case cfg.Bus == BusATAPI && cfg.IDEChannel > 7:
		return errors.Errorf("ide channel %d out of range", cfg.IDEChannel)
	case cfg.Bus == BusSCSI && cfg.SCSIID > 15:
		return errors.Errorf("scsi id %d out of range", cfg.SCSIID)
	}

	return nil
}

func (r *Registry) newUnit(cfg DriveConfig) *unit {
	id := cfg.ID
	d := newDrive(cfg, r.db.Profile(cfg.Profile))

	return &unit{
		cfg:       cfg,
		drive:     d,
		proc:      newProcessor(d, func() { r.interrupt(id) }),
		transport: newTransport(cfg.Bus),
	}
}

func (r *Registry) interrupt(id uint8) {
	if r.adapter != nil {
		r.adapter.Interrupt(id)
	}
}

func (r *Registry) unit(id uint8) (*unit, error) {
	if int(id) >= len(r.units) || r.units[id] == nil {
		return nil, errors.Wrapf(ErrNoSuchUnit, "unit %d", id)
	}

	return r.units[id], nil
}

// Load mounts the image at path in unit id. It reports whether the image was mounted; the
// reason for a failure is logged.
func (r *Registry) Load(id uint8, path string) bool {
	u, err := r.unit(id)
	if err != nil {
		glog.Warning(err)
		return false
	}

	if err := u.drive.Load(path); err != nil {
		glog.Warningf("unit %d: %v", id, err)
		return false
	}

	return true
}

// Insert signals a medium change to the host. The next command other than INQUIRY or REQUEST
// SENSE fails once with UNIT ATTENTION.
func (r *Registry) Insert(id uint8) error {
	u, err := r.unit(id)
	if err != nil {
		return err
	}

	u.proc.MediumChanged()

	return nil
}

// Close unmounts the image in unit id.
func (r *Registry) Close(id uint8) error {
	u, err := r.unit(id)
	if err != nil {
		return err
	}

	return u.drive.Close()
}

// Reload mounts the previously mounted image of unit id again and signals the medium change.
func (r *Registry) Reload(id uint8) bool {
	u, err := r.unit(id)
	if err != nil {
		glog.Warning(err)
		return false
	}

	if err := u.drive.Reload(); err != nil {
		glog.Warningf("unit %d: reload failed: %v", id, err)
		return false
	}

	u.proc.MediumChanged()

	return true
}

// Reset aborts whatever unit id is doing and returns it to its power-on state.
func (r *Registry) Reset(id uint8) error {
	u, err := r.unit(id)
	if err != nil {
		return err
	}

	u.proc.Reset()

	return nil
}

// HardReset resets every unit.
func (r *Registry) HardReset() {
	for _, u := range r.units {
		if u != nil {
			u.proc.Reset()
		}
	}
}

// Command delivers a CDB to unit id. The only command level error returned is a
// *scsi.SenseError with COMMAND SEQUENCE ERROR, when the unit is still busy with a previous
// command; the host should treat it as BUSY status.
func (r *Registry) Command(id uint8, cdb []byte) error {
	u, err := r.unit(id)
	if err != nil {
		return err
	}

	return u.transport.AcceptCommand(u.proc, cdb)
}

// Transfer moves data of the current data phase between buf and unit id. The direction
// follows from the command.
func (r *Registry) Transfer(id uint8, buf []byte) (int, error) {
	u, err := r.unit(id)
	if err != nil {
		return 0, err
	}

	return u.transport.TransferChunk(u.proc, buf)
}

// Advance moves emulated time forward for every unit.
func (r *Registry) Advance(d time.Duration) {
	for _, u := range r.units {
		if u != nil {
			u.proc.Advance(d)
		}
	}
}

// Status collects the outcome of the completed command of unit id.
func (r *Registry) Status(id uint8) (StatusReport, error) {
	u, err := r.unit(id)
	if err != nil {
		return StatusReport{}, err
	}

	return u.transport.CompleteStatus(u.proc)
}

func (r *Registry) Phase(id uint8) (Phase, error) {
	u, err := r.unit(id)
	if err != nil {
		return PhaseIdle, err
	}

	return u.proc.Phase(), nil
}

func (r *Registry) atapiUnit(id uint8) (*unit, error) {
	u, err := r.unit(id)
	if err != nil {
		return nil, err
	}

	if u.cfg.Bus != BusATAPI {
		return nil, errors.Wrapf(ErrWrongBus, "unit %d is on bus %s", id, u.cfg.Bus)
	}

	return u, nil
}

// ATACommand executes an ATA command written to the command register of an ATAPI unit.
// PACKET latches the features and byte count registers for the packet that follows.
func (r *Registry) ATACommand(id uint8, cmd uint8, features uint8, byteCount uint16) error {
	u, err := r.atapiUnit(id)
	if err != nil {
		return err
	}

	switch cmd {
	case ata.ATA_PACKET:
		u.proc.setTaskFile(features, byteCount)
	case ata.ATA_DEVICE_RESET:
		u.proc.Reset()
	case ata.ATA_SET_FEATURES, ata.ATA_IDENTIFY_PACKET_DEVICE:
	default:
		return errors.Errorf("unit %d: unsupported ATA command %#02x", id, cmd)
	}

	return nil
}

// TaskFile returns the ATA registers of an ATAPI unit.
func (r *Registry) TaskFile(id uint8) (TaskFile, error) {
	u, err := r.atapiUnit(id)
	if err != nil {
		return TaskFile{}, err
	}

	u.proc.updateTaskFile()

	return u.proc.taskFile(), nil
}

// Identify returns the IDENTIFY PACKET DEVICE data of an ATAPI unit.
func (r *Registry) Identify(id uint8) ([]byte, error) {
	u, err := r.atapiUnit(id)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, ata.IDENTIFY_LEN)
	u.proc.identifyPacketDevice(buf)

	return buf, nil
}

// Info describes unit id.
func (r *Registry) Info(id uint8) (UnitInfo, error) {
	u, err := r.unit(id)
	if err != nil {
		return UnitInfo{}, err
	}

	d := u.drive
	info := UnitInfo{
		Config:         r.config(u),
		Vendor:         d.profile.Vendor,
		Model:          d.profile.Model,
		Revision:       d.profile.Revision,
		Present:        d.Present(),
		Sectors:        d.Sectors(),
		BytesPerSector: d.SectorSize(),
	}

	if d.Present() {
		info.Media = d.geom.Label
	}

	return info, nil
}

func (r *Registry) config(u *unit) DriveConfig {
	cfg := u.cfg
	cfg.ImagePath = u.drive.path
	cfg.PrevImagePath = u.drive.prevPath

	return cfg
}

// Snapshot returns the configuration of every enabled unit, with the current and previous
// image paths.
func (r *Registry) Snapshot() []DriveConfig {
	var cfgs []DriveConfig

	for _, u := range r.units {
		if u != nil {
			cfgs = append(cfgs, r.config(u))
		}
	}

	return cfgs
}

// Shutdown cancels all pending work and unmounts every image.
func (r *Registry) Shutdown() error {
	var result *multierror.Error

	for id, u := range r.units {
		if u == nil {
			continue
		}

		u.proc.abort()

		if err := u.drive.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "unit %d", id))
		}
	}

	return result.ErrorOrNil()
}
