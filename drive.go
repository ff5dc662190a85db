// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Drive instances and their backing image files.

package mo

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/dswarbrick/mo/drivedb"
	"github.com/dswarbrick/mo/utils"
)

// BusType selects how a unit is attached to the host. The numeric values are stored in
// configuration files and state databases and must not change.
type BusType uint8

const (
	BusDisabled BusType = 0
	BusATAPI    BusType = 4
	BusSCSI     BusType = 5
	BusUSB      BusType = 6
)

func (b BusType) String() string {
	switch b {
	case BusDisabled:
		return "disabled"
	case BusATAPI:
		return "atapi"
	case BusSCSI:
		return "scsi"
	case BusUSB:
		return "usb"
	}

	return fmt.Sprintf("bus(%d)", uint8(b))
}

// Valid reports whether b is one of the known bus types.
func (b BusType) Valid() bool {
	switch b {
	case BusDisabled, BusATAPI, BusSCSI, BusUSB:
		return true
	}

	return false
}

// ParseBusType accepts the names returned by BusType.String.
func ParseBusType(s string) (BusType, error) {
	for _, b := range []BusType{BusDisabled, BusATAPI, BusSCSI, BusUSB} {
		if b.String() == s {
			return b, nil
		}
	}

	return BusDisabled, errors.Errorf("unknown bus type %q", s)
}

// TransferMode is a bit set of the data transfer modes a unit supports.
type TransferMode uint8

const (
	ModePIO TransferMode = 1 << iota
	ModeDMA
)

// DriveConfig is the persistent configuration of one unit.
type DriveConfig struct {
	ID            uint8        `json:"id"`
	Bus           BusType      `json:"bus"`
	Mode          TransferMode `json:"mode"`
	IDEChannel    uint8        `json:"ide_channel"`
	SCSIID        uint8        `json:"scsi_id"`
	ReadOnly      bool         `json:"read_only"`
	Profile       int          `json:"profile"`
	ImagePath     string       `json:"image_path,omitempty"`
	PrevImagePath string       `json:"prev_image_path,omitempty"`
}

// Drive is one emulated drive and the image file currently mounted in it.
type Drive struct {
	cfg     DriveConfig
	profile drivedb.DriveProfile

	f        *os.File
	media    int
	geom     drivedb.MediaGeometry
	path     string
	prevPath string
}

func newDrive(cfg DriveConfig, profile drivedb.DriveProfile) *Drive {
	return &Drive{
		cfg:      cfg,
		profile:  profile,
		media:    -1,
		prevPath: cfg.PrevImagePath,
	}
}

// Load mounts the image at path. The geometry is inferred from the exact file size and must be
// supported by the drive profile. On failure the current mount is left as it was.
func (d *Drive) Load(path string) error {
	if path == "" {
		return errors.New("empty image path")
	}

	flag, lock := os.O_RDWR, unix.LOCK_EX
	if d.cfg.ReadOnly {
		flag, lock = os.O_RDONLY, unix.LOCK_SH
	}

	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return errors.Wrapf(err, "cannot open image %s", path)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot stat image %s", path)
	}

	if !fi.Mode().IsRegular() {
		f.Close()
		return errors.Errorf("image %s is not a regular file", path)
	}

	media, ok := drivedb.GeometryForSize(fi.Size())
	if !ok {
		f.Close()
		return errors.Errorf("image %s: size %d (%s) matches no known media", path, fi.Size(),
			utils.FormatBytes(uint64(fi.Size())))
	}

	geom := drivedb.Geometry(media)

	if !d.profile.SupportedMedia[media] {
		f.Close()
		return errors.Errorf("image %s: %s is not supported by %s", path, geom.Label, d.profile.Ident())
	}

	// Remounting the image that is already mounted keeps the existing handle and its lock.
	if d.f != nil {
		if cur, err := d.f.Stat(); err == nil && os.SameFile(cur, fi) {
			f.Close()
			return nil
		}
	}

	if err := unix.Flock(int(f.Fd()), lock|unix.LOCK_NB); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot lock image %s", path)
	}

	if d.f != nil {
		if err := d.release(); err != nil {
			glog.Warningf("unit %d: cannot close %s: %v", d.cfg.ID, d.path, err)
		}
	}

	if d.path != "" {
		d.prevPath = d.path
	}

	d.f, d.media, d.geom, d.path = f, media, geom, path

	glog.V(1).Infof("unit %d: mounted %s (%s, %d x %d bytes)", d.cfg.ID, path, geom.Label,
		geom.Sectors, geom.BytesPerSector)

	return nil
}

// Close unmounts the current image. The drive remembers its path for Reload.
func (d *Drive) Close() error {
	if d.f == nil {
		return nil
	}

	err := d.release()

	glog.V(1).Infof("unit %d: unmounted %s", d.cfg.ID, d.path)

	d.prevPath = d.path
	d.path = ""

	if err != nil {
		return errors.Wrapf(err, "cannot close image %s", d.prevPath)
	}

	return nil
}

// Reload mounts the most recently unmounted (or replaced) image again.
func (d *Drive) Reload() error {
	if d.prevPath == "" {
		return errors.New("no previous image")
	}

	return d.Load(d.prevPath)
}

func (d *Drive) release() error {
	if err := unix.Flock(int(d.f.Fd()), unix.LOCK_UN); err != nil {
		glog.Warningf("unit %d: cannot unlock %s: %v", d.cfg.ID, d.path, err)
	}

	err := d.f.Close()

	d.f = nil
	d.media = -1
	d.geom = drivedb.MediaGeometry{}

	return err
}

func (d *Drive) Present() bool {
	return d.f != nil
}

func (d *Drive) ReadOnly() bool {
	return d.cfg.ReadOnly
}

// Sectors returns the number of sectors on the mounted medium, or 0 without medium.
func (d *Drive) Sectors() uint32 {
	return d.geom.Sectors
}

// SectorSize returns the sector size of the mounted medium, or 0 without medium.
func (d *Drive) SectorSize() uint16 {
	return d.geom.BytesPerSector
}

// Serial returns the unit serial number reported by INQUIRY and IDENTIFY PACKET DEVICE.
func (d *Drive) Serial() string {
	return fmt.Sprintf("MO%06d", d.cfg.ID)
}

// ReadSectors fills buf, which must be a multiple of the sector size, starting at lba.
func (d *Drive) ReadSectors(lba uint32, buf []byte) error {
	if d.f == nil {
		return errors.New("no medium")
	}

	if _, err := d.f.ReadAt(buf, int64(lba)*int64(d.geom.BytesPerSector)); err != nil {
		return errors.Wrapf(err, "read of %d bytes at sector %d", len(buf), lba)
	}

	return nil
}

// WriteSectors writes buf, which must be a multiple of the sector size, starting at lba.
func (d *Drive) WriteSectors(lba uint32, buf []byte) error {
	if d.f == nil {
		return errors.New("no medium")
	}

	if d.cfg.ReadOnly {
		return errors.New("medium is read-only")
	}

	if _, err := d.f.WriteAt(buf, int64(lba)*int64(d.geom.BytesPerSector)); err != nil {
		return errors.Wrapf(err, "write of %d bytes at sector %d", len(buf), lba)
	}

	return nil
}

func (d *Drive) Sync() error {
	if d.f == nil {
		return errors.New("no medium")
	}

	return errors.Wrap(d.f.Sync(), "sync")
}
