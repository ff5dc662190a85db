// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package config reads the YAML unit configuration file.
//
//	drivedb: /etc/mo/drivedb.yaml
//	units:
//	- id: 0
//	  bus: atapi        # or 4; also scsi (5), usb (6), disabled (0)
//	  mode: [pio, dma]
//	  ide_channel: 1
//	  profile: FUJITSU M2512A
//	  image: /var/lib/mo/disk0.img
//	  read_only: false
package config

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/mo"
	"github.com/dswarbrick/mo/drivedb"
)

// Bus accepts either the numeric bus type or its name.
type Bus mo.BusType

func (b *Bus) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n uint8
	if err := unmarshal(&n); err == nil {
		if !mo.BusType(n).Valid() {
			return errors.Errorf("invalid bus type %d", n)
		}

		*b = Bus(n)
		return nil
	}

	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	bt, err := mo.ParseBusType(s)
	if err != nil {
		return err
	}

	*b = Bus(bt)
	return nil
}

func (b Bus) MarshalYAML() (interface{}, error) {
	return mo.BusType(b).String(), nil
}

type Unit struct {
	ID         uint8    `yaml:"id"`
	Bus        Bus      `yaml:"bus"`
	Mode       []string `yaml:"mode,flow,omitempty"`
	IDEChannel uint8    `yaml:"ide_channel,omitempty"`
	SCSIID     uint8    `yaml:"scsi_id,omitempty"`
	Profile    string   `yaml:"profile,omitempty"`
	Image      string   `yaml:"image,omitempty"`
	ReadOnly   bool     `yaml:"read_only,omitempty"`
}

type File struct {
	DriveDb string `yaml:"drivedb,omitempty"`
	Units   []Unit `yaml:"units"`
}

// Load reads a configuration file.
func Load(path string) (*File, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read configuration")
	}

	var f File
	if err := yaml.UnmarshalStrict(buf, &f); err != nil {
		return nil, errors.Wrapf(err, "cannot parse configuration %s", path)
	}

	return &f, nil
}

// OpenDriveDb returns the drive database named by the configuration, or the compiled-in one.
func (f *File) OpenDriveDb() (drivedb.DriveDb, error) {
	if f.DriveDb == "" {
		return drivedb.Default(), nil
	}

	return drivedb.OpenDriveDb(f.DriveDb)
}

func parseMode(names []string) (mo.TransferMode, error) {
	if len(names) == 0 {
		return mo.ModePIO, nil
	}

	var m mo.TransferMode

	for _, name := range names {
		switch name {
		case "pio":
			m |= mo.ModePIO
		case "dma":
			m |= mo.ModeDMA
		default:
			return 0, errors.Errorf("unknown transfer mode %q", name)
		}
	}

	return m, nil
}

// DriveConfigs resolves the units against db. Profiles are looked up by "VENDOR MODEL"; an
// empty profile selects the generic drive.
func (f *File) DriveConfigs(db *drivedb.DriveDb) ([]mo.DriveConfig, error) {
	var (
		cfgs   []mo.DriveConfig
		result *multierror.Error
	)

	for _, u := range f.Units {
		mode, err := parseMode(u.Mode)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "unit %d", u.ID))
			continue
		}

		profile := drivedb.GENERIC_PROFILE

		if u.Profile != "" {
			i, ok := db.LookupDrive(u.Profile)
			if !ok {
				result = multierror.Append(result, errors.Errorf("unit %d: unknown drive %q", u.ID, u.Profile))
				continue
			}

			profile = i
		}

		cfgs = append(cfgs, mo.DriveConfig{
			ID:         u.ID,
			Bus:        mo.BusType(u.Bus),
			Mode:       mode,
			IDEChannel: u.IDEChannel,
			SCSIID:     u.SCSIID,
			ReadOnly:   u.ReadOnly,
			Profile:    profile,
			ImagePath:  u.Image,
		})
	}

	return cfgs, result.ErrorOrNil()
}
