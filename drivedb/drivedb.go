// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package drivedb

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	VENDOR_LEN   = 8
	MODEL_LEN    = 16
	REVISION_LEN = 4
)

// DriveProfile is the identity of a real (or virtual) MO drive model and the media formats it
// accepts.
type DriveProfile struct {
	Vendor         string
	Model          string
	Revision       string
	SupportedMedia [NUM_MEDIA_TYPES]bool
	CompiledRegexp *regexp.Regexp
}

// Ident returns the "VENDOR MODEL" string matched by LookupDrive.
func (p *DriveProfile) Ident() string {
	return p.Vendor + " " + p.Model
}

// YAML form of a profile. The support vector is a slice so that a wrong length can be
// reported rather than silently truncated.
type yamlDrive struct {
	Vendor         string `yaml:"vendor"`
	Model          string `yaml:"model"`
	Revision       string `yaml:"revision"`
	ModelRegex     string `yaml:"model_regex,omitempty"`
	SupportedMedia []bool `yaml:"supported_media,flow"`
}

type yamlDriveDb struct {
	Drives []yamlDrive `yaml:"drives"`
}

type DriveDb struct {
	Drives []DriveProfile
}

// Index of the generic profile, which accepts every media format.
const GENERIC_PROFILE = 0

const y, n = true, false

var driveTypes = [...]DriveProfile{
	{Vendor: "86BOX", Model: "MAGNETO OPTICAL", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, y, y, y, y, y, y, y, y, y}},
	{Vendor: "FUJITSU", Model: "M2512A", Revision: "1314", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, y, n, n, n, n, n, n, n}},
	{Vendor: "FUJITSU", Model: "M2513-MCC3064SS", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, y, y, y, n, n, n, n, n, n}},
	{Vendor: "FUJITSU", Model: "MCE3130SS", Revision: "0070", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, y, y, y, y, n, n, n, n, n}},
	{Vendor: "FUJITSU", Model: "MCF3064SS", Revision: "0030", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, y, y, y, n, n, n, n, n, n}},
	{Vendor: "FUJITSU", Model: "MCJ3230UB-S", Revision: "0040", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, y, y, y, y, y, n, n, n, n}},
	{Vendor: "HP", Model: "S6300.65", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{n, n, n, n, n, n, y, y, n, n}},
	{Vendor: "HP", Model: "C1716C", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{n, n, n, n, n, n, y, y, n, y}},
	{Vendor: "IBM", Model: "0632AAA", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{n, n, n, n, n, n, y, y, n, n}},
	{Vendor: "IBM", Model: "0632CHC", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{n, n, n, n, n, n, y, y, n, y}},
	{Vendor: "IBM", Model: "0632CHX", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{n, n, n, n, n, n, y, y, n, y}},
	{Vendor: "IBM", Model: "MD3125A", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, n, n, n, n, n, n, n, n, n}},
	{Vendor: "IBM", Model: "MD3125B", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, n, n, n, n, n, n, n, n, n}},
	{Vendor: "IBM", Model: "MTA-3127", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, n, n, n, n, n, n, n, n, n}},
	{Vendor: "IBM", Model: "MTA-3230", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, y, n, n, n, n, n, n, n, n}},
	{Vendor: "MATSHITA", Model: "LF-3000", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, n, n, n, n, n, n, n, n, n}},
	{Vendor: "MOST", Model: "RMD-5100", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, n, n, n, n, n, n, n, n, n}},
	{Vendor: "RICOH", Model: "RO-5031E", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{n, n, n, n, n, n, y, y, n, n}},
	{Vendor: "SONY", Model: "SMO-C301", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, n, n, n, n, n, n, n, n, n}},
	{Vendor: "SONY", Model: "SMO-C501", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{n, n, n, n, n, n, y, y, n, n}},
	{Vendor: "TEAC", Model: "OD-3000", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, n, n, n, n, n, n, n, n, n}},
	{Vendor: "TOSHIBA", Model: "OD-D300", Revision: "1.00", SupportedMedia: [NUM_MEDIA_TYPES]bool{y, n, n, n, n, n, n, n, n, n}},
}

// NUM_BUILTIN_DRIVES is the number of compiled-in drive profiles.
const NUM_BUILTIN_DRIVES = len(driveTypes)

// Default returns a DriveDb holding only the compiled-in profiles.
func Default() DriveDb {
	db := DriveDb{Drives: make([]DriveProfile, len(driveTypes))}
	copy(db.Drives, driveTypes[:])

	for i := range db.Drives {
		db.Drives[i].CompiledRegexp = identRegexp(&db.Drives[i])
	}

	return db
}

// Profile returns the profile at index. Out-of-range indexes panic.
func (db *DriveDb) Profile(index int) DriveProfile {
	if index < 0 || index >= len(db.Drives) {
		panic(fmt.Sprintf("drivedb: profile index %d out of range", index))
	}

	return db.Drives[index]
}

// IsSupported reports whether the profile accepts the media format. Out-of-range indexes
// panic.
func (db *DriveDb) IsSupported(profile, media int) bool {
	p := db.Profile(profile)
	Geometry(media)

	return p.SupportedMedia[media]
}

// LookupDrive returns the index of the first profile whose model regexp matches ident
// ("VENDOR MODEL").
func (db *DriveDb) LookupDrive(ident string) (int, bool) {
	ident = strings.Join(strings.Fields(ident), " ")

	for i, d := range db.Drives {
		if d.CompiledRegexp != nil && d.CompiledRegexp.MatchString(ident) {
			return i, true
		}
	}

	return -1, false
}

// Validate checks the invariants of the media table and of every profile, and returns all
// violations at once.
func (db *DriveDb) Validate() error {
	var result *multierror.Error

	if err := validateMedia(); err != nil {
		result = multierror.Append(result, err)
	}

	for i := range db.Drives {
		if err := validateProfile(&db.Drives[i]); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "drive %d", i))
		}
	}

	return result.ErrorOrNil()
}

func validateProfile(p *DriveProfile) error {
	switch {
	case p.Vendor == "" || len(p.Vendor) > VENDOR_LEN:
		return fmt.Errorf("vendor %q must be 1-%d characters", p.Vendor, VENDOR_LEN)
	case p.Model == "" || len(p.Model) > MODEL_LEN:
		return fmt.Errorf("model %q must be 1-%d characters", p.Model, MODEL_LEN)
	case len(p.Revision) > REVISION_LEN:
		return fmt.Errorf("revision %q exceeds %d characters", p.Revision, REVISION_LEN)
	}

	return nil
}

func identRegexp(p *DriveProfile) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(p.Ident()) + "$")
}

// OpenDriveDb opens a YAML-formatted drive database, and returns a DriveDb holding the
// compiled-in profiles followed by the profiles read from the file. A file entry with the same
// vendor and model as a compiled-in profile replaces it in place.
func OpenDriveDb(dbfile string) (DriveDb, error) {
	db := Default()

	f, err := os.Open(dbfile)
	if err != nil {
		return db, errors.Wrap(err, "cannot open drive database")
	}

	defer f.Close()

	var ydb yamlDriveDb

	if err := yaml.NewDecoder(f).Decode(&ydb); err != nil {
		return db, errors.Wrapf(err, "cannot decode drive database %s", dbfile)
	}

	var result *multierror.Error

	for i, yd := range ydb.Drives {
		p, err := yd.profile()
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "%s: drive %d", dbfile, i))
			continue
		}

		if j, ok := db.LookupDrive(p.Ident()); ok && j < NUM_BUILTIN_DRIVES {
			db.Drives[j] = p
			continue
		}

		db.Drives = append(db.Drives, p)
	}

	if err := result.ErrorOrNil(); err != nil {
		return Default(), err
	}

	return db, nil
}

func (yd *yamlDrive) profile() (DriveProfile, error) {
	p := DriveProfile{
		Vendor:   yd.Vendor,
		Model:    yd.Model,
		Revision: yd.Revision,
	}

	if len(yd.SupportedMedia) != NUM_MEDIA_TYPES {
		return p, fmt.Errorf("supported_media has %d entries, want %d", len(yd.SupportedMedia), NUM_MEDIA_TYPES)
	}

	copy(p.SupportedMedia[:], yd.SupportedMedia)

	if err := validateProfile(&p); err != nil {
		return p, err
	}

	if yd.ModelRegex == "" {
		p.CompiledRegexp = identRegexp(&p)
		return p, nil
	}

	re, err := regexp.Compile(yd.ModelRegex)
	if err != nil {
		return p, errors.Wrap(err, "model_regex")
	}

	p.CompiledRegexp = re
	return p, nil
}

// Marshal encodes db in the format read by OpenDriveDb.
func (db *DriveDb) Marshal() ([]byte, error) {
	var ydb yamlDriveDb

	for _, d := range db.Drives {
		ydb.Drives = append(ydb.Drives, yamlDrive{
			Vendor:         d.Vendor,
			Model:          d.Model,
			Revision:       d.Revision,
			SupportedMedia: append([]bool(nil), d.SupportedMedia[:]...),
		})
	}

	return yaml.Marshal(ydb)
}
