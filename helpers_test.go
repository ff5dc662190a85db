// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package mo

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/mo/drivedb"
	"github.com/dswarbrick/mo/scsi"
)

// Capacity of a 3.5" 128Mb disk
const size128 = 127398912

var cdbTestUnitReady = []byte{scsi.SCSI_TEST_UNIT_READY, 0, 0, 0, 0, 0}

// makeImage creates a sparse image file of the given size.
func makeImage(t *testing.T, size int64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "disk.img")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	return path
}

func newTestRegistry(t *testing.T, cfgs ...DriveConfig) *Registry {
	t.Helper()

	r, err := NewRegistry(drivedb.Default(), cfgs, nil)
	require.NoError(t, err)

	t.Cleanup(func() { r.Shutdown() })

	return r
}

func scsiUnit(id uint8) DriveConfig {
	return DriveConfig{ID: id, Bus: BusSCSI, Mode: ModePIO, SCSIID: id}
}

// mountedUnit returns a registry holding cfg, with a blank 128Mb image mounted.
func mountedUnit(t *testing.T, cfg DriveConfig) (*Registry, string) {
	t.Helper()

	r := newTestRegistry(t, cfg)
	path := makeImage(t, size128)
	require.True(t, r.Load(cfg.ID, path))

	return r, path
}

func blockCDB(op byte, lba uint32, count uint16) []byte {
	cdb := make([]byte, 10)
	cdb[0] = op
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], count)

	return cdb
}

func read10(lba uint32, count uint16) []byte {
	return blockCDB(scsi.SCSI_READ_10, lba, count)
}

func write10(lba uint32, count uint16) []byte {
	return blockCDB(scsi.SCSI_WRITE_10, lba, count)
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}

	return b
}
