// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package mo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/mo/drivedb"
)

func TestBusType(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint8(0), uint8(BusDisabled))
	assert.Equal(uint8(4), uint8(BusATAPI))
	assert.Equal(uint8(5), uint8(BusSCSI))
	assert.Equal(uint8(6), uint8(BusUSB))

	b, err := ParseBusType("usb")
	assert.NoError(err)
	assert.Equal(BusUSB, b)

	_, err = ParseBusType("firewire")
	assert.Error(err)

	assert.False(BusType(3).Valid())
	assert.Equal("bus(3)", BusType(3).String())
}

func TestLoadInfersGeometry(t *testing.T) {
	r, path := mountedUnit(t, scsiUnit(0))

	info, err := r.Info(0)
	require.NoError(t, err)

	assert.True(t, info.Present)
	assert.Equal(t, "3.5\" 128Mb M.O. (ISO 10090)", info.Media)
	assert.Equal(t, uint32(248826), info.Sectors)
	assert.Equal(t, uint16(512), info.BytesPerSector)
	assert.Equal(t, path, info.Config.ImagePath)
}

func TestLoadFailureKeepsMount(t *testing.T) {
	r, path := mountedUnit(t, scsiUnit(0))

	assert.False(t, r.Load(0, makeImage(t, size128+1)))
	assert.False(t, r.Load(0, "/nonexistent/disk.img"))
	assert.False(t, r.Load(0, ""))

	info, err := r.Info(0)
	require.NoError(t, err)
	assert.True(t, info.Present)
	assert.Equal(t, path, info.Config.ImagePath)
	assert.Equal(t, uint32(248826), info.Sectors)

	st, _, err := r.Exec(0, cdbTestUnitReady, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), st.Status)
}

func TestLoadUnsupportedMedia(t *testing.T) {
	db := drivedb.Default()
	hp, ok := db.LookupDrive("HP C1716C")
	require.True(t, ok)

	cfg := scsiUnit(0)
	cfg.Profile = hp
	r := newTestRegistry(t, cfg)

	// 128Mb media is not accepted by this drive
	assert.False(t, r.Load(0, makeImage(t, size128)))

	// 5.25" 650Mb is
	assert.True(t, r.Load(0, makeImage(t, 322117632)))

	info, err := r.Info(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(1024), info.BytesPerSector)
	assert.Equal(t, "HP", info.Vendor)
}

func TestImageLocked(t *testing.T) {
	r := newTestRegistry(t, scsiUnit(0), scsiUnit(1))
	path := makeImage(t, size128)

	assert.True(t, r.Load(0, path))
	assert.False(t, r.Load(1, path))

	// Mounting the same image again in the same unit is harmless
	assert.True(t, r.Load(0, path))

	require.NoError(t, r.Close(0))
	assert.True(t, r.Load(1, path))
}

func TestReplacedImageUnlocked(t *testing.T) {
	r := newTestRegistry(t, scsiUnit(0), scsiUnit(1))
	first, second := makeImage(t, size128), makeImage(t, size128)

	require.True(t, r.Load(0, first))
	require.True(t, r.Load(0, second))

	// The lock on the replaced image is gone, the new one is held
	assert.True(t, r.Load(1, first))
	assert.False(t, r.Load(1, second))
}

func TestReadOnlyImagesShareLock(t *testing.T) {
	a, b := scsiUnit(0), scsiUnit(1)
	a.ReadOnly, b.ReadOnly = true, true

	r := newTestRegistry(t, a, b)
	path := makeImage(t, size128)

	assert.True(t, r.Load(0, path))
	assert.True(t, r.Load(1, path))
}

func TestCloseAndReload(t *testing.T) {
	r, path := mountedUnit(t, scsiUnit(0))

	require.NoError(t, r.Close(0))

	info, err := r.Info(0)
	require.NoError(t, err)
	assert.False(t, info.Present)
	assert.Empty(t, info.Config.ImagePath)
	assert.Equal(t, path, info.Config.PrevImagePath)

	st, _, err := r.Exec(0, cdbTestUnitReady, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x02), st.SenseKey)
	assert.Equal(t, uint8(0x3a), st.ASC)

	require.True(t, r.Reload(0))

	// Reload signals the medium change exactly once
	st, _, err = r.Exec(0, cdbTestUnitReady, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x06), st.SenseKey)
	assert.Equal(t, uint8(0x28), st.ASC)

	st, _, err = r.Exec(0, cdbTestUnitReady, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), st.SenseKey)
}

func TestReloadWithoutPrevious(t *testing.T) {
	r := newTestRegistry(t, scsiUnit(0))
	assert.False(t, r.Reload(0))
}

func TestLoadRemembersPrevious(t *testing.T) {
	r, first := mountedUnit(t, scsiUnit(0))
	second := makeImage(t, size128)

	require.True(t, r.Load(0, second))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, second, snap[0].ImagePath)
	assert.Equal(t, first, snap[0].PrevImagePath)
}
