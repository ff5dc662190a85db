// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/mo"
)

func TestSaveAndGetUnits(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	units, err := c.GetUnits()
	require.NoError(t, err)
	assert.Empty(t, units)

	a := mo.DriveConfig{ID: 0, Bus: mo.BusATAPI, Mode: mo.ModePIO | mo.ModeDMA, IDEChannel: 1, ImagePath: "/a.img"}
	b := mo.DriveConfig{ID: 2, Bus: mo.BusUSB, Mode: mo.ModePIO, ReadOnly: true, Profile: 3, PrevImagePath: "/b.img"}

	require.NoError(t, c.SaveUnit(b))
	require.NoError(t, c.SaveUnit(a))

	units, err = c.GetUnits()
	require.NoError(t, err)
	assert.Equal(t, []mo.DriveConfig{a, b}, units)

	a.ImagePath = "/c.img"
	require.NoError(t, c.SaveUnit(a))
	require.NoError(t, c.DeleteUnit(2))

	units, err = c.GetUnits()
	require.NoError(t, err)
	assert.Equal(t, []mo.DriveConfig{a}, units)
}

func TestStatePersists(t *testing.T) {
	dir := t.TempDir()

	c, err := New(dir)
	require.NoError(t, err)

	cfgs := []mo.DriveConfig{
		{ID: 1, Bus: mo.BusSCSI, Mode: mo.ModePIO, SCSIID: 5, ImagePath: "/x.img"},
		{ID: 3, Bus: mo.BusDisabled},
	}
	require.NoError(t, SaveAll(c, cfgs))
	require.NoError(t, c.Close())

	c, err = New(dir)
	require.NoError(t, err)
	defer c.Close()

	units, err := c.GetUnits()
	require.NoError(t, err)
	assert.Equal(t, cfgs, units)

	// Units no longer passed to SaveAll are dropped
	require.NoError(t, SaveAll(c, cfgs[:1]))
	units, err = c.GetUnits()
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestMerge(t *testing.T) {
	configured := []mo.DriveConfig{
		{ID: 0, Bus: mo.BusSCSI, Mode: mo.ModePIO},
		{ID: 1, Bus: mo.BusSCSI, Mode: mo.ModePIO, ImagePath: "/fixed.img"},
	}
	stored := []mo.DriveConfig{
		{ID: 0, ImagePath: "/last.img", PrevImagePath: "/older.img"},
		{ID: 1, ImagePath: "/other.img", PrevImagePath: "/prev.img"},
		{ID: 2, ImagePath: "/gone.img"},
	}

	merged := Merge(configured, stored)
	require.Len(t, merged, 2)
	assert.Equal(t, "/last.img", merged[0].ImagePath)
	assert.Equal(t, "/older.img", merged[0].PrevImagePath)
	assert.Equal(t, "/fixed.img", merged[1].ImagePath)
	assert.Equal(t, "/prev.img", merged[1].PrevImagePath)

	// Input is not modified
	assert.Empty(t, configured[0].ImagePath)
}
