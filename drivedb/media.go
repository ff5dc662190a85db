// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Known magneto-optical media formats.

package drivedb

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// NUM_MEDIA_TYPES is the number of rows in the media table, and the length of every drive
// profile's support vector.
const NUM_MEDIA_TYPES = 10

type MediaGeometry struct {
	Sectors        uint32
	BytesPerSector uint16
	Capacity       int64
	Label          string
}

var mediaTypes = [NUM_MEDIA_TYPES]MediaGeometry{
	// 3.5" standard M.O. disks
	{248826, 512, 127398912, "3.5\" 128Mb M.O. (ISO 10090)"},
	{446325, 512, 228518400, "3.5\" 230Mb M.O. (ISO 13963)"},
	{1041500, 512, 533248000, "3.5\" 540Mb M.O. (ISO 15498)"},
	{310352, 2048, 635600896, "3.5\" 640Mb M.O. (ISO 15498)"},
	{605846, 2048, 1240772608, "3.5\" 1.3Gb M.O. (GigaMO)"},
	{1063146, 2048, 2177323008, "3.5\" 2.3Gb M.O. (GigaMO 2)"},
	// 5.25" M.O. disks
	{573624, 512, 293695488, "5.25\" 600Mb M.O."},
	{314568, 1024, 322117632, "5.25\" 650Mb M.O."},
	{904995, 512, 463357440, "5.25\" 1Gb M.O."},
	{637041, 1024, 652329984, "5.25\" 1.3Gb M.O."},
}

// Geometry returns the media table row at index. The table is compiled in, so an index
// outside of it is a programming error and panics.
func Geometry(index int) MediaGeometry {
	if index < 0 || index >= NUM_MEDIA_TYPES {
		panic(fmt.Sprintf("drivedb: media index %d out of range", index))
	}

	return mediaTypes[index]
}

// Geometries returns a copy of the media table.
func Geometries() []MediaGeometry {
	return append([]MediaGeometry(nil), mediaTypes[:]...)
}

// GeometryForSize returns the index of the first media table row whose capacity equals size
// exactly. Rows are searched in table order, which makes the first match authoritative.
func GeometryForSize(size int64) (int, bool) {
	for i, m := range mediaTypes {
		if m.Capacity == size {
			return i, true
		}
	}

	return -1, false
}

func validateMedia() error {
	var result *multierror.Error

	for i, m := range mediaTypes {
		if m.Capacity != int64(m.Sectors)*int64(m.BytesPerSector) {
			result = multierror.Append(result, fmt.Errorf("media %d (%s): capacity %d != %d sectors x %d bytes",
				i, m.Label, m.Capacity, m.Sectors, m.BytesPerSector))
		}
	}

	return result.ErrorOrNil()
}
