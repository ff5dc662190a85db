// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package mo

import (
	"encoding/binary"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/mo/scsi"
)

func TestReadWrite(t *testing.T) {
	r, path := mountedUnit(t, scsiUnit(0))
	data := pattern(1024, 7)

	st, _, err := r.Exec(0, write10(10, 2), data)
	require.NoError(t, err)
	require.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	st, got, err := r.Exec(0, read10(10, 2), nil)
	require.NoError(t, err)
	require.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)
	assert.Equal(t, data, got)

	// Image offset is sector * sector size
	img, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, img[10*512:12*512])

	// READ(6) and READ(12) address the same sectors
	_, got, err = r.Exec(0, []byte{scsi.SCSI_READ_6, 0, 0, 10, 1, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, data[:512], got)

	_, got, err = r.Exec(0, []byte{scsi.SCSI_READ_12, 0, 0, 0, 0, 11, 0, 0, 0, 1, 0, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, data[512:], got)
}

func TestWriteProtected(t *testing.T) {
	cfg := scsiUnit(0)
	cfg.ReadOnly = true
	r, path := mountedUnit(t, cfg)

	st, _, err := r.Exec(0, write10(0, 1), pattern(512, 1))
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_CHECK_CONDITION), st.Status)
	assert.Equal(t, uint8(scsi.SENSE_DATA_PROTECT), st.SenseKey)
	assert.Equal(t, uint8(scsi.ASC_WRITE_PROTECTED), st.ASC)

	st, _, err = r.Exec(0, blockCDB(scsi.SCSI_ERASE_10, 0, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SENSE_DATA_PROTECT), st.SenseKey)

	img, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 512), img[:512])

	// Device specific parameter reports write protection
	_, data, err := r.Exec(0, []byte{scsi.SCSI_MODE_SENSE_6, 0x08, scsi.ALL_PAGES, 0, 0xff, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), data[2])
}

func TestTransferLimit(t *testing.T) {
	r, _ := mountedUnit(t, scsiUnit(0))

	st, _, err := r.Exec(0, read10(0, 65), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SENSE_ILLEGAL_REQUEST), st.SenseKey)
	assert.Equal(t, uint8(scsi.ASC_INVALID_FIELD_IN_CDB), st.ASC)

	// Zero length WRITE(6) means 256 sectors, which does not fit either
	st, _, err = r.Exec(0, []byte{scsi.SCSI_WRITE_6, 0, 0, 0, 0, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.ASC_INVALID_FIELD_IN_CDB), st.ASC)

	st, data, err := r.Exec(0, read10(0, 64), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)
	assert.Len(t, data, BufferSize)
}

func TestAddressRange(t *testing.T) {
	r, _ := mountedUnit(t, scsiUnit(0))

	st, _, err := r.Exec(0, read10(248825, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SENSE_ILLEGAL_REQUEST), st.SenseKey)
	assert.Equal(t, uint8(scsi.ASC_LBA_OUT_OF_RANGE), st.ASC)

	st, _, err = r.Exec(0, read10(248825, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	st, _, err = r.Exec(0, []byte{scsi.SCSI_SEEK_6, 0x1f, 0xff, 0xff, 0, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.ASC_LBA_OUT_OF_RANGE), st.ASC)
}

func TestNoMedium(t *testing.T) {
	r := newTestRegistry(t, scsiUnit(0))

	for _, cdb := range [][]byte{cdbTestUnitReady, read10(0, 1), write10(0, 1), {scsi.SCSI_READ_CAPACITY_10, 0, 0, 0, 0, 0, 0, 0, 0, 0}} {
		st, _, err := r.Exec(0, cdb, pattern(512, 0))
		require.NoError(t, err)
		assert.Equal(t, uint8(scsi.SENSE_NOT_READY), st.SenseKey)
		assert.Equal(t, uint8(scsi.ASC_MEDIUM_NOT_PRESENT), st.ASC)
	}

	// INQUIRY works without medium
	st, _, err := r.Exec(0, []byte{scsi.SCSI_INQUIRY, 0, 0, 0, 36, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	// An empty drive reports NOT READY through REQUEST SENSE as well
	_, data, err := r.Exec(0, []byte{scsi.SCSI_REQUEST_SENSE, 0, 0, 0, 18, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SENSE_NOT_READY), data[2])
}

func TestRequestSense(t *testing.T) {
	r, _ := mountedUnit(t, scsiUnit(0))

	st, _, err := r.Exec(0, read10(300000, 1), nil)
	require.NoError(t, err)
	require.Equal(t, uint8(scsi.SAM_STAT_CHECK_CONDITION), st.Status)

	_, data, err := r.Exec(0, []byte{scsi.SCSI_REQUEST_SENSE, 0, 0, 0, 252, 0}, nil)
	require.NoError(t, err)
	require.Len(t, data, scsi.FIXED_SENSE_LEN)
	assert.Equal(t, uint8(scsi.SENSE_ILLEGAL_REQUEST), data[2])
	assert.Equal(t, uint8(10), data[7])
	assert.Equal(t, uint8(scsi.ASC_LBA_OUT_OF_RANGE), data[12])

	// Reading the sense clears it
	_, data, err = r.Exec(0, []byte{scsi.SCSI_REQUEST_SENSE, 0, 0, 0, 4, 0}, nil)
	require.NoError(t, err)
	require.Len(t, data, 4)
	assert.Equal(t, uint8(0x70), data[0])
	assert.Equal(t, uint8(scsi.SENSE_NO_SENSE), data[2])
}

func TestInquiry(t *testing.T) {
	r, _ := mountedUnit(t, scsiUnit(0))

	_, data, err := r.Exec(0, []byte{scsi.SCSI_INQUIRY, 0, 0, 0, 0xff, 0}, nil)
	require.NoError(t, err)
	require.Len(t, data, scsi.INQ_REPLY_LEN)
	assert.Equal(t, uint8(scsi.TYPE_OPTICAL), data[0])
	assert.Equal(t, uint8(0x80), data[1])
	assert.Equal(t, uint8(0x02), data[2])
	assert.Equal(t, "86BOX", strings.TrimSpace(string(data[8:16])))
	assert.Equal(t, "MAGNETO OPTICAL", strings.TrimSpace(string(data[16:32])))
	assert.Equal(t, "1.00", string(data[32:36]))

	_, data, err = r.Exec(0, []byte{scsi.SCSI_INQUIRY, 0, 0, 0, 5, 0}, nil)
	require.NoError(t, err)
	assert.Len(t, data, 5)

	_, data, err = r.Exec(0, []byte{scsi.SCSI_INQUIRY, 1, scsi.VPD_SUPPORTED_PAGES, 0, 0xff, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x80, 0x83}, data[4:])

	_, data, err = r.Exec(0, []byte{scsi.SCSI_INQUIRY, 1, scsi.VPD_UNIT_SERIAL, 0, 0xff, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, "MO000000", string(data[4:]))

	_, data, err = r.Exec(0, []byte{scsi.SCSI_INQUIRY, 1, scsi.VPD_DEVICE_ID, 0, 0xff, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x02), data[4])
	assert.True(t, strings.HasPrefix(string(data[8:]), "86BOX   MAGNETO OPTICAL"))

	for _, cdb := range [][]byte{
		{scsi.SCSI_INQUIRY, 1, 0x81, 0, 0xff, 0},
		{scsi.SCSI_INQUIRY, 0, 0x80, 0, 0xff, 0},
	} {
		st, _, err := r.Exec(0, cdb, nil)
		require.NoError(t, err)
		assert.Equal(t, uint8(scsi.ASC_INVALID_FIELD_IN_CDB), st.ASC)
	}
}

func TestReadCapacity(t *testing.T) {
	r := newTestRegistry(t, scsiUnit(0))
	require.True(t, r.Load(0, makeImage(t, 635600896)))

	_, data, err := r.Exec(0, []byte{scsi.SCSI_READ_CAPACITY_10, 0, 0, 0, 0, 0, 0, 0, 0, 0}, nil)
	require.NoError(t, err)
	require.Len(t, data, 8)
	assert.Equal(t, uint32(310351), binary.BigEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(2048), binary.BigEndian.Uint32(data[4:8]))
}

func TestEraseAndVerify(t *testing.T) {
	r, path := mountedUnit(t, scsiUnit(0))

	st, _, err := r.Exec(0, write10(100, 4), pattern(2048, 3))
	require.NoError(t, err)
	require.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	st, _, err = r.Exec(0, blockCDB(scsi.SCSI_ERASE_10, 101, 2), nil)
	require.NoError(t, err)
	require.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	img, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pattern(512, 3), img[100*512:101*512])
	assert.Equal(t, make([]byte, 1024), img[101*512:103*512])
	assert.Equal(t, pattern(2048, 3)[1536:], img[103*512:104*512])

	// Erase is not bounded by the buffer
	st, _, err = r.Exec(0, blockCDB(scsi.SCSI_ERASE_10, 0, 200), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	st, _, err = r.Exec(0, blockCDB(scsi.SCSI_VERIFY_10, 0, 1000), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	cdb := blockCDB(scsi.SCSI_VERIFY_10, 0, 1)
	cdb[1] = 0x02
	st, _, err = r.Exec(0, cdb, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.ASC_INVALID_FIELD_IN_CDB), st.ASC)
}

func TestWriteAndVerify(t *testing.T) {
	r, _ := mountedUnit(t, scsiUnit(0))

	st, _, err := r.Exec(0, blockCDB(scsi.SCSI_WRITE_AND_VERIFY_10, 5, 1), pattern(512, 9))
	require.NoError(t, err)
	require.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	_, got, err := r.Exec(0, read10(5, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, pattern(512, 9), got)
}

func TestSeek(t *testing.T) {
	r, _ := mountedUnit(t, scsiUnit(0))

	st, _, err := r.Exec(0, blockCDB(scsi.SCSI_SEEK_10, 1234, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)
	assert.Equal(t, uint32(1234), r.units[0].proc.seekPos)

	st, _, err = r.Exec(0, []byte{scsi.SCSI_REZERO_UNIT, 0, 0, 0, 0, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)
	assert.Zero(t, r.units[0].proc.seekPos)
}

func TestEjectAndLoad(t *testing.T) {
	r, _ := mountedUnit(t, scsiUnit(0))

	prevent := []byte{scsi.SCSI_PREVENT_ALLOW_REMOVAL, 0, 0, 0, 1, 0}
	allow := []byte{scsi.SCSI_PREVENT_ALLOW_REMOVAL, 0, 0, 0, 0, 0}
	eject := []byte{scsi.SCSI_START_STOP_UNIT, 0, 0, 0, 0x02, 0}
	load := []byte{scsi.SCSI_START_STOP_UNIT, 0, 0, 0, 0x03, 0}

	st, _, err := r.Exec(0, prevent, nil)
	require.NoError(t, err)
	require.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	st, _, err = r.Exec(0, eject, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SENSE_ILLEGAL_REQUEST), st.SenseKey)
	assert.Equal(t, uint8(scsi.ASC_MEDIUM_REMOVAL_PREVENTED), st.ASC)
	assert.Equal(t, uint8(scsi.ASCQ_MEDIUM_REMOVAL_PREVENTED), st.ASCQ)

	info, _ := r.Info(0)
	assert.True(t, info.Present)

	_, _, err = r.Exec(0, allow, nil)
	require.NoError(t, err)

	st, _, err = r.Exec(0, eject, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	info, _ = r.Info(0)
	assert.False(t, info.Present)

	st, _, err = r.Exec(0, load, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)

	st, _, err = r.Exec(0, cdbTestUnitReady, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SENSE_UNIT_ATTENTION), st.SenseKey)

	st, _, err = r.Exec(0, cdbTestUnitReady, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status)
}

func TestMiscNoDataCommands(t *testing.T) {
	r, _ := mountedUnit(t, scsiUnit(0))

	for _, cdb := range [][]byte{
		{scsi.SCSI_RESERVE_6, 0, 0, 0, 0, 0},
		{scsi.SCSI_RELEASE_6, 0, 0, 0, 0, 0},
		{scsi.SCSI_SEND_DIAGNOSTIC, 0x04, 0, 0, 0, 0},
		{scsi.SCSI_FORMAT_UNIT, 0, 0, 0, 0, 0},
		{scsi.SCSI_SYNCHRONIZE_CACHE_10, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	} {
		st, _, err := r.Exec(0, cdb, nil)
		require.NoError(t, err)
		assert.Equal(t, uint8(scsi.SAM_STAT_GOOD), st.Status, "opcode %#02x", cdb[0])
	}
}

func TestMediumChangeDuringWrite(t *testing.T) {
	// Capacity of a 3.5" 640Mb disk, 2048 bytes per sector
	const size640 = 635600896

	r := newTestRegistry(t, scsiUnit(0))
	require.True(t, r.Load(0, makeImage(t, size640)))

	data := pattern(2048, 3)

	// finish sends the rest of a one-sector write after swap has run, and returns the status
	finish := func(lba uint32, swap func()) StatusReport {
		require.NoError(t, r.Command(0, write10(lba, 1)))

		n, err := r.Transfer(0, data[:1000])
		require.NoError(t, err)
		require.Equal(t, 1000, n)

		swap()

		n, err = r.Transfer(0, data[1000:])
		require.NoError(t, err)
		require.Equal(t, 1048, n)

		r.Advance(time.Millisecond)

		st, err := r.Status(0)
		require.NoError(t, err)
		assert.Equal(t, uint8(scsi.SAM_STAT_CHECK_CONDITION), st.Status)

		return st
	}

	// Sector beyond the end of the new medium
	small := makeImage(t, size128)
	st := finish(300000, func() { require.True(t, r.Load(0, small)) })
	assert.Equal(t, uint8(scsi.SENSE_ILLEGAL_REQUEST), st.SenseKey)
	assert.Equal(t, uint8(scsi.ASC_LBA_OUT_OF_RANGE), st.ASC)

	fi, err := os.Stat(small)
	require.NoError(t, err)
	assert.Equal(t, int64(size128), fi.Size())

	// In range, but the sector size no longer matches the buffered data
	require.True(t, r.Load(0, makeImage(t, size640)))
	st = finish(0, func() { require.True(t, r.Load(0, small)) })
	assert.Equal(t, uint8(scsi.SENSE_UNIT_ATTENTION), st.SenseKey)
	assert.Equal(t, uint8(scsi.ASC_MEDIUM_MAY_HAVE_CHANGED), st.ASC)

	img, err := os.ReadFile(small)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 2048), img[:2048])

	// Medium removed
	require.True(t, r.Load(0, makeImage(t, size640)))
	st = finish(0, func() { require.NoError(t, r.Close(0)) })
	assert.Equal(t, uint8(scsi.SENSE_NOT_READY), st.SenseKey)
	assert.Equal(t, uint8(scsi.ASC_MEDIUM_NOT_PRESENT), st.ASC)

	// The small image still mounts
	assert.True(t, r.Load(0, small))
}
