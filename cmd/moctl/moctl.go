// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// MO drive emulator control utility.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/golang/glog"
	gflag "github.com/jessevdk/go-flags"

	"github.com/dswarbrick/mo"
	"github.com/dswarbrick/mo/config"
	"github.com/dswarbrick/mo/drivedb"
	"github.com/dswarbrick/mo/scsi"
	"github.com/dswarbrick/mo/state"
	"github.com/dswarbrick/mo/utils"
)

type globalOptions struct {
	Verbosity int    `short:"v" long:"verbosity" description:"glog verbosity level"`
	DriveDb   string `long:"drivedb" value-name:"FILE" description:"YAML drive database extending the compiled-in one"`
}

var global globalOptions

func openDriveDb(path string) (drivedb.DriveDb, error) {
	if path == "" {
		return drivedb.Default(), nil
	}

	return drivedb.OpenDriveDb(path)
}

func lookupProfile(db *drivedb.DriveDb, ident string) (int, error) {
	if ident == "" {
		return drivedb.GENERIC_PROFILE, nil
	}

	if i, ok := db.LookupDrive(ident); ok {
		return i, nil
	}

	return 0, fmt.Errorf("unknown drive %q", ident)
}

type logAdapter struct{}

func (logAdapter) Interrupt(unit uint8) {
	glog.V(2).Infof("unit %d: interrupt", unit)
}

type catalogCommand struct{}

func (c *catalogCommand) Execute(args []string) error {
	db, err := openDriveDb(global.DriveDb)
	if err != nil {
		return err
	}

	fmt.Println("Media types:")

	for i, m := range drivedb.Geometries() {
		fmt.Printf("  %d  %-32s %8d x %4d bytes  %s\n", i, m.Label, m.Sectors, m.BytesPerSector,
			utils.FormatBytes(uint64(m.Capacity)))
	}

	fmt.Println("\nDrive profiles:")

	for i, p := range db.Drives {
		var media []string

		for m, ok := range p.SupportedMedia {
			if ok {
				media = append(media, strconv.Itoa(m))
			}
		}

		fmt.Printf("  %2d  %-8s %-16s %-4s  media %s\n", i, p.Vendor, p.Model, p.Revision, strings.Join(media, ","))
	}

	return nil
}

type unitOptions struct {
	Image    string `short:"i" long:"image" required:"true" value-name:"FILE" description:"Image file to mount"`
	Profile  string `short:"p" long:"profile" value-name:"\"VENDOR MODEL\"" description:"Drive profile (default: generic)"`
	Bus      string `short:"b" long:"bus" default:"scsi" choice:"atapi" choice:"scsi" choice:"usb" description:"Bus the drive is attached to"`
	ReadOnly bool   `short:"r" long:"read-only" description:"Mount the image read-only"`
}

// open builds a single-unit registry with the image mounted.
func (o *unitOptions) open() (*mo.Registry, error) {
	db, err := openDriveDb(global.DriveDb)
	if err != nil {
		return nil, err
	}

	profile, err := lookupProfile(&db, o.Profile)
	if err != nil {
		return nil, err
	}

	bus, err := mo.ParseBusType(o.Bus)
	if err != nil {
		return nil, err
	}

	r, err := mo.NewRegistry(db, []mo.DriveConfig{{
		ID:       0,
		Bus:      bus,
		Mode:     mo.ModePIO | mo.ModeDMA,
		ReadOnly: o.ReadOnly,
		Profile:  profile,
	}}, logAdapter{})
	if err != nil {
		return nil, err
	}

	if !r.Load(0, o.Image) {
		r.Shutdown()
		return nil, fmt.Errorf("cannot mount %s (run with -v 1 for details)", o.Image)
	}

	return r, nil
}

func exec(r *mo.Registry, cdb []byte) ([]byte, error) {
	st, data, err := r.Exec(0, cdb, nil)
	if err != nil {
		return nil, err
	}

	if st.SenseKey != scsi.SENSE_NO_SENSE {
		return data, fmt.Errorf("command %#02x failed: sense key %#02x, asc %#02x, ascq %#02x", cdb[0],
			st.SenseKey, st.ASC, st.ASCQ)
	}

	return data, nil
}

type probeCommand struct {
	unitOptions
}

func (c *probeCommand) Execute(args []string) error {
	r, err := c.open()
	if err != nil {
		return err
	}

	defer r.Shutdown()

	info, err := r.Info(0)
	if err != nil {
		return err
	}

	fmt.Printf("Drive:    %s %s %s (%s)\n", info.Vendor, info.Model, info.Revision, info.Config.Bus)
	fmt.Printf("Medium:   %s\n", info.Media)

	if _, err := exec(r, []byte{scsi.SCSI_TEST_UNIT_READY, 0, 0, 0, 0, 0}); err != nil {
		return err
	}

	inq, err := exec(r, []byte{scsi.SCSI_INQUIRY, 0, 0, 0, scsi.INQ_REPLY_LEN, 0})
	if err != nil {
		return err
	}

	fmt.Printf("Inquiry:  %q %q %q\n", inq[8:16], inq[16:32], inq[32:36])

	capacity, err := exec(r, []byte{scsi.SCSI_READ_CAPACITY_10, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	if err != nil {
		return err
	}

	last, bs := binary.BigEndian.Uint32(capacity[0:4]), binary.BigEndian.Uint32(capacity[4:8])
	fmt.Printf("Capacity: %d sectors x %d bytes (%s)\n", last+1, bs, utils.FormatBytes(uint64(last+1)*uint64(bs)))

	pages, err := exec(r, []byte{scsi.SCSI_MODE_SENSE_6, 0x08, scsi.ALL_PAGES, 0, 0xff, 0})
	if err != nil {
		return err
	}

	fmt.Printf("Mode pages (write protect %v):\n%s", pages[2]&0x80 != 0, hex.Dump(pages[4:]))

	if info.Config.Bus == mo.BusATAPI {
		id, err := r.Identify(0)
		if err != nil {
			return err
		}

		fmt.Printf("Identify:\n%s", hex.Dump(id[:128]))
	}

	return nil
}

type readCommand struct {
	unitOptions
	LBA   uint32 `short:"l" long:"lba" description:"First sector"`
	Count uint16 `short:"c" long:"count" default:"1" description:"Number of sectors"`
}

func (c *readCommand) Execute(args []string) error {
	r, err := c.open()
	if err != nil {
		return err
	}

	defer r.Shutdown()

	cdb := make([]byte, 10)
	cdb[0] = scsi.SCSI_READ_10
	binary.BigEndian.PutUint32(cdb[2:6], c.LBA)
	binary.BigEndian.PutUint16(cdb[7:9], c.Count)

	data, err := exec(r, cdb)
	if err != nil {
		return err
	}

	fmt.Print(hex.Dump(data))

	return nil
}

type runCommand struct {
	Config string `short:"c" long:"config" required:"true" value-name:"FILE" description:"Unit configuration file"`
	State  string `short:"s" long:"state" value-name:"FILE" description:"State database remembering mounted images"`
}

func (c *runCommand) Execute(args []string) error {
	f, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	if global.DriveDb != "" {
		f.DriveDb = global.DriveDb
	}

	db, err := f.OpenDriveDb()
	if err != nil {
		return err
	}

	cfgs, err := f.DriveConfigs(&db)
	if err != nil {
		return err
	}

	var store state.Client

	if c.State != "" {
		if store, err = state.Open(c.State); err != nil {
			return err
		}

		defer store.Close()

		stored, err := store.GetUnits()
		if err != nil {
			return err
		}

		cfgs = state.Merge(cfgs, stored)
	}

	r, err := mo.NewRegistry(db, cfgs, logAdapter{})
	if err != nil {
		return err
	}

	for _, cfg := range cfgs {
		info, err := r.Info(cfg.ID)
		if err != nil {
			fmt.Printf("unit %d: %s\n", cfg.ID, cfg.Bus)
			continue
		}

		if !info.Present && info.Config.PrevImagePath != "" && r.Reload(cfg.ID) {
			if info, err = r.Info(cfg.ID); err != nil {
				return err
			}
		}

		status := "no medium"
		if info.Present {
			status = fmt.Sprintf("%s (%s)", info.Config.ImagePath, info.Media)

			if _, _, err := r.Exec(cfg.ID, []byte{scsi.SCSI_TEST_UNIT_READY, 0, 0, 0, 0, 0}, nil); err != nil {
				status += ": " + err.Error()
			}
		}

		fmt.Printf("unit %d: %s %s %s: %s\n", cfg.ID, info.Config.Bus, info.Vendor, info.Model, status)
	}

	if store != nil {
		if err := state.SaveAll(store, r.Snapshot()); err != nil {
			r.Shutdown()
			return err
		}
	}

	return r.Shutdown()
}

func main() {
	fmt.Println("Go MO drive emulator control utility")
	fmt.Printf("Built with %s on %s (%s)\n\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	parser := gflag.NewParser(&global, gflag.Default)
	parser.AddCommand("catalog", "List media and drive profiles", "", &catalogCommand{})
	parser.AddCommand("probe", "Mount an image and identify it", "", &probeCommand{})
	parser.AddCommand("read", "Hex dump sectors of an image", "", &readCommand{})
	parser.AddCommand("run", "Mount the configured units", "", &runCommand{})

	parser.CommandHandler = func(cmd gflag.Commander, args []string) error {
		flag.Set("logtostderr", "true")
		flag.Set("v", strconv.Itoa(global.Verbosity))

		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*gflag.Error); ok && e.Type == gflag.ErrHelp {
			os.Exit(0)
		}

		if _, ok := err.(*gflag.Error); !ok {
			fmt.Fprintln(os.Stderr, err)
		}

		os.Exit(1)
	}
}
