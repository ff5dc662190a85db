// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// MO drive table to YAML drive database converter.
//
// Without an input file the compiled-in table is written, as a starting point for a local
// drive database. With --in, a C initializer table of the form
//
//	{"VENDOR", "MODEL", "REV", {1, 1, 0, ...}},
//
// is converted instead.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/dswarbrick/mo/drivedb"
	gflag "github.com/jessevdk/go-flags"
)

// parseDriveTable extracts drive profiles from the brace-initialized tables in src. Entries
// with fewer media flags than there are media types are zero filled, as in C.
func parseDriveTable(src io.Reader) ([]drivedb.DriveProfile, error) {
	var (
		s       scanner.Scanner
		depth   int
		strs    []string
		media   []bool
		profile []drivedb.DriveProfile
	)

	s.Init(src)
	s.Error = func(*scanner.Scanner, string) {}

	// Extremely simple state machine like processing of tokens.
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		switch {
		case tok == '{':
			depth++
		case tok == '}':
			if depth == 2 && len(strs) == 3 {
				if len(media) > drivedb.NUM_MEDIA_TYPES {
					return nil, fmt.Errorf("line %d: %d media flags, at most %d allowed", s.Position.Line,
						len(media), drivedb.NUM_MEDIA_TYPES)
				}

				p := drivedb.DriveProfile{Vendor: strs[0], Model: strs[1], Revision: strs[2]}
				copy(p.SupportedMedia[:], media)
				profile = append(profile, p)
			}

			if depth == 2 {
				strs, media = nil, nil
			}

			if depth > 0 {
				depth--
			}
		case tok == scanner.String && depth == 2:
			if v, err := strconv.Unquote(s.TokenText()); err == nil {
				strs = append(strs, v)
			}
		case tok == scanner.Int && depth == 3:
			media = append(media, s.TokenText() != "0")
		}
	}

	return profile, nil
}

func main() {
	var opts struct {
		In  string `long:"in" value-name:"FILE" description:"C header holding a drive table (default: compiled-in table)"`
		Out string `long:"out" default:"drivedb.yaml" description:"Output .yaml filename"`
	}

	parser := gflag.NewParser(&opts, gflag.Default)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*gflag.Error); ok && e.Type == gflag.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	db := drivedb.Default()
	header := "# This file was generated from the compiled-in drive table\n"

	if opts.In != "" {
		f, err := os.Open(opts.In)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot read drive table: %v\n", err)
			os.Exit(1)
		}

		defer f.Close()
		fmt.Printf("Reading from local file %s\n", f.Name())

		drives, err := parseDriveTable(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot parse drive table: %v\n", err)
			os.Exit(1)
		}

		db = drivedb.DriveDb{Drives: drives}
		header = "# This file was generated from:\n# " + strings.TrimSpace(opts.In) + "\n"
	}

	fmt.Printf("Converted %d entries\n", len(db.Drives))

	if err := db.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	out, err := db.Marshal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding yaml: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(opts.Out, append([]byte(header), out...), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot write output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully wrote output to %s\n", opts.Out)
}
