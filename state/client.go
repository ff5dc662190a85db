// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package state persists unit configurations and mounted image paths between runs.
package state

import (
	"encoding/json"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/dswarbrick/mo"
)

const (
	dbName = "mo.db"
	dbMode = 0600

	unitsBucketName = "units"
)

// Client stores unit state.
type Client interface {
	// SaveUnit saves the configuration of a unit, replacing any earlier record with the same id.
	SaveUnit(mo.DriveConfig) error
	// DeleteUnit deletes the record of a unit.
	DeleteUnit(id uint8) error
	// GetUnits returns every stored unit, ordered by id.
	GetUnits() ([]mo.DriveConfig, error)
	// Close closes the database.
	Close() error
}

type client struct {
	db *bolt.DB
}

// New opens (creating if necessary) the state database in dataDir.
func New(dataDir string) (Client, error) {
	return Open(filepath.Join(dataDir, dbName))
}

// Open opens (creating if necessary) the state database at path.
func Open(path string) (Client, error) {
	db, err := bolt.Open(path, dbMode, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open state database %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(unitsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cannot create buckets")
	}

	return &client{db: db}, nil
}

func unitKey(id uint8) string {
	return strconv.Itoa(int(id))
}

func (c *client) SaveUnit(cfg mo.DriveConfig) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return putObject(tx.Bucket([]byte(unitsBucketName)), unitKey(cfg.ID), &cfg)
	})
}

func (c *client) DeleteUnit(id uint8) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(unitsBucketName)).Delete([]byte(unitKey(id)))
	})
}

func (c *client) GetUnits() ([]mo.DriveConfig, error) {
	var units []mo.DriveConfig

	err := c.db.View(func(tx *bolt.Tx) error {
		return walk(tx.Bucket([]byte(unitsBucketName)), func(id string, data []byte) error {
			var cfg mo.DriveConfig
			if err := json.Unmarshal(data, &cfg); err != nil {
				return errors.Wrapf(err, "failed to unmarshal unit %s", id)
			}

			units = append(units, cfg)
			return nil
		})
	})

	return units, err
}

func (c *client) Close() error {
	return c.db.Close()
}

// SaveAll replaces the stored units with cfgs.
func SaveAll(c Client, cfgs []mo.DriveConfig) error {
	stored, err := c.GetUnits()
	if err != nil {
		return err
	}

	for _, s := range stored {
		if err := c.DeleteUnit(s.ID); err != nil {
			return errors.Wrapf(err, "failed to delete unit %d", s.ID)
		}
	}

	for _, cfg := range cfgs {
		if err := c.SaveUnit(cfg); err != nil {
			return errors.Wrapf(err, "failed to save unit %d", cfg.ID)
		}
	}

	return nil
}

// Merge overlays stored image paths onto configured units with the same id, so that a unit
// comes back with the image it had mounted (or most recently unmounted) on the last run.
// Configured paths take precedence.
func Merge(configured, stored []mo.DriveConfig) []mo.DriveConfig {
	out := append([]mo.DriveConfig(nil), configured...)

	for i := range out {
		for _, s := range stored {
			if s.ID != out[i].ID {
				continue
			}

			if out[i].ImagePath == "" {
				out[i].ImagePath = s.ImagePath
			}

			if out[i].PrevImagePath == "" {
				out[i].PrevImagePath = s.PrevImagePath
			}
		}
	}

	return out
}
