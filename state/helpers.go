// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package state

import (
	"encoding/json"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

func putObject(bucket *bolt.Bucket, key string, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal object with key %q", key)
	}

	if err := bucket.Put([]byte(key), data); err != nil {
		return errors.Wrapf(err, "failed to insert object with key %q", key)
	}

	return nil
}

func walk(bucket *bolt.Bucket, callback func(id string, data []byte) error) error {
	cursor := bucket.Cursor()

	for id, data := cursor.First(); id != nil; id, data = cursor.Next() {
		if err := callback(string(id), data); err != nil {
			return err
		}
	}

	return nil
}
