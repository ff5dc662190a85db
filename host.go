// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package mo

import (
	"github.com/pkg/errors"
)

// Exec runs one command on unit id to completion, acting as a simple polled host adapter. out
// supplies the data of a DATA OUT command. Data returned by the unit is collected and
// returned along with the status. Emulated time is advanced for unit id only.
func (r *Registry) Exec(id uint8, cdb []byte, out []byte) (StatusReport, []byte, error) {
	u, err := r.unit(id)
	if err != nil {
		return StatusReport{}, nil, err
	}

	if err := r.Command(id, cdb); err != nil {
		return StatusReport{}, nil, err
	}

	var (
		in    []byte
		chunk = make([]byte, BufferSize)
	)

	for {
		switch ph := u.proc.Phase(); ph {
		case PhaseDataIn:
			n, err := r.Transfer(id, chunk)
			if err != nil {
				return StatusReport{}, in, err
			}

			in = append(in, chunk[:n]...)
		case PhaseDataOut:
			if len(out) == 0 {
				u.proc.abort()
				return StatusReport{}, in, errors.Errorf("unit %d: command wants more data than supplied", id)
			}

			n, err := r.Transfer(id, out)
			if err != nil {
				return StatusReport{}, in, err
			}

			out = out[n:]
		case PhaseCompletionPending:
			u.proc.Advance(u.proc.timer.Remaining())
		case PhaseStatusDone, PhaseErrorReported:
			st, err := r.Status(id)
			return st, in, err
		default:
			return StatusReport{}, in, errors.Errorf("unit %d: unexpected phase %s", id, ph)
		}
	}
}
