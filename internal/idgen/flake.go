// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package idgen

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sony/sonyflake"
)

// defaultFlakeGenerator is built on first use so that importing idgen
// never depends on the host's network configuration.
var defaultFlakeGenerator = sync.OnceValue(func() *SonyFlakeGenerator {
	gen, err := newFlakeGenerator(nil)
	if err != nil {
		slog.Warn("Sonyflake unavailable, using random ids", slog.Any("error", err))
		return &SonyFlakeGenerator{}
	}
	return gen
})

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// newFlakeGenerator uses machineID, or sonyflake's private IP default when
// it is nil. If that fails the machine id is a hash of the hostname.
func newFlakeGenerator(machineID func() (uint16, error)) (*SonyFlakeGenerator, error) {
	settings := sonyflake.Settings{
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: machineID,
	}

	sf, err := sonyflake.New(settings)
	if err != nil && !errors.Is(err, sonyflake.ErrStartTimeAhead) {
		settings.MachineID = hostnameMachineID
		sf, err = sonyflake.New(settings)
	}
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

func hostnameMachineID() (uint16, error) {
	host, err := os.Hostname()
	if err != nil {
		return 0, nil
	}
	return uint16(xxhash.Sum64String(host)), nil
}

// NextID returns a positive int64 that'll increase roughly in time order.
func (sf *SonyFlakeGenerator) NextID() int64 {
	if sf.sf == nil {
		return rand.Int64()
	}
	v, err := sf.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// NextBase32ID returns NextID as lowercase unpadded base32.
func (sf *SonyFlakeGenerator) NextBase32ID() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(sf.NextID()))
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:]))
}

// NextBase32ID uses a process-wide generator created on first call.
func NextBase32ID() string {
	return defaultFlakeGenerator().NextBase32ID()
}
