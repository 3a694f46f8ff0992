// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/servostat/pkg/scs"
)

// resultError converts a failed round trip into an ExitError
func resultError(res scs.Result) error {
	switch res.Outcome {
	case scs.RxSuccess:
		if res.Status != nil && res.Status.ErrorFlags() != 0 {
			return deviceError("servo %d reported fault: %s", res.Status.ID(), res.Status.ErrorFlags())
		}
		return nil
	case scs.RxTimeout, scs.RxCorrupt:
		return &ExitError{Code: ExitDevice, Err: fmt.Errorf("%s: %w", res.Outcome, res.Err)}
	default:
		return &ExitError{Code: ExitConnection, Err: fmt.Errorf("%s: %w", res.Outcome, res.Err)}
	}
}

// parseHexBytes accepts "01 02 0A", "01020a" or "0x01,0x02"
func parseHexBytes(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ",", "", ":", "", "0x", "", "0X", "").Replace(s)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex bytes %q: %w", s, err)
	}
	return data, nil
}

// parseIDList accepts "1,2,5-8"
func parseIDList(s string) ([]uint8, error) {
	var ids []uint8
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := parseID(lo)
		if err != nil {
			return nil, err
		}
		to := from
		if isRange {
			if to, err = parseID(hi); err != nil {
				return nil, err
			}
		}
		if to < from {
			return nil, fmt.Errorf("invalid id range %q", part)
		}
		for id := int(from); id <= int(to); id++ {
			ids = append(ids, uint8(id))
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no device ids in %q", s)
	}
	return ids, nil
}

func parseID(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil || v > scs.MaxDeviceID {
		return 0, fmt.Errorf("invalid device id %q (0-%d)", s, scs.MaxDeviceID)
	}
	return uint8(v), nil
}

// checkID rejects ids that are neither addressable nor broadcast
func checkID(id int, allowBroadcast bool) (uint8, error) {
	if id >= 0 && id <= scs.MaxDeviceID {
		return uint8(id), nil
	}
	if allowBroadcast && id == scs.BroadcastID {
		return scs.BroadcastID, nil
	}
	return 0, fmt.Errorf("invalid device id %d", id)
}

func checkByte(name string, v int) (byte, error) {
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("--%s must be 0-255, got %d", name, v)
	}
	return byte(v), nil
}
