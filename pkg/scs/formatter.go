// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"fmt"
	"strings"
)

// FormatInstruction formats an instruction frame into a human-readable string
func FormatInstruction(f *InstructionFrame) string {
	result := fmt.Sprintf("%s (0x%02X) %s len=%d sum=0x%02X\n",
		f.Opcode(), uint8(f.Opcode()), FormatID(f.ID()), f.Length(), f.Checksum())
	result += formatParams(f.Opcode(), f.params)
	return result
}

// FormatStatus formats a status frame into a human-readable string
func FormatStatus(f *StatusFrame) string {
	result := fmt.Sprintf("STATUS %s len=%d error=%s sum=0x%02X\n",
		FormatID(f.ID()), f.Length(), f.ErrorFlags(), f.Checksum())
	if len(f.params) > 0 {
		result += "  Params: " + HexDump(f.params) + "\n"
	}
	return result
}

// FormatResult formats a round trip result on one line
func FormatResult(r Result) string {
	switch {
	case r.Outcome == RxSuccess && r.Status == nil:
		return fmt.Sprintf("%s (broadcast, no reply) in %s", r.Outcome, r.Elapsed)
	case r.Outcome == RxSuccess:
		s := fmt.Sprintf("%s from %s in %s", r.Outcome, FormatID(r.Status.ID()), r.Elapsed)
		if r.Status.ErrorFlags() != 0 {
			s += fmt.Sprintf(" [servo error: %s]", r.Status.ErrorFlags())
		}
		return s
	case r.Err != nil:
		return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	default:
		return r.Outcome.String()
	}
}

// FormatID formats a device id, naming the broadcast address
func FormatID(id uint8) string {
	if id == BroadcastID {
		return "id=BROADCAST"
	}
	return fmt.Sprintf("id=%d", id)
}

// HexDump formats bytes as space separated hex pairs
func HexDump(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			if i%16 == 0 {
				b.WriteString("\n          ")
			} else {
				b.WriteByte(' ')
			}
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// formatParams decodes the generic parameter layouts shared by the
// addressed instructions. Register contents stay opaque.
func formatParams(op Opcode, p []byte) string {
	switch op {
	case OpPing, OpAction:
		if len(p) == 0 {
			return "  (no params)\n"
		}

	case OpRead:
		if len(p) == 2 {
			return fmt.Sprintf("  Address: 0x%02X (%d), Count: %d\n", p[0], p[0], p[1])
		}

	case OpWrite, OpRegWrite:
		if len(p) >= 2 {
			return fmt.Sprintf("  Address: 0x%02X (%d), Data: %s\n", p[0], p[0], HexDump(p[1:]))
		}

	case OpSyncRead:
		if len(p) >= 3 {
			return fmt.Sprintf("  Address: 0x%02X (%d), Count: %d, IDs: %v\n", p[0], p[0], p[1], p[2:])
		}

	case OpSyncWrite:
		if len(p) >= 4 && p[1] > 0 {
			addr, count := p[0], int(p[1])
			result := fmt.Sprintf("  Address: 0x%02X (%d), Count: %d\n", addr, addr, count)
			entries := p[2:]
			for len(entries) >= count+1 {
				result += fmt.Sprintf("    ID %d: %s\n", entries[0], HexDump(entries[1:count+1]))
				entries = entries[count+1:]
			}
			if len(entries) > 0 {
				result += fmt.Sprintf("    trailing: %s\n", HexDump(entries))
			}
			return result
		}
	}

	if len(p) == 0 {
		return ""
	}
	return "  Params: " + HexDump(p) + "\n"
}
