// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import "bufio"

// Resync discards bytes from r until the next 0xFF 0xFF header pair and
// leaves the reader positioned on it, so the next ParseStatus or
// ParseInstruction starts on a frame boundary. It returns the number of
// bytes skipped.
//
// Sessions never call this themselves; recovering from a corrupt reply by
// scanning forward is a policy for the caller to choose.
func Resync(r *bufio.Reader) (int, error) {
	skipped := 0
	for {
		peek, err := r.Peek(HeaderSize)
		if err != nil {
			return skipped, err
		}
		if peek[0] == HeaderByte && peek[1] == HeaderByte {
			// 0xFF is never a valid id; skip to the last header pair of a run
			for {
				more, err := r.Peek(HeaderSize + 1)
				if err != nil || more[2] != HeaderByte {
					return skipped, nil
				}
				if _, err := r.Discard(1); err != nil {
					return skipped, err
				}
				skipped++
			}
		}
		if _, err := r.Discard(1); err != nil {
			return skipped, err
		}
		skipped++
	}
}
