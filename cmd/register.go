// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/servostat/pkg/scs"
)

var (
	regID   int
	regAddr int

	readLen int

	writeData string
	writeWord int
	writeReg  bool
	actionID  int
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read control table registers from a servo",
	Long: `Send a READ instruction and print the returned register bytes.

Two-byte reads are also shown as a word decoded with --byte-order.

Example:
  servostat read --port /dev/ttyUSB0 --id 1 --addr 56 --len 2

Exit codes:
  0 - Registers read
  1 - Timeout, corrupt reply or servo fault
  2 - Connection error`,
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write control table registers on a servo",
	Long: `Send a WRITE (or REG_WRITE with --reg) instruction.

Data is given either as hex bytes (--data "00 08") or as a 16-bit word
(--word 2048) encoded with --byte-order. A REG_WRITE is held by the servo
until an ACTION instruction arrives.

Exit codes:
  0 - Write acknowledged
  1 - Timeout, corrupt reply or servo fault
  2 - Connection error`,
	RunE: runWrite,
}

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Trigger writes staged with REG_WRITE",
	Long: `Send an ACTION instruction. The default target is the broadcast id, which
triggers every servo at once and gets no reply.`,
	RunE: runAction,
}

func init() {
	rootCmd.AddCommand(readCmd, writeCmd, actionCmd)

	for _, c := range []*cobra.Command{readCmd, writeCmd} {
		c.Flags().IntVar(&regID, "id", 1, "Device id (0-253, 254 broadcast for write)")
		c.Flags().IntVar(&regAddr, "addr", 0, "Register address")
		_ = c.MarkFlagRequired("addr")
	}

	readCmd.Flags().IntVar(&readLen, "len", 1, "Number of bytes to read")

	writeCmd.Flags().StringVar(&writeData, "data", "", "Hex bytes to write")
	writeCmd.Flags().IntVar(&writeWord, "word", -1, "16-bit value to write")
	writeCmd.Flags().BoolVar(&writeReg, "reg", false, "Stage the write with REG_WRITE")
	writeCmd.MarkFlagsMutuallyExclusive("data", "word")
	writeCmd.MarkFlagsOneRequired("data", "word")

	actionCmd.Flags().IntVar(&actionID, "id", scs.BroadcastID, "Device id (254 = broadcast)")
}

func runRead(cmd *cobra.Command, args []string) error {
	id, err := checkID(regID, false)
	if err != nil {
		return err
	}
	addr, err := checkByte("addr", regAddr)
	if err != nil {
		return err
	}
	count, err := checkByte("len", readLen)
	if err != nil {
		return err
	}
	if count == 0 || int(count) > scs.MaxFrameSize-scs.FrameOverhead {
		return fmt.Errorf("--len must be 1-%d", scs.MaxFrameSize-scs.FrameOverhead)
	}

	ctx := cmd.Context()
	session, _, err := OpenSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	res := session.RoundTrip(ctx, id, scs.OpRead, []byte{addr, count})
	if res.Outcome != scs.RxSuccess {
		return resultError(res)
	}

	out := cmd.OutOrStdout()
	data := res.Status.Params()
	fmt.Fprintf(out, "%s addr=0x%02X (%d): %s\n", scs.FormatID(id), addr, addr, scs.HexDump(data))
	if len(data) == 2 {
		fmt.Fprintf(out, "  word (%s endian): %d\n", session.Endianness(), session.Endianness().Uint16(data))
	}
	if len(data) != int(count) {
		fmt.Fprintf(out, "  warning: asked for %d bytes, got %d\n", count, len(data))
	}
	return resultError(res)
}

func writePayload(endian scs.Endianness) ([]byte, error) {
	if writeData != "" {
		data, err := parseHexBytes(writeData)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errors.New("--data is empty")
		}
		return data, nil
	}
	if writeWord < 0 || writeWord > 0xFFFF {
		return nil, fmt.Errorf("--word must be 0-65535, got %d", writeWord)
	}
	return endian.AppendUint16(nil, uint16(writeWord)), nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	id, err := checkID(regID, true)
	if err != nil {
		return err
	}
	addr, err := checkByte("addr", regAddr)
	if err != nil {
		return err
	}

	op := scs.OpWrite
	if writeReg {
		op = scs.OpRegWrite
	}

	ctx := cmd.Context()
	session, _, err := OpenSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	data, err := writePayload(session.Endianness())
	if err != nil {
		return err
	}
	params := append([]byte{addr}, data...)

	res := session.RoundTrip(ctx, id, op, params)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s addr=0x%02X data=%s: %s\n",
		op, scs.FormatID(id), addr, scs.HexDump(data), scs.FormatResult(res))
	return resultError(res)
}

func runAction(cmd *cobra.Command, args []string) error {
	id, err := checkID(actionID, true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session, _, err := OpenSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	res := session.RoundTrip(ctx, id, scs.OpAction, nil)
	fmt.Fprintf(cmd.OutOrStdout(), "ACTION %s: %s\n", scs.FormatID(id), scs.FormatResult(res))
	return resultError(res)
}
