// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/servostat/pkg/scs"
)

var (
	rawID     int
	rawOp     string
	rawParams string
)

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Send an arbitrary instruction",
	Long: `Build an instruction from an opcode and hex parameters, send it and print
the frames exchanged.

The parameter count is checked against the opcode's contract before anything
is sent. Instructions whose replies come from several devices (SYNC_READ)
are not supported.

Example:
  servostat raw --port /dev/ttyUSB0 --id 1 --op 0x02 --params "38 02"`,
	RunE: runRaw,
}

func init() {
	rootCmd.AddCommand(rawCmd)
	rawCmd.Flags().IntVar(&rawID, "id", 1, "Device id (254 = broadcast)")
	rawCmd.Flags().StringVar(&rawOp, "op", "", "Opcode, e.g. 0x01 or 2")
	rawCmd.Flags().StringVar(&rawParams, "params", "", "Hex parameter bytes")
	_ = rawCmd.MarkFlagRequired("op")
}

// rawInstruction validates the flags and builds the frame
func rawInstruction(id int, opText, paramText string) (*scs.InstructionFrame, scs.Contract, error) {
	target, err := checkID(id, true)
	if err != nil {
		return nil, scs.Contract{}, err
	}

	v, err := strconv.ParseUint(opText, 0, 8)
	if err != nil {
		return nil, scs.Contract{}, fmt.Errorf("invalid opcode %q", opText)
	}
	op := scs.Opcode(v)
	contract, ok := scs.ContractFor(op)
	if !ok {
		return nil, scs.Contract{}, fmt.Errorf("unknown opcode %s", op)
	}
	if contract.Response == scs.ResponsePerDevice {
		return nil, scs.Contract{}, fmt.Errorf("%s replies are not supported", op)
	}

	var params []byte
	if paramText != "" {
		if params, err = parseHexBytes(paramText); err != nil {
			return nil, scs.Contract{}, err
		}
	}
	if err := contract.Check(len(params)); err != nil {
		return nil, scs.Contract{}, fmt.Errorf("%s: %w", op, err)
	}

	frame, err := scs.BuildInstruction(target, op, params)
	if err != nil {
		return nil, scs.Contract{}, err
	}
	return frame, contract, nil
}

func runRaw(cmd *cobra.Command, args []string) error {
	frame, contract, err := rawInstruction(rawID, rawOp, rawParams)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session, _, err := OpenSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "TX %s\n", scs.HexDump(frame.Bytes()))
	fmt.Fprint(out, scs.FormatInstruction(frame))

	if contract.Response == scs.ResponseNone {
		tx, err := session.Transmit(ctx, frame)
		fmt.Fprintf(out, "%s (no reply expected)\n", tx)
		if tx != scs.TxSuccess {
			return &ExitError{Code: ExitConnection, Err: fmt.Errorf("%s: %w", tx, err)}
		}
		return nil
	}

	res := session.RoundTrip(ctx, frame.ID(), frame.Opcode(), frame.Params())
	if res.Status != nil {
		fmt.Fprintf(out, "RX %s\n", scs.HexDump(res.Status.Bytes()))
		fmt.Fprint(out, scs.FormatStatus(res.Status))
	}
	fmt.Fprintln(out, scs.FormatResult(res))
	return resultError(res)
}
