// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

type commandKind int

const (
	cmdChannel commandKind = iota
	cmdLevel
	cmdDiagnostic
	cmdTransparent
	cmdToggle
	cmdReport
	cmdSend
	cmdHelp
	cmdQuit
)

// controlCommand is one line typed into the control prompt
type controlCommand struct {
	kind  commandKind
	value int
	text  string
}

const controlHelp = "channel N | level N | diag | transparent | toggle | report | send TEXT | quit"

// parseCommand parses a prompt line. Single-letter aliases follow the
// modem's own selector characters (c, l, d, t, m, r).
func parseCommand(line string) (controlCommand, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return controlCommand{}, fmt.Errorf("empty command")
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	number := func(kind commandKind, validate func(int) error) (controlCommand, error) {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return controlCommand{}, fmt.Errorf("%s needs a number", verb)
		}
		if err := validate(n); err != nil {
			return controlCommand{}, err
		}
		return controlCommand{kind: kind, value: n}, nil
	}

	switch strings.ToLower(verb) {
	case "channel", "ch", "c":
		return number(cmdChannel, m16.ValidateChannel)
	case "level", "l":
		return number(cmdLevel, m16.ValidatePowerLevel)
	case "diag", "diagnostic", "d":
		return controlCommand{kind: cmdDiagnostic}, nil
	case "transparent", "t":
		return controlCommand{kind: cmdTransparent}, nil
	case "toggle", "m":
		return controlCommand{kind: cmdToggle}, nil
	case "report", "r":
		return controlCommand{kind: cmdReport}, nil
	case "send", "s":
		if rest == "" {
			return controlCommand{}, fmt.Errorf("send needs text")
		}
		return controlCommand{kind: cmdSend, text: rest}, nil
	case "help", "?":
		return controlCommand{kind: cmdHelp}, nil
	case "quit", "exit", "q":
		return controlCommand{kind: cmdQuit}, nil
	}
	return controlCommand{}, fmt.Errorf("unknown command %q", verb)
}

// String describes the command for the event log
func (c controlCommand) String() string {
	switch c.kind {
	case cmdChannel:
		return fmt.Sprintf("set channel %d", c.value)
	case cmdLevel:
		return fmt.Sprintf("set power level %d", c.value)
	case cmdDiagnostic:
		return "diagnostic mode"
	case cmdTransparent:
		return "transparent mode"
	case cmdToggle:
		return "toggle mode"
	case cmdReport:
		return "request report"
	case cmdSend:
		return fmt.Sprintf("send %q", c.text)
	case cmdHelp:
		return "help"
	default:
		return "quit"
	}
}
