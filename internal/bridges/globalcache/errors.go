package globalcache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Domain errors for the Global Caché package.
var (
	// ErrDevice is the sentinel wrapped by every *DeviceError.
	ErrDevice = errors.New("globalcache: device error")

	// ErrBusy is returned when the connector is still transmitting.
	ErrBusy = errors.New("globalcache: IR connector busy")

	// ErrUnknownCommand is returned when a command name has no IR code.
	ErrUnknownCommand = errors.New("globalcache: unknown command")

	// ErrInvalidCode is returned when IR code data cannot be parsed.
	ErrInvalidCode = errors.New("globalcache: invalid IR code")

	// ErrUnexpectedReply is returned when a reply cannot be parsed.
	ErrUnexpectedReply = errors.New("globalcache: unexpected reply")
)

// errorMessages is the iTach API error table.
var errorMessages = map[int]string{
	1:  "invalid command, command not found",
	2:  "invalid module address",
	3:  "invalid connector address",
	4:  "invalid ID value",
	5:  "invalid frequency value",
	6:  "invalid repeat value",
	7:  "invalid offset value",
	8:  "invalid pulse count",
	9:  "invalid pulse data",
	10: "uneven amount of on/off statements",
	11: "no carriage return found",
	12: "repeat count exceeded",
	13: "IR command sent to input connector",
	14: "blaster command sent to non-blaster connector",
	15: "no carriage return before buffer full",
	16: "no carriage return",
	17: "bad command syntax",
	18: "sensor command sent to non-input connector",
	19: "repeated IR transmission failure",
	20: "above designated IR on/off pair limit",
	21: "symbol odd boundary",
	22: "undefined symbol",
	23: "unknown option",
	24: "invalid baud rate setting",
	25: "invalid flow control setting",
	26: "invalid parity setting",
	27: "settings are locked",
}

// DeviceError is an error reported by the unit itself.
type DeviceError struct {
	// Address is "module:connector" when the unit reported one.
	Address string
	Code    int
	Raw     string
}

func (e *DeviceError) Error() string {
	msg, ok := errorMessages[e.Code]
	if !ok {
		msg = "unknown error"
	}
	if e.Address != "" {
		return fmt.Sprintf("globalcache: %s: error %d: %s", e.Address, e.Code, msg)
	}
	return fmt.Sprintf("globalcache: error %d: %s", e.Code, msg)
}

// Unwrap lets errors.Is match ErrDevice.
func (e *DeviceError) Unwrap() error { return ErrDevice }

// parseReplyError recognises the error forms the iTach and GC-100 families
// send. It returns nil for anything else.
//
//	ERR_1:1,014
//	ERR_01
//	ERR 14
//	unknowncommand 14
//	unknowncommand,ERR_1:1,008
//	busyIR,1:1,17
func parseReplyError(line string) error {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "busyir"):
		return fmt.Errorf("%w: %s", ErrBusy, line)
	case strings.HasPrefix(lower, "unknowncommand"):
		rest := strings.TrimLeft(line[len("unknowncommand"):], " ,")
		if rest == "" {
			return &DeviceError{Code: 1, Raw: line}
		}
		if err := parseReplyError(rest); err != nil {
			return err
		}
		code, _ := strconv.Atoi(rest) //nolint:errcheck // 0 means unknown code
		return &DeviceError{Code: code, Raw: line}
	case strings.HasPrefix(lower, "err"):
		return parseErrLine(line)
	default:
		return nil
	}
}

func parseErrLine(line string) error {
	rest := strings.TrimLeft(line[3:], "_ ")
	de := &DeviceError{Raw: line}

	if addr, code, found := strings.Cut(rest, ","); found {
		de.Address = addr
		rest = code
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, line)
	}
	de.Code = n
	return de
}
