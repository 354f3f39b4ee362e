package lirc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/tcpline"
)

// Reply is a parsed lircd reply packet.
type Reply struct {
	Command string
	Success bool
	Data    []string
}

// ReplyError is returned when lircd answers ERROR.
type ReplyError struct {
	Command string
	Lines   []string
}

func (e *ReplyError) Error() string {
	if len(e.Lines) == 0 {
		return fmt.Sprintf("lirc: %s failed", e.Command)
	}
	return fmt.Sprintf("lirc: %s failed: %s", e.Command, strings.Join(e.Lines, "; "))
}

// Unwrap lets errors.Is match ErrCommandFailed.
func (e *ReplyError) Unwrap() error { return ErrCommandFailed }

type parseState int

const (
	stateBegin parseState = iota
	stateEcho
	stateStatus
	stateDataOrEnd
	stateCount
	stateData
	stateEnd
	stateSighup
)

// replyParser is a line-at-a-time reader for one lircd reply packet:
//
//	BEGIN
//	<command>
//	SUCCESS | ERROR
//	[DATA
//	 <n>
//	 <n lines>]
//	END
//
// SIGHUP broadcasts are skipped, and lines outside a packet (decoded key
// presses) are reported as unsolicited.
type replyParser struct {
	directive string
	state     parseState
	remaining int
	reply     Reply
}

func newReplyParser(command string) *replyParser {
	directive, _, _ := strings.Cut(command, " ")
	return &replyParser{directive: strings.ToUpper(directive)}
}

// feed implements tcpline.Collector.
func (p *replyParser) feed(line string) (bool, error) {
	switch p.state {
	case stateBegin:
		if line != "BEGIN" {
			return false, tcpline.ErrUnsolicited
		}
		p.state = stateEcho
	case stateEcho:
		if line == "SIGHUP" {
			p.state = stateSighup
			return false, nil
		}
		directive, _, _ := strings.Cut(line, " ")
		if !strings.EqualFold(directive, p.directive) {
			return true, fmt.Errorf("%w: reply for %q while waiting for %s", ErrProtocol, line, p.directive)
		}
		p.reply.Command = line
		p.state = stateStatus
	case stateSighup:
		if line == "END" {
			p.state = stateBegin
		}
	case stateStatus:
		switch line {
		case "SUCCESS":
			p.reply.Success = true
		case "ERROR":
			p.reply.Success = false
		default:
			return true, fmt.Errorf("%w: unexpected status %q", ErrProtocol, line)
		}
		p.state = stateDataOrEnd
	case stateDataOrEnd:
		switch line {
		case "END":
			return true, nil
		case "DATA":
			p.state = stateCount
		default:
			return true, fmt.Errorf("%w: expected DATA or END, got %q", ErrProtocol, line)
		}
	case stateCount:
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 {
			return true, fmt.Errorf("%w: bad DATA length %q", ErrProtocol, line)
		}
		p.remaining = n
		p.reply.Data = make([]string, 0, n)
		if n == 0 {
			p.state = stateEnd
		} else {
			p.state = stateData
		}
	case stateData:
		p.reply.Data = append(p.reply.Data, line)
		p.remaining--
		if p.remaining == 0 {
			p.state = stateEnd
		}
	case stateEnd:
		if line != "END" {
			return true, fmt.Errorf("%w: expected END, got %q", ErrProtocol, line)
		}
		return true, nil
	}
	return false, nil
}
