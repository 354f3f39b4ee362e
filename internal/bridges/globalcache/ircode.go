package globalcache

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Protocol limits from the iTach API.
const (
	MinFrequency = 15000
	MaxFrequency = 500000
	MaxRepeat    = 50
	MaxID        = 65535

	// prontoClock is the Pronto carrier divisor in microseconds.
	prontoClock = 0.241246
)

// IRCode is the timing portion of a sendir command: everything after the
// command ID.
type IRCode struct {
	Frequency int
	Repeat    int
	// Offset is the 1-based pulse index replayed on repeats.
	Offset int
	Pulses []int
}

// ParseIRCode reads a configured IR payload. Three forms are accepted:
//
//	38000,1,1,342,171,21,21,...             timing only
//	sendir,1:1,5,38000,1,1,342,171,...      captured command, header dropped
//	0000 006D 0022 0002 0157 00AC ...       Pronto hex
func ParseIRCode(data string) (IRCode, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return IRCode{}, fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	if strings.HasPrefix(data, "0000 ") {
		return parsePronto(data)
	}

	fields := strings.Split(data, ",")
	if strings.EqualFold(strings.TrimSpace(fields[0]), "sendir") {
		if len(fields) < 3 {
			return IRCode{}, fmt.Errorf("%w: truncated sendir header", ErrInvalidCode)
		}
		fields = fields[3:]
	}
	if len(fields) < 5 {
		return IRCode{}, fmt.Errorf("%w: need frequency, repeat, offset and pulses", ErrInvalidCode)
	}

	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return IRCode{}, fmt.Errorf("%w: field %d %q: %w", ErrInvalidCode, i+1, f, err)
		}
		nums[i] = n
	}

	code := IRCode{
		Frequency: nums[0],
		Repeat:    nums[1],
		Offset:    nums[2],
		Pulses:    nums[3:],
	}
	if err := code.Validate(); err != nil {
		return IRCode{}, err
	}
	return code, nil
}

// parsePronto converts a raw (0000) Pronto code. Pronto burst counts are
// already carrier periods, which is what sendir expects.
func parsePronto(data string) (IRCode, error) {
	words := strings.Fields(data)
	if len(words) < 6 {
		return IRCode{}, fmt.Errorf("%w: pronto code too short", ErrInvalidCode)
	}
	vals := make([]int, len(words))
	for i, w := range words {
		n, err := strconv.ParseUint(w, 16, 16)
		if err != nil {
			return IRCode{}, fmt.Errorf("%w: pronto word %d %q", ErrInvalidCode, i+1, w)
		}
		vals[i] = int(n)
	}
	if vals[1] == 0 {
		return IRCode{}, fmt.Errorf("%w: pronto frequency word is zero", ErrInvalidCode)
	}

	once, repeat := vals[2], vals[3]
	pulses := vals[4:]
	if len(pulses) != 2*(once+repeat) {
		return IRCode{}, fmt.Errorf("%w: pronto expects %d pulses, got %d", ErrInvalidCode, 2*(once+repeat), len(pulses))
	}

	offset := 1
	if repeat > 0 {
		offset = 2*once + 1
	}

	code := IRCode{
		Frequency: int(math.Round(1e6 / (float64(vals[1]) * prontoClock))),
		Repeat:    1,
		Offset:    offset,
		Pulses:    pulses,
	}
	if err := code.Validate(); err != nil {
		return IRCode{}, err
	}
	return code, nil
}

// Validate checks the code against the protocol limits.
func (c IRCode) Validate() error {
	switch {
	case c.Frequency < MinFrequency || c.Frequency > MaxFrequency:
		return fmt.Errorf("%w: frequency %d outside %d-%d", ErrInvalidCode, c.Frequency, MinFrequency, MaxFrequency)
	case c.Repeat < 1 || c.Repeat > MaxRepeat:
		return fmt.Errorf("%w: repeat %d outside 1-%d", ErrInvalidCode, c.Repeat, MaxRepeat)
	case len(c.Pulses) == 0 || len(c.Pulses)%2 != 0:
		return fmt.Errorf("%w: need an even, non-zero number of pulses, got %d", ErrInvalidCode, len(c.Pulses))
	case c.Offset < 1 || c.Offset%2 == 0 || c.Offset > len(c.Pulses):
		return fmt.Errorf("%w: offset %d must be odd and within %d pulses", ErrInvalidCode, c.Offset, len(c.Pulses))
	}
	for i, p := range c.Pulses {
		if p < 1 || p > MaxID {
			return fmt.Errorf("%w: pulse %d value %d out of range", ErrInvalidCode, i+1, p)
		}
	}
	return nil
}

// Format renders the sendir line for module:connector with the given
// command ID and repeat, ignoring c.Repeat.
func (c IRCode) Format(module, connector, id, repeat int) string {
	var b strings.Builder
	b.Grow(32 + 6*len(c.Pulses))
	fmt.Fprintf(&b, "sendir,%d:%d,%d,%d,%d,%d", module, connector, id, c.Frequency, repeat, c.Offset)
	for _, p := range c.Pulses {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}
