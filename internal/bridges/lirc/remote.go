package lirc

import (
	"context"

	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
)

var _ entity.Sender = (*Remote)(nil)

// Remote sends the codes of one lircd remote, optionally through specific
// transmitters.
type Remote struct {
	client       *Client
	name         string
	transmitters []int
}

// NewRemote binds the lircd remote called name.
func NewRemote(client *Client, name string, transmitters []int) *Remote {
	tx := make([]int, len(transmitters))
	copy(tx, transmitters)
	return &Remote{client: client, name: name, transmitters: tx}
}

// Name returns the lircd remote name.
func (r *Remote) Name() string { return r.name }

// Send fires command repeat times in total; lircd counts repeats after the
// first transmission.
func (r *Remote) Send(ctx context.Context, command string, repeat int) error {
	return r.client.SendOnceVia(ctx, r.transmitters, r.name, command, max(repeat-1, 0))
}
