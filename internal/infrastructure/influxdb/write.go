package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementCommand = "ir_command"
	MeasurementState   = "ir_state"
)

// CommandPoint describes one dispatched action.
type CommandPoint struct {
	EntityID string
	Action   string
	// Backend is the transport platform: globalcache, lirc or broadlink.
	Backend string
	Sends   int
	Success bool
}

// WriteCommand records an action as ir_command{entity,action,backend}.
func (c *Client) WriteCommand(p CommandPoint) {
	c.write(commandPoint(p, time.Now()))
}

// WriteState records a power change as ir_state{entity} on=0|1.
func (c *Client) WriteState(entityID string, on bool) {
	c.write(statePoint(entityID, on, time.Now()))
}

// WritePoint writes a custom point stamped now.
//
//	client.WritePoint("bridge_stats",
//	    map[string]string{"host": "irbridge-01"},
//	    map[string]any{"entities": 12})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.write(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) write(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func commandPoint(p CommandPoint, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementCommand,
		map[string]string{
			"entity":  p.EntityID,
			"action":  p.Action,
			"backend": p.Backend,
		},
		map[string]any{
			"sends":   p.Sends,
			"success": p.Success,
		},
		ts,
	)
}

func statePoint(entityID string, on bool, ts time.Time) *write.Point {
	v := 0
	if on {
		v = 1
	}
	return write.NewPoint(
		MeasurementState,
		map[string]string{"entity": entityID},
		map[string]any{"on": v},
		ts,
	)
}
