// Package influxdb records IR bridge telemetry in InfluxDB v2.
//
// Two measurements are written:
//   - ir_command{entity,action,backend} sends=<n>,success=<bool>
//   - ir_state{entity} on=0|1
//
// Writes are non-blocking and batched per the influxdb section of
// config.yaml (batch_size, flush_interval). Asynchronous write failures are
// delivered through SetOnError.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//	client.WriteState(entityID, true)
package influxdb
