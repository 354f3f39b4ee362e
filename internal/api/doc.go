// Package api provides the HTTP REST API and WebSocket server for the IR
// bridge.
//
// It exposes the bridge's entities to local tools and dashboards: listing
// and inspecting entities, switching them, replaying named IR commands,
// reading back relays, browsing the command log and resolving ad-hoc
// command lists into an on/off pair.
//
// Routes (all under /api/v1):
//
//	GET  /health
//	GET  /resolve?command=POWER_ON&command=POWER_OFF
//	GET  /entities
//	GET  /entities/{id}
//	GET  /entities/{id}/history?limit=50
//	POST /entities/{id}/turn_on
//	POST /entities/{id}/turn_off
//	POST /entities/{id}/send_command   {"commands": ["KEY_MUTE"], "repeat_count": 2}
//	POST /entities/{id}/update
//	GET  /ws
//
// Errors are returned as {"error": {"code": "...", "message": "..."}}.
//
// WebSocket clients subscribe to channels:
//
//	{"type": "subscribe", "payload": {"channels": ["entity.state_changed"], "entities": ["lirc.remote.bG9jYWxob3N0Ojg3NjUvdHY"]}}
//
// after which every state change arrives as an event carrying the entity
// snapshot. Leaving out "entities" subscribes to all of them. Actions can
// also be sent over the socket; the reply is the snapshot or an error
// with the bridge's error code:
//
//	{"type": "command", "id": "1", "payload": {"entity_id": "...", "action": "turn_on"}}
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
