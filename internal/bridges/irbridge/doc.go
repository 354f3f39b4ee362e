// Package irbridge hosts IR remotes and relays on the Gray Logic MQTT bus.
//
// It reads the hardware file (protocols.ir.config_file), connects one shared
// transport per configured controller and builds an entity for every
// configured device and relay. The Bridge then translates between the bus
// and those entities.
//
// # Architecture
//
//	┌─────────────┐   MQTT   ┌─────────────┐ ──TCP 4998──► Global Caché
//	│ Gray Logic  │◄────────►│  IR Bridge  │ ──TCP 8765──► lircd
//	│    Core     │          │ (this pkg)  │ ──UDP 80────► Broadlink RM
//	└─────────────┘          └─────────────┘
//
// # Topics
//
//	graylogic/command/ir/{entity_id}    turn_on, turn_off, send_command, update
//	graylogic/ack/ir/{entity_id}        accepted / failed
//	graylogic/state/ir/{entity_id}      retained, on every state change
//	graylogic/request/ir/{request_id}   list_entities, resolve, list_hardware
//	graylogic/response/ir/{request_id}
//	graylogic/discovery/ir/{entity_id}  retained, once at startup
//	graylogic/health/ir                 retained, every health_interval
//
// Entity IDs are URL-safe base64 and never contain topic separators.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package irbridge
