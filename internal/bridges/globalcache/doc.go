// Package globalcache drives Global Caché iTach and GC-100 controllers over
// their TCP API (port 4998).
//
// Lines are carriage-return terminated ASCII:
//
//	sendir,1:2,17,38000,1,1,342,171,21,21,...   →  completeir,1:2,17
//	setstate,3:1,1                               →  state,3:1,1
//	getstate,3:1                                 →  state,3:1,0
//	getdevices                                   →  device,1,3 IR ... endlistdevices
//
// Failures come back as ERR_<module>:<connector>,<code>, unknowncommand or
// busyIR and surface as *DeviceError or ErrBusy. Relay and sensor modules
// also push statechange lines without being asked; register a handler with
// Client.OnStateChange to receive them.
//
// IRDevice and RelayDevice adapt one connector to the entity package's
// Sender and RelayTransport contracts. Both share a Client per unit.
package globalcache
