// Package discovery advertises the IR bridge on the local network so
// dashboards and home controllers can find its API without configuration.
//
// Two mechanisms run side by side:
//   - mDNS/DNS-SD: service _graylogic-ir._tcp with TXT records
//     version=<v>, entities=<n>, api=/api/v1
//   - SSDP: search target urn:graylogic:service:irbridge:1, with the API
//     URL as LOCATION and NOTIFY alive every max_age/2
//
// Stop withdraws both (mDNS goodbye, SSDP byebye).
package discovery
