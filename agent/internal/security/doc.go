// Package security checks TLS certificate validity for https sensor
// endpoints. It emits CertStatus records that are attached to the snapshots
// shipped to the server.
package security
