// Package ilerr defines the sentinel error kinds used across the
// aggregation server's per-connection protocol drivers.
package ilerr

import "errors"

// BadFrame indicates a channel frame header or payload violated the
// wire format (length zero or not a multiple of 4). A frame cut short
// by EOF is reported as PeerClosed instead.
var BadFrame = errors.New("ilserver: malformed channel frame")

// SlotBusy indicates a second client connected to a channel id that
// already has an active connection.
var SlotBusy = errors.New("ilserver: channel slot already in use")

// ControllerProtocolError indicates a malformed phase-shift vector
// from the controller connection.
var ControllerProtocolError = errors.New("ilserver: malformed controller frame")

// PeerClosed indicates a clean EOF from the remote side of a
// connection. It is not logged as a failure.
var PeerClosed = errors.New("ilserver: peer closed connection")
