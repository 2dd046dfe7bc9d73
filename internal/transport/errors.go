package transport

import "errors"

// Sentinel errors the facade maps onto the public taxonomy of §7.
var (
	errTransport        = errors.New("transport: error")
	errNotConnected     = errors.New("transport: not connected")
	errConnectionClosed = errors.New("transport: connection closed")
)

// ErrTransport is returned (wrapped) for dial/send/I-O failures.
var ErrTransport = errTransport

// ErrNotConnected is returned (wrapped) when Send is called after Close.
var ErrNotConnected = errNotConnected

// ErrConnectionClosed is returned (wrapped) when the read loop or ping loop
// observes the underlying socket going away.
var ErrConnectionClosed = errConnectionClosed
