// Package ota implements the firmware update pipeline.
package ota

// Firmware bytes arrive from the network layer in chunks of arbitrary size.
// Each chunk is split into pieces that fit a staging buffer. Two staging
// buffers alternate between the "receive" role (filled by the ingestion path)
// and the "write" role (drained to storage by a dedicated flash worker).
//
// Ingestion is synchronous with flash commit at piece granularity: a chunk
// call returns only after every piece of it has been written to the update
// target, so the transport can never run ahead of storage by more than one
// piece.
//
// Producer: network layer (UpdateChunk commands)
// Consumer: storage update target
