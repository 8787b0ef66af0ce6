package ota

import "time"

// Defaults
const (
	DefaultBufferSize   = 4096
	DefaultHeapOverhead = 16 * 1024
	DefaultTimeout      = 15 * time.Second
	DefaultLockWait     = 10 * time.Millisecond
	DefaultRestartDelay = time.Second
)

// Wait modes.
const (
	WaitPoll   = "poll"
	WaitNotify = "notify"
)

// Config defines the tunables of the pipeline.
type Config struct {
	// BufferSize is the capacity of each staging buffer, also the maximum piece size.
	BufferSize int
	// HeapOverhead is the margin kept free on top of the staging buffers.
	HeapOverhead uint64
	// Timeout aborts a session without chunk activity for longer than this.
	Timeout time.Duration
	// PollInterval is the yield interval of the poll waiter.
	PollInterval time.Duration
	// LockWait bounds how long the flash worker waits for the staging lock.
	LockWait time.Duration
	// Wait selects the wait primitive, WaitPoll or WaitNotify.
	Wait string
	// RestartDelay is the delay before restarting after a successful update.
	RestartDelay time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:   DefaultBufferSize,
		HeapOverhead: DefaultHeapOverhead,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		LockWait:     DefaultLockWait,
		Wait:         WaitPoll,
		RestartDelay: DefaultRestartDelay,
	}
}

// StagingRequirement is the memory needed by the staging buffers.
func (c Config) StagingRequirement() uint64 {
	return 2 * uint64(c.BufferSize)
}

// NewWaiter creates the Waiter selected by Wait.
func (c Config) NewWaiter() Waiter {
	if c.Wait == WaitNotify {
		return NewNotifyWaiter()
	}
	return &PollWaiter{Interval: c.PollInterval}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.Wait == "" {
		c.Wait = def.Wait
	}
	return c
}
