package xrbridge

import "errors"

// Errors returned by HMD.
var (
	// ErrNotInitialized is returned by operations that need Initialize.
	ErrNotInitialized = errors.New("xrbridge: not initialized")

	// ErrShutdown is returned after Shutdown.
	ErrShutdown = errors.New("xrbridge: shut down")

	// ErrNoDriver is returned by New without a compositor driver.
	ErrNoDriver = errors.New("xrbridge: no compositor driver")
)
