//go:build !linux

package tools

// limitAddressSpace is a no-op off Linux; the soft runtime memory limit and
// the process boundary still apply.
func limitAddressSpace(int64) error { return nil }
