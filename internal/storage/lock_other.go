//go:build !unix

package storage

// lockFile is a no-op where flock is unavailable; the state file is then
// safe for a single process only.
func lockFile(path string, exclusive bool) (func(), error) {
	return func() {}, nil
}
