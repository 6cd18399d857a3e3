/*
Package filesystem provides filesystem operations with retry logic for NFS
stale file handle errors.

Image libraries are frequently mounted over NFS. When the server replaces a
file, open handles and cached lookups can fail with ESTALE for a short
window; retrying after a small backoff is usually enough.

# Usage

	f, err := filesystem.OpenWithRetry(ctx, "/library/2024/beach.jpg", filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer f.Close()

Only ESTALE triggers a retry. Every other error, including os.ErrNotExist,
is returned immediately. Backoff doubles from InitialBackoff up to
MaxBackoff and is abandoned when the context is cancelled.

# Metrics

Retry counters are labeled with a volume name resolved by longest-prefix
match against the configured mounts (see NewVolumeResolver). Install the
Prometheus implementation with SetObserver(metrics.NewFilesystemObserver()).
*/
package filesystem
