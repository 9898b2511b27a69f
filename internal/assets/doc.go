// Package assets bulk-syncs folder-like object store prefixes to local
// disk.
//
// It mirrors the behavior of `aws s3 sync --exclude ...`: every object
// under the bucket (or prefix) is copied to the destination root with its
// key as the relative path, excluded patterns are skipped, and an object
// whose local copy already exists at the same size is not fetched again, so
// re-running after an interruption is cheap.
//
// Buckets are opened through gocloud.dev/blob, so any registered scheme
// works; the CLI registers s3.
package assets
