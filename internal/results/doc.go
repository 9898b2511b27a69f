// Package results enumerates a computation's result tree and decides which
// files to download.
//
// The Enumerator flattens the remote tree by walking an explicit queue of
// paths (no call-stack recursion, so arbitrarily deep namespaces are fine).
// A listing failure at any sub-path omits that subtree and continues: a
// partial listing is preferable to total failure.
//
// Partition splits the flattened file list into download / skipped-by-size /
// already-present, in listing order. The size check runs before the
// existence check, so an oversized file that also exists locally is still
// reported as skipped by size.
package results
