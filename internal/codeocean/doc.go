// Package codeocean provides a client for the Code Ocean REST API.
//
// This package handles:
//   - Computation status lookups (state, result availability)
//   - Capsule run submission
//   - Result tree listing, one directory level at a time
//   - Time-limited download URL resolution for result files
//   - Retry with exponential backoff for transport and server errors
//
// # Usage
//
//	client := codeocean.NewClient("https://codeocean.example.org", token, codeocean.DefaultOptions())
//
//	comp, err := client.GetComputation(ctx, computationID)
//	// comp.State, comp.HasResults
//
//	folder, err := client.ListResults(ctx, computationID, "")
//	// folder.Items, each resolved as file or container
//
//	url, err := client.ResultDownloadURL(ctx, computationID, "/output/data.bin")
//
// The client is passed as an explicit dependency into the tracker, the
// result enumerator, and the download engine; it is never ambient state.
package codeocean
