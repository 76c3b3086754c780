// Package panel serves the fridge operator page as an embedded asset.
//
// The page is a single static HTML file that polls /status every two
// seconds and calls /trancar, /destrancar and /desligaBuzzer. It is embedded
// into the binary with go:embed, so the device needs no files on disk.
// During development a directory can be passed to Handler to serve an
// edited copy instead.
package panel
