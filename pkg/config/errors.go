package config

import "errors"

var (
	ErrMissingHTTPAddr  = errors.New("HTTP address is required (set HTTP_ADDR env var or --http flag)")
	ErrMissingDataDir   = errors.New("data directory is required (set DATA_DIR env var or --data-dir flag)")
	ErrMissingExportDir = errors.New("export directory is required (set EXPORT_DIR env var or --export-dir flag)")
	ErrInvalidKeepalive = errors.New("websocket read timeout must exceed a positive ping interval")
	ErrInvalidLoopback  = errors.New("loopback step delay and failed joins must not be negative")
)
