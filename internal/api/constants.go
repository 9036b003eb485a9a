package api

// API limits and constants.
const (
	// MaxUploadSize is the maximum allowed size for a dataset upload (32 MB).
	MaxUploadSize = 32 << 20
	// multipartMemory is how much of an upload is buffered in memory before spilling to disk.
	multipartMemory = 8 << 20
)

// Cache-Control header values.
const (
	CacheNoStore = "no-store"
)

// authPathPrefix is rate limited per client address.
const authPathPrefix = "/api/v1/auth/"
