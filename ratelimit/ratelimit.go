package ratelimit

const (
	// PlaylistDownloadConcurrency is the number of entries of one playlist
	// request downloaded at the same time.
	PlaylistDownloadConcurrency = 3
	// PlaylistMaxEntries caps the entries processed per playlist. Extras are dropped.
	PlaylistMaxEntries = 50
	// MaxConcurrentFetchesCeiling bounds limits.max_concurrent_fetches.
	MaxConcurrentFetchesCeiling = 64
)
