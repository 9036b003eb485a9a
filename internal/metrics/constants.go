package metrics

// Histogram bucket layout.
const (
	// BucketStart1ms is the first page load bucket (1ms).
	BucketStart1ms = 0.001
	// BucketFactor2 doubles each bucket.
	BucketFactor2 = 2
	// BucketCount12 spans 1ms to about 2s.
	BucketCount12 = 12
)

// Label kinds reported by LabelsSubmitted.
const (
	KindInserted   = "inserted"
	KindUpdated    = "updated"
	KindRedirected = "redirected"
)
