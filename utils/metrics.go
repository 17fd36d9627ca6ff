package utils

// Custom metrics names
const (
	// MetricsNameVideoLeaseOperationCount video lease operation counter
	MetricsNameVideoLeaseOperationCount = "takbridge_video_lease_operations_total"
)
