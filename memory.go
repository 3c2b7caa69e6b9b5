package tabsql

import (
	"math"
	"runtime"
	"sync/atomic"
)

// Memory management constants
const (
	// defaultMemoryLimitMB is the heap ceiling applied when none is set
	defaultMemoryLimitMB = 512
	// maxReasonableMemoryLimitMB caps configured limits at 64GB
	maxReasonableMemoryLimitMB = 64 * 1024
	// defaultWarningThreshold is the fraction of the limit that triggers
	// batch-size reduction
	defaultWarningThreshold = 0.8
	// bytesPerMB converts MemStats readings
	bytesPerMB = 1024 * 1024

	atomicEnabled  = 1
	atomicDisabled = 0
)

// MemoryStatus represents the current memory status.
type MemoryStatus int

const (
	// MemoryStatusOK indicates memory usage is within acceptable limits
	MemoryStatusOK MemoryStatus = iota
	// MemoryStatusWarning indicates memory usage is approaching the limit
	MemoryStatusWarning
	// MemoryStatusExceeded indicates memory usage has exceeded the limit
	MemoryStatusExceeded
)

// String returns string representation of memory status.
func (ms MemoryStatus) String() string {
	switch ms {
	case MemoryStatusOK:
		return "OK"
	case MemoryStatusWarning:
		return "WARNING"
	case MemoryStatusExceeded:
		return "EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// MemoryLimit monitors heap usage against a configurable ceiling so the
// loader can shrink batch sizes under pressure instead of failing the run.
//
// Performance note: CheckMemoryUsage calls runtime.ReadMemStats, which can
// pause for milliseconds. The loader samples it once per batch, not per
// row.
type MemoryLimit struct {
	maxMemoryMB      int64
	warningThreshold float64
	enabled          int32
}

// NewMemoryLimit creates a memory limit in MB. Non-positive values select
// the default; values beyond any realistic system are capped.
func NewMemoryLimit(maxMemoryMB int64) *MemoryLimit {
	if maxMemoryMB <= 0 {
		maxMemoryMB = defaultMemoryLimitMB
	}
	if maxMemoryMB > maxReasonableMemoryLimitMB {
		maxMemoryMB = maxReasonableMemoryLimitMB
	}
	return &MemoryLimit{
		maxMemoryMB:      maxMemoryMB,
		warningThreshold: defaultWarningThreshold,
		enabled:          atomicEnabled,
	}
}

// IsEnabled returns whether memory limits are enabled.
func (ml *MemoryLimit) IsEnabled() bool {
	return atomic.LoadInt32(&ml.enabled) == atomicEnabled
}

// Enable enables memory limit checking.
func (ml *MemoryLimit) Enable() {
	atomic.StoreInt32(&ml.enabled, atomicEnabled)
}

// Disable disables memory limit checking.
func (ml *MemoryLimit) Disable() {
	atomic.StoreInt32(&ml.enabled, atomicDisabled)
}

// CheckMemoryUsage samples the heap and classifies it against the limit.
func (ml *MemoryLimit) CheckMemoryUsage() MemoryStatus {
	if !ml.IsEnabled() {
		return MemoryStatusOK
	}

	currentMB := currentHeapMB()
	if currentMB >= ml.maxMemoryMB {
		return MemoryStatusExceeded
	}
	if float64(currentMB)/float64(ml.maxMemoryMB) >= ml.warningThreshold {
		return MemoryStatusWarning
	}
	return MemoryStatusOK
}

// ShouldReduceBatchSize reports whether the next batch should shrink and
// by how much: halved at the warning threshold, quartered once exceeded.
func (ml *MemoryLimit) ShouldReduceBatchSize(batchSize int) (bool, int) {
	switch ml.CheckMemoryUsage() {
	case MemoryStatusWarning:
		return true, batchSize / 2
	case MemoryStatusExceeded:
		return true, batchSize / 4
	default:
		return false, batchSize
	}
}

// currentHeapMB reads the current heap allocation in MB.
func currentHeapMB() int64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	heapAllocMB := memStats.HeapAlloc / bytesPerMB
	if heapAllocMB > uint64(math.MaxInt64) {
		return math.MaxInt64
	}
	return int64(heapAllocMB)
}
