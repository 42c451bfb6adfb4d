package coordinator

// MetricsCollector defines the interface for collecting readiness protocol metrics
type MetricsCollector interface {
	RecordSyncStarted(reason SyncReason)
	RecordConverged(clients int, elapsed float64)
	RecordHardReload(manual bool)
	RecordClients(count int)
	RecordPhase(phase Phase)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordSyncStarted(reason SyncReason)          {}
func (NoOpMetricsCollector) RecordConverged(clients int, elapsed float64) {}
func (NoOpMetricsCollector) RecordHardReload(manual bool)                 {}
func (NoOpMetricsCollector) RecordClients(count int)                      {}
func (NoOpMetricsCollector) RecordPhase(phase Phase)                      {}
