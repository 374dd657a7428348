package metrics

// 工作流事件类型。
const (
	WorkflowSubmitted       = "submitted"
	WorkflowSubmitFailed    = "submit_failed"
	WorkflowEventApplied    = "event_applied"
	WorkflowEventDropped    = "event_dropped"
	WorkflowCompleted       = "completed"
	WorkflowTransportFailed = "transport_failed"
	WorkflowAgentStale      = "agent_stale"
)

// 归档操作结果。
const (
	ArchivePublished = "published"
	ArchiveSaved     = "saved"
	ArchiveFailed    = "failed"
	ArchiveDiscarded = "discarded"
)

var (
	workflowEvents = newCounter("iris_workflow_events_total",
		"Workflow lifecycle events grouped by kind.", "kind")
	archiveOperations = newCounter("iris_archive_operations_total",
		"Timeline archival operations grouped by outcome.", "outcome")
)

// AddWorkflowEvents 累加指定类型的工作流事件数量。
func AddWorkflowEvents(kind string, n int) {
	if n <= 0 {
		return
	}
	workflowEvents.add(uint64(n), kind)
}

// ObserveWorkflowEvent 记录一次工作流事件。
func ObserveWorkflowEvent(kind string) {
	workflowEvents.add(1, kind)
}

// ObserveArchive 记录一次归档操作结果。
func ObserveArchive(outcome string) {
	archiveOperations.add(1, outcome)
}

// WorkflowEventCount 返回当前计数，主要用于测试。
func WorkflowEventCount(kind string) uint64 {
	return workflowEvents.value(kind)
}

// ArchiveCount 返回归档结果计数。
func ArchiveCount(outcome string) uint64 {
	return archiveOperations.value(outcome)
}
