package timeline

// Status 表示时间线条目的展示状态。
type Status string

const (
	StatusStarted    Status = "started"
	StatusFinished   Status = "finished"
	StatusInProgress Status = "in_progress"
	StatusFailure    Status = "failure"
	StatusResponse   Status = "response"
)

const (
	// InputID 是提交内容条目的固定 ID。
	InputID = "input"
	// ResponseID 是最终响应条目的固定 ID。
	ResponseID = "response"

	InputTitle    = "Input Received"
	ResponseTitle = "Response"
)

// Entry 是时间线中的一行。
type Entry struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status Status `json:"status"`
}

// IsAgent 判断条目是否属于某个 Agent。
func (e Entry) IsAgent() bool {
	return e.ID != InputID && e.ID != ResponseID
}
