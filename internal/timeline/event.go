package timeline

import (
	"bytes"
	"encoding/json"
	"strings"

	xerrors "IRIS-Agents/internal/errors"
)

// EventType 是入站事件的类型标识。
type EventType string

const (
	EventProgressStarted  EventType = "progress_started"
	EventProgressFinished EventType = "progress_finished"
	EventResponse         EventType = "response"
)

// Agent 是事件中携带的当前 Agent 信息。
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Event 是经过边界校验的入站事件，只可能是 Started、Finished 或 Response。
type Event interface {
	Type() EventType
	sealed()
}

// Started 表示某个 Agent 开始处理请求。
type Started struct {
	Original string
	Input    string
	Agent    Agent
}

// Finished 表示某个 Agent 处理完毕。
type Finished struct {
	Agent Agent
}

// Response 是终止事件，Data 为最终响应文本。
type Response struct {
	Data string
}

func (Started) Type() EventType  { return EventProgressStarted }
func (Finished) Type() EventType { return EventProgressFinished }
func (Response) Type() EventType { return EventResponse }

func (Started) sealed()  {}
func (Finished) sealed() {}
func (Response) sealed() {}

// InputDetail 返回 input 条目的展示内容：优先 original，其次 input。
func (s Started) InputDetail() string {
	if s.Original != "" {
		return s.Original
	}
	return s.Input
}

type envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

type progressPayload struct {
	Original     string        `json:"original"`
	Input        string        `json:"input"`
	CurrentAgent *agentPayload `json:"current_agent"`
}

type agentPayload struct {
	ID          *string `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ParseEvent 解析一条原始消息。无法识别的类型、非 JSON 内容以及
// 缺少 current_agent 字段的事件都会返回 CodeMalformedEvent。
func ParseEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeMalformedEvent, err, "事件不是合法 JSON")
	}

	switch env.Type {
	case EventProgressStarted:
		payload, agent, err := decodeProgress(env)
		if err != nil {
			return nil, err
		}
		return Started{Original: payload.Original, Input: payload.Input, Agent: agent}, nil
	case EventProgressFinished:
		_, agent, err := decodeProgress(env)
		if err != nil {
			return nil, err
		}
		return Finished{Agent: agent}, nil
	case EventResponse:
		var data string
		if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
			return nil, malformed(env.Type, "缺少 data")
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeMalformedEvent, err, "response 的 data 必须是字符串",
				xerrors.WithMetadata("type", string(env.Type)))
		}
		return Response{Data: data}, nil
	case "":
		return nil, xerrors.New(xerrors.CodeMalformedEvent, "缺少事件类型")
	default:
		return nil, malformed(env.Type, "未知事件类型")
	}
}

func decodeProgress(env envelope) (progressPayload, Agent, error) {
	var payload progressPayload
	if len(env.Data) == 0 {
		return payload, Agent{}, malformed(env.Type, "缺少 data")
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, Agent{}, xerrors.Wrap(xerrors.CodeMalformedEvent, err, "data 必须是对象",
			xerrors.WithMetadata("type", string(env.Type)))
	}
	ca := payload.CurrentAgent
	if ca == nil {
		return payload, Agent{}, malformed(env.Type, "缺少 current_agent")
	}
	if ca.ID == nil || strings.TrimSpace(*ca.ID) == "" || ca.Name == nil || ca.Description == nil {
		return payload, Agent{}, malformed(env.Type, "current_agent 缺少 id/name/description")
	}
	if *ca.ID == InputID || *ca.ID == ResponseID {
		return payload, Agent{}, malformed(env.Type, "current_agent.id 使用了保留值")
	}
	return payload, Agent{ID: *ca.ID, Name: *ca.Name, Description: *ca.Description}, nil
}

func malformed(typ EventType, msg string) error {
	return xerrors.New(xerrors.CodeMalformedEvent, msg, xerrors.WithMetadata("type", string(typ)))
}
