package domain

// Channel names a stream of outbound frames on a session.
type Channel string

const (
	ChannelAgentUpdate Channel = "agent-update"
	ChannelChatHistory Channel = "chat-history"
	ChannelSession     Channel = "session"
)

// UpdateType enumerates agent progress events, in emission order.
type UpdateType string

const (
	UpdateThinking         UpdateType = "thinking"
	UpdateThinkingComplete UpdateType = "thinking-complete"
	UpdateExecuting        UpdateType = "executing"
	UpdateExecutionResult  UpdateType = "execution-result"
	UpdateAnalyzing        UpdateType = "analyzing"
	UpdateComplete         UpdateType = "complete"
	UpdateError            UpdateType = "error"
)

// ErrorScope separates connection-level errors from an instruction's
// terminal error. Instruction errors carry no scope.
type ErrorScope string

const ScopeConnection ErrorScope = "connection"

// AgentUpdate is the payload of an agent-update frame.
type AgentUpdate struct {
	Type     UpdateType       `json:"type"`
	Message  string           `json:"message,omitempty"`
	Thinking []string         `json:"thinking,omitempty"`
	Index    *int             `json:"index,omitempty"`
	Command  string           `json:"command,omitempty"`
	Risk     *RiskAssessment  `json:"risk,omitempty"`
	Result   *ExecutionResult `json:"result,omitempty"`
	Analysis string           `json:"analysis,omitempty"`
	History  []Interaction    `json:"history,omitempty"`
	Scope    ErrorScope       `json:"scope,omitempty"`
}

// Envelope is one outbound frame.
type Envelope struct {
	Event     Channel       `json:"event"`
	Update    *AgentUpdate  `json:"data,omitempty"`
	History   []Interaction `json:"history,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
}

// NewUpdate wraps an AgentUpdate in an agent-update envelope.
func NewUpdate(update AgentUpdate) Envelope {
	return Envelope{Event: ChannelAgentUpdate, Update: &update}
}

// NewErrorUpdate builds the terminal error frame.
func NewErrorUpdate(message string) Envelope {
	return NewUpdate(AgentUpdate{Type: UpdateError, Message: message})
}

// NewConnectionError reports a rejected frame. It does not end any
// in-flight instruction.
func NewConnectionError(message string) Envelope {
	return NewUpdate(AgentUpdate{Type: UpdateError, Message: message, Scope: ScopeConnection})
}

// InstructionRequest is the inbound process-instruction payload.
type InstructionRequest struct {
	Instruction string `json:"instruction"`
	ServerName  string `json:"serverName"`
	Model       string `json:"model,omitempty"`
}
