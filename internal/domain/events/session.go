package events

// --- Clock Event Payloads ---

// ClockTickPayload represents the payload for clock_tick events.
type ClockTickPayload struct {
	RemainingSeconds int  `json:"remaining_seconds"`
	TimeLow          bool `json:"time_low"`
}

// NewClockTickEvent creates a new clock_tick event.
func NewClockTickEvent(sessionID string, remaining int, timeLow bool) *BaseEvent {
	return NewForSession(EventTypeClockTick, sessionID, ClockTickPayload{
		RemainingSeconds: remaining,
		TimeLow:          timeLow,
	})
}

// NewClockExpiredEvent creates a new clock_expired event.
func NewClockExpiredEvent(sessionID string) *BaseEvent {
	return NewForSession(EventTypeClockExpired, sessionID, nil)
}

// --- Session Lifecycle Payloads ---

// SessionStartedPayload represents the payload for session_started events.
type SessionStartedPayload struct {
	AssessmentID     string `json:"assessment_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
	ProctoringOn     bool   `json:"proctoring_enabled"`
	TerminalMode     bool   `json:"terminal_mode"`
	BudgetEnabled    bool   `json:"budget_enabled"`
}

// NewSessionStartedEvent creates a new session_started event.
func NewSessionStartedEvent(sessionID, assessmentID string, remaining int, proctoring, terminalMode, budget bool) *BaseEvent {
	return NewForSession(EventTypeSessionStarted, sessionID, SessionStartedPayload{
		AssessmentID:     assessmentID,
		RemainingSeconds: remaining,
		ProctoringOn:     proctoring,
		TerminalMode:     terminalMode,
		BudgetEnabled:    budget,
	})
}

// PausePayload represents the payload for session_paused events.
type PausePayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// NewSessionPausedEvent creates a new session_paused event.
func NewSessionPausedEvent(sessionID, reason, message string) *BaseEvent {
	return NewForSession(EventTypeSessionPaused, sessionID, PausePayload{
		Reason:  reason,
		Message: message,
	})
}

// ResumePayload represents the payload for session_resumed events.
type ResumePayload struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

// NewSessionResumedEvent creates a new session_resumed event.
func NewSessionResumedEvent(sessionID string, remaining int) *BaseEvent {
	return NewForSession(EventTypeSessionResumed, sessionID, ResumePayload{
		RemainingSeconds: remaining,
	})
}

// SubmittedPayload represents the payload for session_submitted events.
type SubmittedPayload struct {
	Auto           bool `json:"auto"`
	TabSwitchCount int  `json:"tab_switch_count"`
}

// NewSessionSubmittedEvent creates a new session_submitted event.
func NewSessionSubmittedEvent(sessionID string, auto bool, tabSwitches int) *BaseEvent {
	return NewForSession(EventTypeSessionSubmitted, sessionID, SubmittedPayload{
		Auto:           auto,
		TabSwitchCount: tabSwitches,
	})
}

// SubmitFailedPayload represents the payload for submit_failed events.
type SubmitFailedPayload struct {
	Error string `json:"error"`
}

// NewSubmitFailedEvent creates a new submit_failed event.
func NewSubmitFailedEvent(sessionID, errMsg string) *BaseEvent {
	return NewForSession(EventTypeSubmitFailed, sessionID, SubmitFailedPayload{Error: errMsg})
}

// NewSessionClosedEvent creates a new session_closed event.
func NewSessionClosedEvent(sessionID string) *BaseEvent {
	return NewForSession(EventTypeSessionClosed, sessionID, nil)
}

// --- AI Interaction Payloads ---

// BudgetPayload represents the payload for budget_updated events.
type BudgetPayload struct {
	Enabled      bool     `json:"enabled"`
	LimitUSD     *float64 `json:"limit_usd,omitempty"`
	RemainingUSD *float64 `json:"remaining_usd,omitempty"`
	TokensUsed   int      `json:"tokens_used"`
	IsExhausted  bool     `json:"is_exhausted"`
}

// NewBudgetUpdatedEvent creates a new budget_updated event.
func NewBudgetUpdatedEvent(sessionID string, p BudgetPayload) *BaseEvent {
	return NewForSession(EventTypeBudgetUpdated, sessionID, p)
}

// AIMessagePayload represents the payload for ai_message events.
type AIMessagePayload struct {
	Role string `json:"role"` // user or assistant
	Text string `json:"text"`
}

// NewAIMessageEvent creates a new ai_message event.
func NewAIMessageEvent(sessionID, role, text string) *BaseEvent {
	return NewForSession(EventTypeAIMessage, sessionID, AIMessagePayload{
		Role: role,
		Text: text,
	})
}

// ExecutionResultPayload represents the payload for execution_result events.
type ExecutionResultPayload struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewExecutionResultEvent creates a new execution_result event.
func NewExecutionResultEvent(sessionID string, p ExecutionResultPayload) *BaseEvent {
	return NewForSession(EventTypeExecutionResult, sessionID, p)
}

// --- Proctoring Payloads ---

// ProctoringFlaggedPayload represents the payload for proctoring_flagged events.
type ProctoringFlaggedPayload struct {
	TabSwitchCount int `json:"tab_switch_count"`
}

// NewProctoringFlaggedEvent creates a new proctoring_flagged event.
func NewProctoringFlaggedEvent(sessionID string, count int) *BaseEvent {
	return NewForSession(EventTypeProctoringFlagged, sessionID, ProctoringFlaggedPayload{
		TabSwitchCount: count,
	})
}

// NewProctoringClearedEvent creates a new proctoring_cleared event.
func NewProctoringClearedEvent(sessionID string) *BaseEvent {
	return NewForSession(EventTypeProctoringCleared, sessionID, nil)
}

// --- Repository Payloads ---

// FileSelectedPayload represents the payload for file_selected events.
type FileSelectedPayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewFileSelectedEvent creates a new file_selected event.
func NewFileSelectedEvent(sessionID, path, content string) *BaseEvent {
	return NewForSession(EventTypeFileSelected, sessionID, FileSelectedPayload{
		Path:    path,
		Content: content,
	})
}

// FileChangedPayload represents the payload for file_changed events.
type FileChangedPayload struct {
	Path string `json:"path"`
	Op   string `json:"op"` // create, write, remove
}

// NewFileChangedEvent creates a new file_changed event.
func NewFileChangedEvent(sessionID, path, op string) *BaseEvent {
	return NewForSession(EventTypeFileChanged, sessionID, FileChangedPayload{
		Path: path,
		Op:   op,
	})
}

// --- Terminal Payloads ---

// TerminalOutputPayload represents the payload for terminal_output events.
type TerminalOutputPayload struct {
	Data string `json:"data"`
}

// NewTerminalOutputEvent creates a new terminal_output event.
func NewTerminalOutputEvent(sessionID, data string) *BaseEvent {
	return NewForSession(EventTypeTerminalOutput, sessionID, TerminalOutputPayload{Data: data})
}

// TerminalErrorPayload represents the payload for terminal_error events.
type TerminalErrorPayload struct {
	Message string `json:"message"`
}

// NewTerminalErrorEvent creates a new terminal_error event.
func NewTerminalErrorEvent(sessionID, message string) *BaseEvent {
	return NewForSession(EventTypeTerminalError, sessionID, TerminalErrorPayload{Message: message})
}

// NewTerminalExitEvent creates a new terminal_exit event.
func NewTerminalExitEvent(sessionID string) *BaseEvent {
	return NewForSession(EventTypeTerminalExit, sessionID, nil)
}

// --- Error Payload ---

// ErrorPayload represents the payload for error events.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent creates a new error event.
func NewErrorEvent(sessionID, code, message string) *BaseEvent {
	return NewForSession(EventTypeError, sessionID, ErrorPayload{
		Code:    code,
		Message: message,
	})
}
