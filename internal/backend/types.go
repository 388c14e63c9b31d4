package backend

// BudgetSnapshot is the server-computed AI usage budget. It is replaced
// wholesale on every response that includes a budget field and never derived
// locally.
type BudgetSnapshot struct {
	Enabled      bool     `json:"enabled"`
	LimitUSD     *float64 `json:"limitUsd"`
	RemainingUSD *float64 `json:"remainingUsd"`
	TokensUsed   int      `json:"tokensUsed"`
	IsExhausted  bool     `json:"isExhausted"`
}

// RepoFile is one file of the read-only repository snapshot delivered at
// session start.
type RepoFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// TaskInfo describes the assessment task configuration.
type TaskInfo struct {
	StarterCode          string     `json:"starterCode"`
	StarterFilePath      string     `json:"starterFilePath,omitempty"`
	DurationMinutes      int        `json:"durationMinutes"`
	RepoStructure        []RepoFile `json:"repoStructure,omitempty"`
	ProctoringEnabled    bool       `json:"proctoringEnabled"`
	TerminalMode         bool       `json:"terminalMode"`
	ClaudeBudgetLimitUSD *float64   `json:"claudeBudgetLimitUsd,omitempty"`
}

// StartResponse is the bootstrap payload for a session.
type StartResponse struct {
	AssessmentID         string          `json:"assessmentId"`
	Token                string          `json:"token"`
	TimeRemainingSeconds int             `json:"timeRemainingSeconds"`
	Task                 TaskInfo        `json:"task"`
	ClaudeBudget         *BudgetSnapshot `json:"claudeBudget,omitempty"`
	IsTimerPaused        bool            `json:"isTimerPaused"`
	PauseReason          string          `json:"pauseReason,omitempty"`
	PauseMessage         string          `json:"pauseMessage,omitempty"`
}

// ExecuteRequest runs candidate code against the task harness.
type ExecuteRequest struct {
	AssessmentID string `json:"assessmentId"`
	Code         string `json:"code"`
	Token        string `json:"token"`
}

// ExecuteResponse carries execution output. Execution failures of the
// candidate's own code arrive in Stderr/Output, not as transport errors.
type ExecuteResponse struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
	Output string `json:"output,omitempty"`
}

// ChatTurn is one prior message of the AI conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Telemetry is attached to every AI message at call time.
type Telemetry struct {
	EditorContent      string `json:"editorContent"`
	PasteDetected      bool   `json:"pasteDetected"`
	BrowserFocused     bool   `json:"browserFocused"`
	MsSincePrevMessage *int64 `json:"msSincePrevMessage"`
}

// AIMessageRequest sends a candidate message to the AI assistant.
type AIMessageRequest struct {
	AssessmentID string     `json:"assessmentId"`
	Message      string     `json:"message"`
	History      []ChatTurn `json:"history"`
	Token        string     `json:"token"`
	Telemetry    Telemetry  `json:"telemetry"`
}

// AIMessageResponse is the assistant's reply plus any authoritative state
// the server pushes alongside it.
type AIMessageResponse struct {
	Response             string          `json:"response,omitempty"`
	Message              string          `json:"message,omitempty"`
	ClaudeBudget         *BudgetSnapshot `json:"claudeBudget,omitempty"`
	TimeRemainingSeconds *int            `json:"timeRemainingSeconds,omitempty"`
	IsTimerPaused        *bool           `json:"isTimerPaused,omitempty"`
	PauseReason          string          `json:"pauseReason,omitempty"`
	PauseMessage         string          `json:"pauseMessage,omitempty"`
	RequiresBudgetTopUp  bool            `json:"requiresBudgetTopUp,omitempty"`
}

// Reply returns the assistant text, preferring Response over Message.
func (r *AIMessageResponse) Reply() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Message
}

// RetryHealthResponse reports the outcome of an AI health probe.
type RetryHealthResponse struct {
	Success              bool   `json:"success"`
	IsTimerPaused        bool   `json:"isTimerPaused"`
	PauseReason          string `json:"pauseReason,omitempty"`
	TimeRemainingSeconds *int   `json:"timeRemainingSeconds,omitempty"`
	Message              string `json:"message,omitempty"`
}

// SubmitRequest sends the candidate's final code.
type SubmitRequest struct {
	AssessmentID   string `json:"assessmentId"`
	FinalCode      string `json:"finalCode"`
	Token          string `json:"token"`
	TabSwitchCount int    `json:"tabSwitchCount"`
}

// SubmitResponse acknowledges a submission.
type SubmitResponse struct {
	Success bool `json:"success"`
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Code        string `json:"code"`
	PauseReason string `json:"pauseReason,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}
