// Package assistant runs one chat turn end to end: classify, gather context,
// generate, record, respond.
package assistant

// Request is the body of POST /api/assistant/chat and of each websocket
// message on /ws/assistant.
type Request struct {
	Message       string          `json:"message"`
	UserID        string          `json:"userId"`
	Context       *RequestContext `json:"context,omitempty"`
	ForcePersona  string          `json:"forcePersona,omitempty"`
	ForceProvider string          `json:"forceProvider,omitempty"`
	ForceModel    string          `json:"forceModel,omitempty"`

	Channel   string `json:"-"`
	SessionID string `json:"-"`
}

// RequestContext carries optional client hints.
type RequestContext struct {
	Source string `json:"source,omitempty"`
	Locale string `json:"locale,omitempty"`
}

// Response is returned for every answered turn, including fallback answers.
type Response struct {
	Message         string `json:"message"`
	Persona         string `json:"persona"`
	PersonaName     string `json:"personaName"`
	Completeness    int    `json:"completeness"`
	TotalDataPoints int    `json:"totalDataPoints"`
	ProviderUsed    string `json:"providerUsed"`
	ConversationID  string `json:"conversationId"`
	Success         bool   `json:"success"`
}

// errorResponse is the websocket error frame; HTTP uses api.Error.
type errorResponse struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}
