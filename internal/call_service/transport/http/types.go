package http

// TriggerCallRequest is the JSON body of POST /api/call.
type TriggerCallRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
}

// TriggerCallResponse is the success body of POST /api/call.
type TriggerCallResponse struct {
	Message string `json:"message"`
	SID     string `json:"sid"`
}

// ErrorResponse is the JSON error envelope for API-facing endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
