package modules

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
	codeUnauthorized  = -32001
	codeNotFound      = -32004
	codeConflict      = -32009
	codeRejected      = -32010
)

// ModuleError carries an RPC-ready error with its HTTP status and JSON-RPC
// code. Handlers write it verbatim.
type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
