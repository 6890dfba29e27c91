package entrez

// Hooks for black-box tests.
var (
	DecodeBody          = decodeBody
	NewRequest          = newRequest
	ErrNoPayload        = errNoPayload
	HasErrorContent     = hasErrorContent
	ErrorContentMessage = errorContentMessage
)
