package proto

// QueryRequest asks the broker to answer a query string.
type QueryRequest struct {
	Query string `cbor:"query"`
	// Provider selects a provider by name, bypassing prefix routing.
	Provider string `cbor:"provider,omitempty"`
	// MaxResults overrides the configured default when positive.
	MaxResults int `cbor:"max_results,omitempty"`
}

// Item is one ranked match.
type Item struct {
	ID       string            `cbor:"id,omitempty"`
	Label    string            `cbor:"label"`
	Detail   string            `cbor:"detail,omitempty"`
	Score    float64           `cbor:"score"`
	Payload  string            `cbor:"payload,omitempty"`
	Icon     string            `cbor:"icon,omitempty"`
	Provider string            `cbor:"provider,omitempty"`
	Metadata map[string]string `cbor:"metadata,omitempty"`
}

// Error kinds reported in a QueryResponse.
const (
	KindUnknownProvider       = "UnknownProvider"
	KindProviderDisabled      = "ProviderDisabled"
	KindMalformedRequest      = "MalformedRequest"
	KindEmptyExpression       = "EmptyExpression"
	KindUnexpectedToken       = "UnexpectedToken"
	KindUnbalancedParentheses = "UnbalancedParentheses"
	KindDivisionByZero        = "DivisionByZero"
	KindNonFiniteResult       = "NonFiniteResult"
	KindInternal              = "Internal"
)

// ErrorDescriptor reports a provider-level failure. Position is a byte
// offset into the provider's input when the failure has one, -1 otherwise.
type ErrorDescriptor struct {
	Kind     string `cbor:"kind"`
	Message  string `cbor:"message"`
	Position int    `cbor:"position"`
}

// QueryResponse answers a QueryRequest.
type QueryResponse struct {
	Query    string           `cbor:"query"`
	QID      string           `cbor:"qid"`
	Provider string           `cbor:"provider,omitempty"`
	Items    []Item           `cbor:"items"`
	Error    *ErrorDescriptor `cbor:"error,omitempty"`
}

// ListProvidersRequest has an empty body.
type ListProvidersRequest struct{}

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	Name        string `cbor:"name"`
	Description string `cbor:"description,omitempty"`
	Prefix      string `cbor:"prefix"`
	Enabled     bool   `cbor:"enabled"`
}

// ListProvidersResponse lists providers in registry order.
type ListProvidersResponse struct {
	Providers []ProviderInfo `cbor:"providers"`
}
