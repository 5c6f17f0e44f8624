package internal

// Event is an accepted webhook event handed downstream. RawPayload holds
// the unmodified body bytes; Data is the flattened payload used by rule
// expressions and downstream routing.
type Event struct {
	Integration string                 `json:"integration"`
	Provider    string                 `json:"provider"`
	Name        string                 `json:"name"`
	RequestID   string                 `json:"request_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	RawPayload  []byte                 `json:"-"`
	RawObject   interface{}            `json:"-"`
}
