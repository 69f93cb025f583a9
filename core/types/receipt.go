package types

// Receipt records the outcome of a submitted transaction.
type Receipt struct {
	TxHash    string   `json:"txHash"`
	Type      string   `json:"type"`
	From      string   `json:"from"`
	Nonce     uint64   `json:"nonce"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	ErrorCode string   `json:"errorCode,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Events    []*Event `json:"events,omitempty"`
	// Result carries operation specific output such as the reward paid.
	Result map[string]string `json:"result,omitempty"`
}
