package model

// Action is the text answer the chat is expected to send next.
type Action int

const (
	DefaultAction Action = iota
	ExpectingBatchInput
	ExpectingBatchMode
	ExpectingBatchDefaults
	ExpectingBatchIndividual
	ExpectingEditAmount
	ExpectingEditProfit
	ExpectingEditNotes
)

type Session struct {
	Action    Action `json:"action"`
	Token     string `json:"token,omitempty"`
	HoldingID int64  `json:"holdingID,omitempty"`
}
