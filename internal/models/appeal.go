package models

// AppealMessage is an inbound message on the approval channel.
type AppealMessage struct {
	ThreadID string `json:"thread_id" binding:"required"`
	Sender   string `json:"sender" binding:"required"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}
