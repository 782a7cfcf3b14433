package domain

import "encoding/json"

// SendResult is the daemon's acknowledgement of a message send.
// Timestamp is the network timestamp in milliseconds.
type SendResult struct {
	MessageHash     string `json:"messageHash"`
	SyncMessageHash string `json:"syncMessageHash"`
	Timestamp       int64  `json:"timestamp"`
}

// Attachment is a decoded file attached to an outgoing message.
// Data marshals to base64 on the wire (encoding/json []byte behavior).
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Reaction identifies an emoji reaction on a specific message.
// Timestamp and Author locate the target message; To is the conversation.
type Reaction struct {
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
	Emoji     string `json:"emoji"`
	Author    string `json:"author"`
}

// Envelope is one event fetched from the daemon's receive queue. Payload is
// kept opaque: the bridge forwards it without interpreting it.
type Envelope struct {
	Kind       EventKind       `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt int64           `json:"receivedAt"`
}
