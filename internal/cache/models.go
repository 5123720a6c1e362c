package cache

import "encoding/json"

// Attachment is one entry in a message's attachment list. DecryptedURI is
// memoized once the attachment has been decrypted to local disk; a dangling
// URI (file evicted by the OS) is treated as a cache miss, never an error.
type Attachment struct {
	ID           string `json:"id"`
	FileID       string `json:"fileId"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	DecryptedURI string `json:"decryptedUri,omitempty"`
}

// Message is a denormalized snapshot of one chat message, keyed by ID.
// Attachments, Reactions and ReadBy are stored as JSON text columns.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	Content        string
	ContentType    string
	Attachments    []Attachment
	Reactions      json.RawMessage
	ReadBy         json.RawMessage
	Edited         bool
	CreatedAt      int64
	UpdatedAt      int64
}

// ConversationMeta tracks per-conversation sync state. LastSyncTime only
// moves forward.
type ConversationMeta struct {
	ConversationID string
	LastSyncTime   int64
	TotalCached    int64
	LastMessageID  string
}

func marshalAttachments(a []Attachment) (string, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func rawOrEmptyList(r json.RawMessage) string {
	if len(r) == 0 {
		return "[]"
	}
	return string(r)
}
