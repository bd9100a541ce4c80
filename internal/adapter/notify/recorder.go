package notify

import (
	"sync"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Recorder captures notifications in memory. Tests and local runs use it
// in place of a real chat transport.
type Recorder struct {
	mu        sync.Mutex
	Texts     []RecordedText
	Documents []RecordedDocument
	FailWith  error
}

// RecordedText is one captured SendText call.
type RecordedText struct {
	ChatID  string
	Message string
}

// RecordedDocument is one captured SendDocument call.
type RecordedDocument struct {
	ChatID   string
	Filename string
	Caption  string
	Size     int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// SendText records the message, failing when FailWith is set.
func (r *Recorder) SendText(_ domain.Context, chatID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return domain.WrapAdapter("recorder", r.FailWith)
	}
	r.Texts = append(r.Texts, RecordedText{ChatID: chatID, Message: message})
	return nil
}

// SendDocument records the document metadata.
func (r *Recorder) SendDocument(_ domain.Context, chatID string, data []byte, filename, caption string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return domain.WrapAdapter("recorder", r.FailWith)
	}
	r.Documents = append(r.Documents, RecordedDocument{ChatID: chatID, Filename: filename, Caption: caption, Size: len(data)})
	return nil
}

// TextCount returns the number of captured texts.
func (r *Recorder) TextCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Texts)
}
