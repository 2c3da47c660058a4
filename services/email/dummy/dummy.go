package dummymail

import (
	"sync"

	"github.com/daruliman/pondok/core"
)

// service records messages instead of sending them. Used by tests.
type service struct {
	mu           sync.Mutex
	sentMessages []core.EmailMessage
}

var _ core.EmailService = (*service)(nil)

func NewService() *service {
	return &service{}
}

func (svc *service) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, msg := range messages {
		if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
			svc.sentMessages = append(svc.sentMessages, *msg)
		}
	}
}

func (svc *service) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	out := make([]core.EmailMessage, len(svc.sentMessages))
	copy(out, svc.sentMessages)
	return out
}
