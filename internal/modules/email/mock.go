package email

import "sync"

// MockSender records sends; used in dev and tests.
type MockSender struct {
	mu   sync.Mutex
	Sent []SentMail
	Fail error
}

type SentMail struct {
	To      string
	Subject string
	Text    string
}

func (m *MockSender) SendEmail(to string, toName string, subject string, htmlBody string, textBody string) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Text: textBody})
	return nil
}

func (m *MockSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
