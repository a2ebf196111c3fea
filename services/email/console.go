package emailsvc

import (
	"context"
	"net/mail"
	"sync"

	"github.com/mwalefaith2021/jjschool/core"
)

// consoleTransport dumps every message to the logger instead of sending it.
type consoleTransport struct {
	from          mail.Address
	subjPrefix    string
	logger        core.Logger
	disableOutput bool

	mu   sync.Mutex
	sent []core.EmailMessage
}

func newConsoleTransport(conf *core.Config, logger core.Logger, disableOutput bool) *consoleTransport {
	return &consoleTransport{
		from:          conf.DefaultFrom(),
		subjPrefix:    "[" + conf.AppName + "] ",
		logger:        logger,
		disableOutput: disableOutput,
	}
}

func (t *consoleTransport) Name() string { return BackendConsole }

func (t *consoleTransport) Send(_ context.Context, msg core.EmailMessage) error {
	body, err := buildMIME(t.from, t.subjPrefix+msg.Subject, msg)
	if err != nil {
		return Permanent(err)
	}
	if !t.disableOutput && t.logger != nil {
		t.logger.Info("email:\n" + string(body))
	}

	t.mu.Lock()
	t.sent = append(t.sent, msg)
	t.mu.Unlock()
	return nil
}

func (t *consoleTransport) messages() []core.EmailMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := make([]core.EmailMessage, len(t.sent))
	copy(msgs, t.sent)
	return msgs
}
