package emailsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
)

// Backends
const (
	BackendConsole  = "console"
	BackendSMTP     = "smtp"
	BackendSendgrid = "sendgrid"
)

type (
	// Transport delivers one rendered message.
	Transport interface {
		Name() string
		Send(ctx context.Context, msg core.EmailMessage) error
	}

	// DeliveryObserver is notified of every final delivery status.
	DeliveryObserver interface {
		EmailDelivered(status string)
	}

	permanentError struct {
		err error
	}
)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Cause() error  { return e.err }
func (e *permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Service sends emails in the background through a Transport, retrying transient failures.
type Service struct {
	conf      *core.Config
	logger    core.Logger
	transport Transport
	tracker   *tracker
	observer  DeliveryObserver
	sync      bool

	wg sync.WaitGroup
}

var (
	_ core.EmailService = (*Service)(nil)
	_ core.DeliveryLog  = (*Service)(nil)
)

// NewService returns a Service for the backend selected by conf.Email.Backend.
// observer may be nil.
func NewService(conf *core.Config, logger core.Logger, observer DeliveryObserver) (*Service, error) {
	var transport Transport
	switch conf.Email.Backend {
	case BackendConsole, "":
		transport = newConsoleTransport(conf, logger, false)
	case BackendSMTP:
		transport = newSMTPTransport(conf)
	case BackendSendgrid:
		transport = newSendgridTransport(conf)
	default:
		return nil, errors.Errorf("unknown email backend %q", conf.Email.Backend)
	}
	return newService(conf, logger, transport, observer), nil
}

// NewConsoleServiceMock returns a Service sending synchronously to a silent console transport.
// Sent messages are available through SentMessages.
func NewConsoleServiceMock(conf *core.Config) *Service {
	svc := newService(conf, nil, newConsoleTransport(conf, nil, true), nil)
	svc.sync = true
	return svc
}

func newService(conf *core.Config, logger core.Logger, transport Transport, observer DeliveryObserver) *Service {
	return &Service{
		conf:      conf,
		logger:    logger,
		transport: transport,
		tracker:   newTracker(conf.Email.LogSize),
		observer:  observer,
	}
}

func (svc *Service) Backend() string { return svc.transport.Name() }

func (svc *Service) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		id := svc.tracker.queue(msg)
		if svc.sync {
			svc.sendMessage(id, msg)
			continue
		}
		svc.wg.Add(1)
		go func(id string, msg *core.EmailMessage) {
			defer svc.wg.Done()
			svc.sendMessage(id, msg)
		}(id, msg)
	}
}

func (svc *Service) sendMessage(id string, msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		svc.finish(id, msg, core.DeliveryFailed, 0, errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		svc.finish(id, msg, core.DeliverySkipped, 0, nil)
		return
	}

	maxAttempts := svc.conf.Email.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var (
		err      error
		attempts int
	)
	for attempts < maxAttempts {
		attempts++
		if err = svc.attempt(*msg); err == nil {
			svc.finish(id, msg, core.DeliverySent, attempts, nil)
			return
		}
		if isPermanent(err) {
			break
		}
		if attempts < maxAttempts && svc.conf.Email.RetryDelay > 0 {
			time.Sleep(svc.conf.Email.RetryDelay)
		}
	}
	svc.finish(id, msg, core.DeliveryFailed, attempts, err)
}

func (svc *Service) attempt(msg core.EmailMessage) error {
	ctx := context.Background()
	if svc.conf.Email.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.conf.Email.SendTimeout)
		defer cancel()
	}
	return svc.transport.Send(ctx, msg)
}

func (svc *Service) finish(id string, msg *core.EmailMessage, status string, attempts int, err error) {
	svc.tracker.update(id, status, attempts, err)
	if svc.observer != nil {
		svc.observer.EmailDelivered(status)
	}
	if svc.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"backend":  svc.transport.Name(),
		"to":       msg.Recipients(),
		"subject":  msg.Subject,
		"template": msg.TemplateName,
		"attempts": attempts,
	}
	switch status {
	case core.DeliveryFailed:
		svc.logger.Error("email delivery failed", err, fields)
	case core.DeliverySkipped:
		svc.logger.Warn("email skipped: no recipients or content", fields)
	default:
		svc.logger.Debug("email sent", fields)
	}
}

// Wait blocks until every queued message is resolved.
func (svc *Service) Wait() {
	svc.wg.Wait()
}

// Deliveries returns the most recent deliveries, newest first.
func (svc *Service) Deliveries(limit int) []core.Delivery {
	return svc.tracker.Deliveries(limit)
}

// SentMessages returns the messages handed to the console transport; nil for other backends.
func (svc *Service) SentMessages() []core.EmailMessage {
	if ct, ok := svc.transport.(*consoleTransport); ok {
		return ct.messages()
	}
	return nil
}
