package emailsvc

import (
	"context"
	"crypto/tls"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"

	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
)

type smtpTransport struct {
	host        string
	port        int
	username    string
	password    string
	implicitTLS bool
	from        mail.Address
	subjPrefix  string
}

func newSMTPTransport(conf *core.Config) *smtpTransport {
	return &smtpTransport{
		host:        conf.Email.SMTPHost,
		port:        conf.Email.SMTPPort,
		username:    conf.Email.SMTPUsername,
		password:    conf.Email.SMTPPassword,
		implicitTLS: conf.Email.SMTPImplicitTLS,
		from:        conf.DefaultFrom(),
		subjPrefix:  "[" + conf.AppName + "] ",
	}
}

func (t *smtpTransport) Name() string { return BackendSMTP }

func (t *smtpTransport) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	tlsConf := &tls.Config{ServerName: t.host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if t.implicitTLS {
		d := tls.Dialer{Config: tlsConf}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", addr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "creating smtp client")
	}
	if !t.implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err = client.StartTLS(tlsConf); err != nil {
				_ = client.Close()
				return nil, errors.Wrap(err, "starting tls")
			}
		}
	}
	return client, nil
}

func (t *smtpTransport) Send(ctx context.Context, msg core.EmailMessage) error {
	if t.username == "" || t.password == "" {
		return Permanent(errors.New("smtp credentials are not configured"))
	}
	body, err := buildMIME(t.from, t.subjPrefix+msg.Subject, msg)
	if err != nil {
		return Permanent(err)
	}

	client, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err = client.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
		if isAuthFailure(err) {
			return Permanent(errors.Wrap(err, "smtp authentication failed"))
		}
		return errors.Wrap(err, "smtp authentication")
	}
	if err = client.Mail(t.from.Address); err != nil {
		return errors.Wrap(err, "setting sender")
	}
	for _, rcpt := range msg.Recipients() {
		if err = client.Rcpt(rcpt); err != nil {
			return errors.Wrapf(err, "setting recipient %s", rcpt)
		}
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "opening data writer")
	}
	if _, err = w.Write(body); err != nil {
		return errors.Wrap(err, "writing message")
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "closing data writer")
	}
	return client.Quit()
}

// 534 & 535 are the SMTP replies for rejected credentials.
func isAuthFailure(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code == 534 || tpErr.Code == 535
	}
	return false
}
