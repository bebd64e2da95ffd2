package protocol

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
)

// SMTPMessage carries the fields the SMTP-only options populate
// (-C/-D/-f/-g/-R/-s) for one outbound confirmation or distribution
// mail.
type SMTPMessage struct {
	From       string
	To         []string
	ReplyTo    string
	Charset    string
	GroupDomain string
	Subject    string
	Body       []byte
}

// SMTP implements Adapter's Connect/Auth/Quit over net/smtp, and exposes
// Send for the confirmation correlator's outbound mail and the
// -s/-f/-R/-C/-g/-D send options.
//
// Envelope, when set, is the template StoreFile fills in per file: the
// send worker populates From/To/ReplyTo/Charset from its -f/-R/-C
// options before the first transfer.
type SMTP struct {
	opts     Options
	client   *smtp.Client
	flag     TimeoutFlag
	Envelope SMTPMessage
}

// Connect dials the SMTP server and issues EHLO/HELO.
func (a *SMTP) Connect(ctx context.Context, opts Options) error {
	a.opts = opts
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	if opts.Simulation {
		return nil
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialTCP(ctx, dialer, addr)
	if err != nil {
		a.flag = classifyTimeout(err)
		return err
	}
	if opts.TLS {
		conn = tls.Client(conn, &tls.Config{ServerName: opts.Host})
	}

	client, err := smtp.NewClient(conn, opts.Host)
	if err != nil {
		a.flag = classifyTimeout(err)
		return fmt.Errorf("smtp: new client: %w", err)
	}
	a.client = client
	return nil
}

// Auth applies PLAIN auth if credentials were supplied.
func (a *SMTP) Auth(ctx context.Context) error {
	if a.opts.Simulation || a.opts.User == "" {
		return nil
	}
	auth := smtp.PlainAuth("", a.opts.User, a.opts.Pass, a.opts.Host)
	if err := a.client.Auth(auth); err != nil {
		return fmt.Errorf("smtp: auth: %w", err)
	}
	return nil
}

// Send transmits msg as a MAIL FROM/RCPT TO/DATA sequence, honouring
// msg.ReplyTo/msg.Charset as header fields for the -R/-C options.
// msg.GroupDomain is not read here; GroupAddress applies the -g domain
// to recipient addresses before they reach msg.To.
func (a *SMTP) Send(msg SMTPMessage) error {
	if a.opts.Simulation {
		return nil
	}
	if err := a.client.Mail(msg.From); err != nil {
		return a.classifySendError("mail from", err)
	}
	for _, to := range msg.To {
		if err := a.client.Rcpt(to); err != nil {
			return a.classifySendError(fmt.Sprintf("rcpt to %s", to), err)
		}
	}
	w, err := a.client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	defer w.Close()

	var headers strings.Builder
	fmt.Fprintf(&headers, "From: %s\r\n", msg.From)
	fmt.Fprintf(&headers, "To: %s\r\n", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&headers, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	if msg.Subject != "" {
		fmt.Fprintf(&headers, "Subject: %s\r\n", msg.Subject)
	}
	charset := msg.Charset
	if charset == "" {
		charset = "us-ascii"
	}
	fmt.Fprintf(&headers, "Content-Type: text/plain; charset=%s\r\n\r\n", charset)

	if _, err := w.Write([]byte(headers.String())); err != nil {
		return err
	}
	_, err = w.Write(msg.Body)
	return err
}

// StoreFile implements FileStorer: one mail per file, the file name as
// the subject and its contents as the body, using the Envelope template
// for addressing.
func (a *SMTP) StoreFile(ctx context.Context, name string, data []byte) error {
	if len(a.Envelope.To) == 0 {
		return fmt.Errorf("smtp: no recipients configured for %s", name)
	}
	msg := a.Envelope
	msg.Subject = name
	msg.Body = data
	return a.Send(msg)
}

// Read/Write are present to satisfy Adapter; use Send for outbound mail.
func (a *SMTP) Read(buf []byte) (int, error)  { return 0, fmt.Errorf("smtp: use Send") }
func (a *SMTP) Write(buf []byte) (int, error) { return 0, fmt.Errorf("smtp: use Send") }

// Quit issues QUIT and closes the connection.
func (a *SMTP) Quit(ctx context.Context) error {
	if a.opts.Simulation || a.client == nil {
		return nil
	}
	return a.client.Quit()
}

// TimeoutFlag reports the last classified I/O outcome.
func (a *SMTP) TimeoutFlag() TimeoutFlag { return a.flag }

// GroupAddress builds a group-mail address from a user part and the
// -g option's msg.GroupDomain.
func GroupAddress(user, groupDomain string) string {
	if groupDomain == "" {
		return user
	}
	return fmt.Sprintf("%s@%s", user, groupDomain)
}

// textprotoStatus extracts the numeric status from a *textproto.Error.
func textprotoStatus(err error) (int, bool) {
	if tpErr, ok := err.(*textproto.Error); ok {
		return tpErr.Code, true
	}
	return 0, false
}

// classifySendError distinguishes a 4xx transient SMTP reply from a 5xx
// permanent one, falling back to a plain wrapped error when the
// failure never reached the wire as a numbered reply.
func (a *SMTP) classifySendError(step string, err error) error {
	code, ok := textprotoStatus(err)
	if !ok {
		return fmt.Errorf("smtp: %s: %w", step, err)
	}
	if code/100 == 4 {
		return fmt.Errorf("smtp: %s: transient reply %d: %w", step, code, err)
	}
	return fmt.Errorf("smtp: %s: permanent reply %d: %w", step, code, err)
}
