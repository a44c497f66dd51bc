// Package notify emails candidates of a position and records that they were emailed.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/template"

	"hrpull/internal/applicants"
	"hrpull/lib/assert"
	"hrpull/lib/telemetry"

	"github.com/go-git/go-billy/v5"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_notifier_send = "notifier.send"
	report_notifier_save = "notifier.save"
)

var tracer = telemetry.Tracer("hrpull.internal.notify")

// Message is the data templates are executed with.
type Message struct {
	Position  string
	Candidate *applicants.Candidate
}

// Template renders the subject and body of an email.
type Template struct {
	subject *template.Template
	body    *template.Template
}

// ParseTemplate reads a message template. A first line of the form "Subject: ..."
// sets the subject, otherwise `defaultSubject` is used.
func ParseTemplate(contents, defaultSubject string) (Template, error) {
	subject := defaultSubject
	body := contents
	first, rest, found := strings.Cut(contents, "\n")
	if value, ok := strings.CutPrefix(first, "Subject:"); ok {
		subject = strings.TrimSpace(value)
		body = strings.TrimLeft(rest, "\r\n")
		if !found {
			body = ""
		}
	}
	if strings.TrimSpace(body) == "" {
		return Template{}, fmt.Errorf("template has no body")
	}

	subjectTmpl, err := template.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return Template{}, fmt.Errorf("parse subject: %w", err)
	}
	bodyTmpl, err := template.New("body").Option("missingkey=error").Parse(body)
	if err != nil {
		return Template{}, fmt.Errorf("parse body: %w", err)
	}
	return Template{subject: subjectTmpl, body: bodyTmpl}, nil
}

func (t Template) render(msg Message) (subject string, body string, err error) {
	var buff bytes.Buffer
	err = t.subject.Execute(&buff, msg)
	if err != nil {
		return "", "", err
	}
	subject = strings.TrimSpace(buff.String())

	buff.Reset()
	err = t.body.Execute(&buff, msg)
	if err != nil {
		return "", "", err
	}
	return subject, buff.String(), nil
}

type Options struct {
	// Verdict restricts emails to candidates with this `_verdict_`, empty means all.
	Verdict string
	// DryRun renders every email without sending any or touching the snapshot.
	DryRun bool
}

// Result lists the candidates by what happened to them.
type Result struct {
	Sent    []int64
	Skipped []int64
}

type Notifier struct {
	fs     billy.Filesystem
	sender Sender
	from   string
	tel    telemetry.API
}

func NewNotifier(fs billy.Filesystem, sender Sender, from string, tel telemetry.API) Notifier {
	assert.NotNil(fs)
	assert.NotNil(sender)
	assert.NotNil(tel)
	assert.NotEmptyStr(from)

	return Notifier{
		fs:     fs,
		sender: sender,
		from:   from,
		tel:    telemetry.NewScopedAPI("notify", tel),
	}
}

func eligible(c *applicants.Candidate, opts Options) bool {
	if c.Emailed || c.EmailAddress() == "" {
		return false
	}
	return opts.Verdict == "" || c.Verdict == opts.Verdict
}

// Notify emails every candidate of `position` that was not emailed yet. The snapshot
// is saved after every email so a failure never causes a candidate to be emailed twice.
func (n Notifier) Notify(ctx context.Context, position string, tmpl Template, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Notify")
	defer span.End()
	span.SetAttributes(attribute.String("position", position))

	snapshot, err := applicants.LoadSnapshot(n.fs, position)
	if err != nil {
		return Result{}, err
	}

	ids := make([]int64, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var result Result
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		c := snapshot[id]
		if !eligible(c, opts) {
			result.Skipped = append(result.Skipped, id)
			continue
		}

		subject, body, err := tmpl.render(Message{Position: position, Candidate: c})
		if err != nil {
			return result, fmt.Errorf("candidate %d: render: %w", id, err)
		}

		if opts.DryRun {
			slog.InfoContext(ctx, "would send", "to", c.EmailAddress(), "subject", subject, "body", body)
			result.Sent = append(result.Sent, id)
			continue
		}

		mail := email.NewEmail()
		mail.From = n.from
		mail.To = []string{c.EmailAddress()}
		mail.Subject = subject
		mail.Text = []byte(body)

		err = n.sender.Send(ctx, mail)
		if err != nil {
			n.tel.ReportBroken(report_notifier_send, err, c.Folder)
			return result, fmt.Errorf("email %s: %w", c.DisplayName(), err)
		}
		slog.InfoContext(ctx, "sent", "to", c.EmailAddress(), "candidate", c.Folder)

		c.Emailed = true
		result.Sent = append(result.Sent, id)
		err = applicants.SaveSnapshot(n.fs, position, snapshot)
		if err != nil {
			n.tel.ReportBroken(report_notifier_save, err, position)
			return result, err
		}
	}
	return result, nil
}
