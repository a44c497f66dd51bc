package notify

import (
	"context"
	"errors"
	"testing"

	"hrpull/internal/applicants"
	"hrpull/lib/telemetry"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []*email.Email
	failOn string
}

func (s *fakeSender) Send(ctx context.Context, mail *email.Email) error {
	if mail.To[0] == s.failOn {
		return errors.New("550 mailbox unavailable")
	}
	s.sent = append(s.sent, mail)
	return nil
}

const testTemplate = `Subject: Your application for {{.Position}}

Dear {{.Candidate.FirstName}} {{.Candidate.LastName}},

Thank you for applying.
`

func strptr(s string) *string {
	return &s
}

func seed(t *testing.T) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	candidate := func(id int64, first, last string, email *string, verdict string, emailed bool) *applicants.Candidate {
		c := applicants.NewCandidate(applicants.Listing{ID: id, FirstName: first, LastName: last})
		c.Email = email
		c.Verdict = verdict
		c.Emailed = emailed
		return c
	}
	snapshot := applicants.Snapshot{
		1: candidate(1, "Alan", "Turing", strptr("alan@example.com"), "no", false),
		2: candidate(2, "Ada", "Lovelace", strptr("ada@example.com"), "yes", false),
		3: candidate(3, "Grace", "Hopper", strptr("grace@example.com"), "no", true),
		4: candidate(4, "Ken", "Thompson", nil, "no", false),
	}
	require.NoError(t, applicants.SaveSnapshot(fs, "swe", snapshot))
	return fs
}

func mustTemplate(t *testing.T) Template {
	t.Helper()
	tmpl, err := ParseTemplate(testTemplate, "unused")
	require.NoError(t, err)
	return tmpl
}

func TestNotify(t *testing.T) {
	fs := seed(t)
	sender := &fakeSender{}
	notifier := NewNotifier(fs, sender, "Hiring <hr@example.edu>", &telemetry.Recorder{})

	result, err := notifier.Notify(context.Background(), "swe", mustTemplate(t), Options{})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, result.Sent)
	require.Equal(t, []int64{3, 4}, result.Skipped)

	require.Len(t, sender.sent, 2)
	mail := sender.sent[0]
	require.Equal(t, "Hiring <hr@example.edu>", mail.From)
	require.Equal(t, []string{"alan@example.com"}, mail.To)
	require.Equal(t, "Your application for swe", mail.Subject)
	require.Equal(t, "Dear Alan Turing,\n\nThank you for applying.\n", string(mail.Text))

	snapshot, err := applicants.LoadSnapshot(fs, "swe")
	require.NoError(t, err)
	require.True(t, snapshot[1].Emailed)
	require.True(t, snapshot[2].Emailed)
	require.False(t, snapshot[4].Emailed)

	again, err := notifier.Notify(context.Background(), "swe", mustTemplate(t), Options{})
	require.NoError(t, err)
	require.Empty(t, again.Sent, "nobody is emailed twice")
}

func TestNotifyVerdict(t *testing.T) {
	fs := seed(t)
	sender := &fakeSender{}
	notifier := NewNotifier(fs, sender, "hr@example.edu", &telemetry.Recorder{})

	result, err := notifier.Notify(context.Background(), "swe", mustTemplate(t), Options{Verdict: "yes"})
	require.NoError(t, err)
	require.Equal(t, []int64{2}, result.Sent)
	require.Equal(t, []string{"ada@example.com"}, sender.sent[0].To)
}

func TestNotifyDryRun(t *testing.T) {
	fs := seed(t)
	sender := &fakeSender{}
	notifier := NewNotifier(fs, sender, "hr@example.edu", &telemetry.Recorder{})

	result, err := notifier.Notify(context.Background(), "swe", mustTemplate(t), Options{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, result.Sent)
	require.Empty(t, sender.sent)

	snapshot, err := applicants.LoadSnapshot(fs, "swe")
	require.NoError(t, err)
	require.False(t, snapshot[1].Emailed)
}

func TestNotifyFailureKeepsProgress(t *testing.T) {
	fs := seed(t)
	sender := &fakeSender{failOn: "ada@example.com"}
	tel := &telemetry.Recorder{}
	notifier := NewNotifier(fs, sender, "hr@example.edu", tel)

	result, err := notifier.Notify(context.Background(), "swe", mustTemplate(t), Options{})
	require.Error(t, err)
	require.Equal(t, []int64{1}, result.Sent)
	require.Len(t, tel.Reports("broken", "notifier.send"), 1)

	snapshot, err := applicants.LoadSnapshot(fs, "swe")
	require.NoError(t, err)
	require.True(t, snapshot[1].Emailed)
	require.False(t, snapshot[2].Emailed)
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("Hello {{.Candidate.FirstName}}", "Application for {{.Position}}")
	require.NoError(t, err)
	subject, body, err := tmpl.render(Message{
		Position:  "swe",
		Candidate: &applicants.Candidate{FirstName: "Ada"},
	})
	require.NoError(t, err)
	require.Equal(t, "Application for swe", subject)
	require.Equal(t, "Hello Ada", body)

	_, err = ParseTemplate("Subject: only a subject", "x")
	require.Error(t, err)

	_, err = ParseTemplate("Hello {{.Candidate.FirstName", "x")
	require.Error(t, err)

	tmpl, err = ParseTemplate("Hello {{.Candidate.Nickname}}", "x")
	require.NoError(t, err)
	_, _, err = tmpl.render(Message{Candidate: &applicants.Candidate{}})
	require.Error(t, err, "unknown fields fail at render time")
}

func TestSmtpConfig(t *testing.T) {
	cfg := SmtpConfig{Server: "smtp.example.edu", Port: 587, EmailAddress: "hr@example.edu"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, "hr@example.edu", cfg.From())

	cfg.FromName = "Hiring Committee"
	require.Equal(t, "Hiring Committee <hr@example.edu>", cfg.From())

	require.Error(t, SmtpConfig{}.Validate())
}
