package portal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hrpull/internal/applicants"
	"hrpull/lib/telemetry"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/require"
)

func TestCheckName(t *testing.T) {
	cases := []struct {
		name     string
		shown    ContactInfo
		warnings int
		debug    int
	}{
		{
			name:  "same",
			shown: ContactInfo{fieldFirstName: "Jane", fieldLastName: "Doe"},
		},
		{
			name:  "case and spacing",
			shown: ContactInfo{fieldFirstName: "JANE", fieldLastName: " Doe"},
		},
		{
			name:  "typo",
			shown: ContactInfo{fieldFirstName: "Jane", fieldLastName: "Doee"},
			debug: 1,
		},
		{
			name:     "someone else",
			shown:    ContactInfo{fieldFirstName: "Robert", fieldLastName: "Paulson"},
			warnings: 1,
		},
	}
	for _, test := range cases {
		tel := &telemetry.Recorder{}
		cand := &applicants.Candidate{ID: 1, FirstName: "Jane", LastName: "Doe"}
		checkName(tel, cand, test.shown)

		require.Len(t, tel.Reports("warning", "client.process"), test.warnings, test.name)
		require.Len(t, tel.Reports("debug", "listed as"), test.debug, test.name)
		require.Equal(t, "Jane", cand.FirstName, "the listing's name is kept")
	}
}

func TestPoll(t *testing.T) {
	calls := 0
	err := poll(context.Background(), time.Millisecond, func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	broken := errors.New("page crashed")
	err = poll(context.Background(), time.Millisecond, func() (bool, error) {
		return false, broken
	})
	require.ErrorIs(t, err, broken)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err = poll(ctx, time.Millisecond, func() (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHttpCookies(t *testing.T) {
	cookies := httpCookies([]*proto.NetworkCookie{
		{Name: "_hr_session", Value: "abc", Domain: "portal.example.edu", Path: "/", Secure: true, HTTPOnly: true},
	})
	require.Len(t, cookies, 1)
	require.Equal(t, "_hr_session", cookies[0].Name)
	require.Equal(t, "abc", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{DocumentTimeout: time.Minute}.withDefaults()
	require.Equal(t, 300*time.Second, cfg.OperationTimeout)
	require.Equal(t, time.Minute, cfg.DocumentTimeout)
}

func TestOpenRejectsRelativeBase(t *testing.T) {
	open := Opener(Config{BaseURL: "portal.example.edu"}, memfs.New(), &telemetry.Recorder{})
	_, err := open(context.Background(), "user", "password")
	require.ErrorContains(t, err, "must be absolute")
}

func TestDownloadPathIsAbsolute(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	dir, err := downloadPath("downloads")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(dir))
	require.Equal(t, filepath.Join(wd, "downloads"), dir)

	dir, err = downloadPath("/tmp/hrpull-downloads")
	require.NoError(t, err)
	require.Equal(t, "/tmp/hrpull-downloads", dir)
}
