package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Talks to a real SMTP server in docker, set HRPULL_CONTAINER_TESTS=1 to run it.
func TestSmtpSenderContainer(t *testing.T) {
	if os.Getenv("HRPULL_CONTAINER_TESTS") == "" {
		t.Skip("HRPULL_CONTAINER_TESTS is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp", "1080/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, server.Terminate(context.Background()))
	})

	host, err := server.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := server.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := server.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	sender := NewSmtpSender(SmtpConfig{
		Server:       host,
		Port:         smtpPort.Int(),
		EmailAddress: "hr@example.edu",
		Password:     "default",
	})

	mail := email.NewEmail()
	mail.From = "hr@example.edu"
	mail.To = []string{"ada@example.com"}
	mail.Subject = "Your application"
	mail.Text = []byte("Dear Ada, thank you for applying.")
	require.NoError(t, sender.Send(ctx, mail))

	res, err := resty.New().R().
		SetContext(ctx).
		Get(fmt.Sprintf("http://%s:%s/messages/1.plain", host, webPort.Port()))
	require.NoError(t, err)
	require.Contains(t, res.String(), "thank you for applying")
}
