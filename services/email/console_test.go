package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/darasa/core"
	logsvc "github.com/trezcool/darasa/services/logger"
)

func newMock() *ConsoleServiceMock {
	conf := &core.Config{AppName: "Darasa", DefaultFromEmail: mail.Address{Name: "Darasa", Address: "no-reply@darasa.test"}}
	return NewConsoleServiceMock(conf, logsvc.NewLocalLogger(zap.NewNop()))
}

func TestConsoleService_Render(t *testing.T) {
	svc := newMock()
	ann := mail.Address{Name: "Ann", Address: "ann@test.cd"}

	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantBody []string
	}{
		{name: "no recipient", msg: core.EmailMessage{Subject: "Hi", BodyStr: "hello"}},
		{name: "no content", msg: core.EmailMessage{To: []mail.Address{ann}, Subject: "Hi"}},
		{
			name: "plain",
			msg:  core.EmailMessage{To: []mail.Address{ann}, Cc: []mail.Address{ann}, Subject: "Hi", BodyStr: "hello"},
			wantBody: []string{
				"Subject: [Darasa] Hi\r\n",
				`To: "Ann" <ann@test.cd>`,
				"CC: ",
				"text/plain; charset=utf-8",
				"hello",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			body, err := svc.render(&msg)
			require.NoError(t, err)
			if tt.wantBody == nil {
				assert.Empty(t, body)
				return
			}
			assert.NotContains(t, body, "BCC: ")
			for _, want := range tt.wantBody {
				assert.Contains(t, body, want)
			}
		})
	}
}

func TestConsoleServiceMock_Sent(t *testing.T) {
	svc := newMock()
	to := []mail.Address{{Address: "bob@test.cd"}}

	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "one", BodyStr: "1"},
		&core.EmailMessage{Subject: "dropped", BodyStr: "2"},
		&core.EmailMessage{To: to, Subject: "two", BodyStr: "3"},
	)
	sent := svc.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "one", sent[0].Subject)
	assert.Equal(t, "two", sent[1].Subject)
	assert.Equal(t, "3", sent[1].TextContent)

	svc.Reset()
	assert.Empty(t, svc.Sent())
}
