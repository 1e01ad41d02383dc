package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestTelegramNotifier(t *testing.T) {
	sender := new(mockSender)
	n := NewTelegramNotifierWithSender(sender, -100123)

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == -100123 && msg.Text == "New reservation #1"
	})).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, n.Notify(context.Background(), "New reservation #1"))
	sender.AssertExpectations(t)

	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("blocked")).Once()
	assert.Error(t, n.Notify(context.Background(), "again"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, "late"), context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	n := NewLogNotifier(&logger)

	require.NoError(t, n.Notify(context.Background(), "Guest checked in"))
	assert.Contains(t, buf.String(), `"text":"Guest checked in"`)
	assert.Contains(t, buf.String(), `"component":"notify"`)
}
