package telegram

import (
	"context"
	"fmt"
	"strconv"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the subset of *tgbotapi.BotAPI used to talk to chats.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier renders engine output as Telegram messages. User ids are chat ids.
type Notifier struct {
	api Sender
}

func NewNotifier(api Sender) *Notifier {
	return &Notifier{api: api}
}

var _ app.Notifier = (*Notifier)(nil)

func (n *Notifier) ShowQuestion(_ context.Context, userID string, q domain.QuestionView) error {
	chatID, err := chatIDOf(userID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("❓ Question %d/%d\n\n%s", q.Index+1, q.Total, q.Prompt)
	if secs := int(q.TimeLimit.Seconds()); secs > 0 {
		text += fmt.Sprintf("\n\n⏱ %d seconds to answer", secs)
	}
	msg := tgbotapi.NewMessage(chatID, text)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(q.Options))
	for i, option := range q.Options {
		button := tgbotapi.NewInlineKeyboardButtonData(option, answerData(q.Index, i))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send question: %w", err)
	}
	return nil
}

func (n *Notifier) ShowResult(_ context.Context, userID, text string) error {
	chatID, err := chatIDOf(userID)
	if err != nil {
		return err
	}
	if _, err := n.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send result: %w", err)
	}
	return nil
}

func (n *Notifier) ShowLeaderboard(ctx context.Context, userID string, lb domain.Leaderboard) error {
	return n.ShowResult(ctx, userID, app.FormatLeaderboard(lb))
}

func chatIDOf(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user %q is not a telegram chat id: %w", userID, err)
	}
	return id, nil
}
