package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	btnStart       = "Start Quiz"
	btnProgress    = "User Progress"
	btnLeaderboard = "Leaderboard"
	btnQuit        = "Quit Quiz"

	answerPrefix = "ans"
)

// Poller is the long-polling half of *tgbotapi.BotAPI.
type Poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot turns Telegram updates into quiz commands. Replies flow back through Notifier.
type Bot struct {
	api     Sender
	poller  Poller
	service *app.QuizService
}

func NewBot(api Sender, poller Poller, service *app.QuizService) *Bot {
	return &Bot{api: api, poller: poller, service: service}
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.poller.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.poller.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := strconv.FormatInt(chatID, 10)

	if msg.Command() == "start" {
		b.sendMenu(chatID)
		return
	}

	switch strings.TrimSpace(msg.Text) {
	case btnStart:
		if err := b.service.StartQuiz(ctx, userID, displayName(msg.From)); err != nil {
			log.Printf("telegram: start quiz for %s: %v", userID, err)
		}
	case btnProgress:
		if _, err := b.service.RequestProgress(ctx, userID); err != nil {
			log.Printf("telegram: progress for %s: %v", userID, err)
		}
	case btnLeaderboard:
		if _, err := b.service.RequestLeaderboard(ctx, userID); err != nil {
			log.Printf("telegram: leaderboard for %s: %v", userID, err)
		}
	case btnQuit:
		b.service.Quit(ctx, userID)
	default:
		b.sendMenu(chatID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("telegram: answer callback: %v", err)
	}

	var chatID int64
	switch {
	case callback.Message != nil && callback.Message.Chat != nil:
		chatID = callback.Message.Chat.ID
	case callback.From != nil:
		chatID = callback.From.ID
	default:
		return
	}
	userID := strconv.FormatInt(chatID, 10)

	index, choice, err := parseCallback(callback.Data)
	if err != nil {
		log.Printf("telegram: %v", err)
		return
	}
	if _, err := b.service.SelectOption(ctx, userID, index, choice); err != nil {
		if errors.Is(err, domain.ErrOptionNotFound) {
			log.Printf("telegram: %s picked unknown option %d", userID, choice)
			return
		}
		log.Printf("telegram: answer from %s: %v", userID, err)
	}
}

func (b *Bot) sendMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Welcome to the quiz! Choose an option below.")
	msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnStart)),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnProgress),
			tgbotapi.NewKeyboardButton(btnLeaderboard),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnQuit)),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("telegram: send menu: %v", err)
	}
}

func answerData(index, choice int) string {
	return fmt.Sprintf("%s:%d:%d", answerPrefix, index, choice)
}

// parseCallback decodes "ans:<questionIndex>:<choice>".
func parseCallback(data string) (int, int, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != answerPrefix {
		return 0, 0, fmt.Errorf("unexpected callback data %q", data)
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return 0, 0, fmt.Errorf("bad question index in %q", data)
	}
	choice, err := strconv.Atoi(parts[2])
	if err != nil || choice < 0 {
		return 0, 0, fmt.Errorf("bad choice in %q", data)
	}
	return index, choice, nil
}

func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return user.UserName
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}
