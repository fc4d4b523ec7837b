package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
)

type Bot struct {
	service *app.Service
	api     *tgbotapi.BotAPI
	// telegram user id -> school account username
	staff map[int64]string
}

func New(service *app.Service) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(service.Config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	return &Bot{
		service: service,
		api:     api,
		staff:   staffMapping(service.Config.Bot.Staff),
	}, nil
}

func staffMapping(entries []app.BotStaff) map[int64]string {
	staff := make(map[int64]string, len(entries))
	for _, e := range entries {
		if e.TelegramID == 0 || strings.TrimSpace(e.Username) == "" {
			logger.Error.Printf("Skipping incomplete bot staff entry %+v", e)
			continue
		}
		staff[e.TelegramID] = strings.TrimSpace(e.Username)
	}
	return staff
}

// access resolves the school account bound to a telegram user. A nil
// result means the sender is unknown or the account is deactivated.
func (b *Bot) access(ctx context.Context, telegramID int64) (*app.Access, error) {
	username, ok := b.staff[telegramID]
	if !ok {
		return nil, nil
	}
	user, err := b.service.Store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, nil
	}
	return b.service.Users.Resolve(ctx, &app.Session{UserID: user.ID})
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go b.handleMessage(update.Message)

		case <-sigChan:
			logger.Info.Println("Shutting down bot...")
			b.api.StopReceivingUpdates()
			return nil
		}
	}
}
