// package telegram implements the chat transport: long-polling update
// handling, the typed command registry and inline-keyboard callbacks.
package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rafacovez/notify/internal/flow"
	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/spotify"
	"github.com/rafacovez/notify/internal/store"
	"github.com/rafacovez/notify/internal/tracker"
)

// api is the subset of [tgbotapi.BotAPI] the bot uses, extracted so tests
// can substitute a recorder.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// StateIssuer mints OAuth state tokens bound to a user, claimed later by
// the callback server.
type StateIssuer interface {
	Issue(userID int64) string
}

// Bot is the Telegram transport. It owns no per-request state: user id,
// chat id and the per-call access token travel through a request value.
type Bot struct {
	api      api
	store    *store.Store
	client   *spotify.Client
	tokens   *spotify.TokenManager
	registry *tracker.Registry
	states   StateIssuer
	pageSize int
	logger   *log.Logger
	commands []command
	byName   map[string]*command
}

// Options contains the dependencies for creating a Bot.
type Options struct {
	Store    *store.Store
	Client   *spotify.Client
	Tokens   *spotify.TokenManager
	Registry *tracker.Registry
	States   StateIssuer
	PageSize int
	Logger   *log.Logger
}

// New creates a Bot over a live Telegram connection and announces the
// command list to the platform.
func New(botToken string, opts Options) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	b := newBot(client, opts)

	setCommands := make([]tgbotapi.BotCommand, 0, len(b.commands))
	for _, cmd := range b.commands {
		setCommands = append(setCommands, tgbotapi.BotCommand{Command: cmd.name, Description: cmd.desc})
	}
	if _, err := client.Request(tgbotapi.NewSetMyCommands(setCommands...)); err != nil {
		b.logger.Warn("failed to set command list", "err", err)
	}

	return b, nil
}

func newBot(client api, opts Options) *Bot {
	if opts.PageSize <= 0 {
		opts.PageSize = 4
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	b := &Bot{
		api:      client,
		store:    opts.Store,
		client:   opts.Client,
		tokens:   opts.Tokens,
		registry: opts.Registry,
		states:   opts.States,
		pageSize: opts.PageSize,
		logger:   opts.Logger.With("component", "telegram"),
	}

	b.commands = commandTable()
	b.byName = make(map[string]*command, len(b.commands))
	for i := range b.commands {
		b.byName[b.commands[i].name] = &b.commands[i]
	}

	return b
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("listening for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("stopped listening")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// request carries the per-interaction identifiers and, for authorized
// commands, the freshly refreshed access token.
type request struct {
	userID int64
	chatID int64
	args   string
	token  string
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	req := &request{userID: msg.From.ID, chatID: msg.Chat.ID}

	if _, err := b.api.Request(tgbotapi.NewChatAction(req.chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("failed to send chat action", "err", err)
	}

	if !msg.IsCommand() {
		b.reply(req.chatID, "Sorry, I only speak commands... Try /help.", false)
		return
	}

	cmd, ok := b.byName[msg.Command()]
	if !ok {
		b.reply(req.chatID, "My creators didn't think about that one yet! Try /help.", false)
		return
	}

	req.args = msg.CommandArguments()

	if cmd.authed {
		exists, err := b.store.UserExists(ctx, req.userID)
		if err != nil {
			b.logger.Error("failed to check user", "op", cmd.name, "user", req.userID, "err", err)
			b.reply(req.chatID, genericRetryMessage, false)
			return
		}
		if !exists {
			b.sendLoginPrompt(req)
			return
		}

		// Access tokens are never taken from storage directly: each
		// authorized command begins with a refresh.
		token, err := b.tokens.Refresh(ctx, req.userID)
		if err != nil {
			b.replyErr(cmd.name, req, err)
			return
		}
		req.token = token
	}

	if err := cmd.handler(ctx, b, req); err != nil {
		b.replyErr(cmd.name, req, err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}

	// Dismiss the client-side spinner regardless of the outcome.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.Debug("failed to answer callback", "err", err)
	}

	req := &request{userID: cq.From.ID, chatID: cq.Message.Chat.ID}

	cb, err := flow.ParseCallback(cq.Data)
	if err != nil {
		b.logger.Warn("malformed callback payload", "data", cq.Data, "user", req.userID)
		return
	}

	token, err := b.tokens.Refresh(ctx, req.userID)
	if err != nil {
		b.replyErr("callback", req, err)
		return
	}
	req.token = token

	switch cb.Kind {
	case flow.KindPage:
		b.handlePageCallback(ctx, req, cq.Message.MessageID, cb)
	case flow.KindSelect:
		b.handleSelectCallback(ctx, req, cb)
	}
}

// handlePageCallback re-renders the selection keyboard at a new offset.
// Concurrent presses on the same message are last-write-wins.
func (b *Bot) handlePageCallback(ctx context.Context, req *request, messageID int, cb flow.Callback) {
	session := flow.Session{Action: cb.Action, Offset: cb.Offset, PageSize: b.pageSize}

	page, err := b.client.UserPlaylists(ctx, req.token, session.FetchLimit(), session.Offset)
	if err != nil {
		b.replyErr("paginate", req, err)
		return
	}

	markup := toInlineKeyboard(session.Page(toItems(page.Items)))
	edit := tgbotapi.NewEditMessageReplyMarkup(req.chatID, messageID, markup)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("failed to edit keyboard", "user", req.userID, "err", err)
	}
}

// handleSelectCallback applies the terminal transition of a selection
// dialogue: the bound action decides between add and remove.
func (b *Bot) handleSelectCallback(ctx context.Context, req *request, cb flow.Callback) {
	switch cb.Action {
	case flow.ActionAdd:
		playlist, err := b.registry.Add(ctx, req.token, req.userID, cb.PlaylistID)
		if err != nil {
			b.replyErr("add", req, err)
			return
		}
		b.reply(req.chatID, fmt.Sprintf("Now tracking the playlist: %s", playlist.Name), false)

	case flow.ActionRemove:
		if err := b.registry.Remove(ctx, req.userID, cb.PlaylistID); err != nil {
			b.replyErr("remove", req, err)
			return
		}
		b.reply(req.chatID, "Stopped tracking the playlist.", false)
	}
}

// SendMessage implements the reconcile Notifier boundary.
func (b *Bot) SendMessage(chatID int64, text string, linkable bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = !linkable
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send keyboard: %w", err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string, linkable bool) {
	if err := b.SendMessage(chatID, text, linkable); err != nil {
		b.logger.Error("failed to reply", "chat", chatID, "err", err)
	}
}

// replyErr turns an error into the right user-facing message: domain
// validation outcomes get their specific text and are not logged as
// errors; faults are logged with context and collapse to one generic
// retry-later message.
func (b *Bot) replyErr(op string, req *request, err error) {
	text, isFault := userMessage(err)
	if isFault {
		b.logger.Error("command failed", "op", op, "user", req.userID, "err", err)
	}
	b.reply(req.chatID, text, false)
}

const genericRetryMessage = "An error occurred while executing the command. Please try again later."

// userMessage maps an error to the message shown to the user and reports
// whether the error is a fault worth logging.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, shared.ErrAlreadyTracked):
		return "You're already tracking this playlist.", false
	case errors.Is(err, shared.ErrNotTracked):
		return "You're not tracking this playlist.", false
	case errors.Is(err, shared.ErrLimitReached):
		return fmt.Sprintf("You can only track up to %d playlists at a time. Please remove one before adding another.", tracker.MaxTracked), false
	case errors.Is(err, shared.ErrNotFound):
		return "The playlist you provided is not valid or does not exist.", false
	case errors.Is(err, shared.ErrInvalidInput):
		return "That doesn't look like a Spotify playlist link.", false
	case errors.Is(err, shared.ErrAuthExpired), errors.Is(err, shared.ErrNoRefreshToken):
		return "Your Spotify authorization has expired. Please /login again.", false
	default:
		return genericRetryMessage, true
	}
}

func (b *Bot) sendLoginPrompt(req *request) {
	state := b.states.Issue(req.userID)
	url := b.tokens.AuthURL(state)
	b.reply(req.chatID, fmt.Sprintf("Please <a href='%s'>authorize me</a> to access your Spotify account.", url), true)
}

func toItems(playlists []spotify.Playlist) []flow.Item {
	items := make([]flow.Item, 0, len(playlists))
	for _, p := range playlists {
		items = append(items, flow.Item{ID: p.ID, Name: p.Name})
	}
	return items
}

func toInlineKeyboard(rows [][]flow.Button) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
