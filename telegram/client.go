// Copyright (c) 2025 BVK Chaitanya

// Package telegram wraps the Telegram bot api to send HTML messages and to
// dispatch user commands to registered handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bvk/pricebot/ctxutil"
	"github.com/bvk/pricebot/gobs"
	"github.com/bvk/pricebot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type CmdFunc = cli.CmdFunc

type Command struct {
	Name    string
	Purpose string
	Handler CmdFunc
}

type Options struct {
	// SendTimeout is the timeout for each send message attempt.
	SendTimeout time.Duration

	// SendAttempts is the max number of tries for sending a message.
	SendAttempts int

	// SendRetryInterval is the initial wait time between the send attempts. It
	// is doubled after each failure up to SendMaxRetryInterval.
	SendRetryInterval    time.Duration
	SendMaxRetryInterval time.Duration
}

func (v *Options) setDefaults() {
	if v.SendTimeout == 0 {
		v.SendTimeout = 15 * time.Second
	}
	if v.SendAttempts == 0 {
		v.SendAttempts = 3
	}
	if v.SendRetryInterval == 0 {
		v.SendRetryInterval = time.Second
	}
	if v.SendMaxRetryInterval == 0 {
		v.SendMaxRetryInterval = 8 * time.Second
	}
}

func (v *Options) Check() error {
	if v.SendTimeout <= 0 {
		return fmt.Errorf("send timeout must be positive: %w", os.ErrInvalid)
	}
	if v.SendAttempts < 1 {
		return fmt.Errorf("send attempts must be positive: %w", os.ErrInvalid)
	}
	if v.SendRetryInterval < 0 || v.SendMaxRetryInterval < v.SendRetryInterval {
		return fmt.Errorf("send retry intervals must satisfy 0 <= initial <= max: %w", os.ErrInvalid)
	}
	return nil
}

type Client struct {
	cg ctxutil.CloseGroup

	opts Options

	db kv.Database

	mu sync.Mutex

	bot *bot.Bot

	self *models.User

	secrets *Secrets

	started bool

	state *gobs.TelegramState

	commandMap map[string]*Command
}

// New creates a telegram client and verifies the bot token. Polling for user
// messages doesn't begin till Start is called, so that all commands can be
// registered before.
func New(ctx context.Context, db kv.Database, secrets *Secrets, opts *Options) (*Client, error) {
	if err := secrets.Check(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	c := &Client{
		opts:       *opts,
		db:         db,
		secrets:    secrets.Clone(),
		commandMap: make(map[string]*Command),
	}

	b, err := bot.New(secrets.BotToken, bot.WithDefaultHandler(c.handler))
	if err != nil {
		return nil, fmt.Errorf("could not create telegram bot: %w", err)
	}
	c.bot = b

	self, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get bot information: %w", err)
	}
	c.self = self

	state, err := kvutil.GetOrNewDB[gobs.TelegramState](ctx, db, c.stateKey())
	if err != nil {
		return nil, fmt.Errorf("could not load telegram state: %w", err)
	}
	if state.ChatIDs == nil {
		state.ChatIDs = make(map[string]int64)
	}
	c.state = state
	return c, nil
}

// Start registers the commands with telegram and begins polling for user
// messages in the background.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return os.ErrExist
	}
	c.started = true
	c.mu.Unlock()

	if err := c.setCommands(ctx); err != nil {
		return err
	}

	c.cg.Go(func(ctx context.Context) {
		c.bot.Start(ctx)
	})
	slog.Info("started telegram bot", "bot", c.BotUserName())
	return nil
}

func (c *Client) Close() error {
	c.cg.Close()
	return nil
}

func (c *Client) BotUserName() string {
	return c.self.Username
}

// ChannelID returns the channel id for the price updates.
func (c *Client) ChannelID() any {
	return c.secrets.ChatID()
}

// AddCommand registers a new command. Commands added after Start are also
// announced to telegram immediately.
func (c *Client) AddCommand(ctx context.Context, name, purpose string, handler CmdFunc) error {
	if len(name) == 0 || len(purpose) == 0 || handler == nil {
		return os.ErrInvalid
	}
	name = strings.ToLower(name)

	c.mu.Lock()
	if _, ok := c.commandMap[name]; ok {
		c.mu.Unlock()
		return os.ErrExist
	}
	c.commandMap[name] = &Command{
		Name:    name,
		Purpose: purpose,
		Handler: handler,
	}
	started := c.started
	c.mu.Unlock()

	if started {
		return c.setCommands(ctx)
	}
	return nil
}

func (c *Client) setCommands(ctx context.Context) error {
	if ok, err := c.bot.SetMyCommands(ctx, c.commands()); err != nil {
		return fmt.Errorf("could not set bot commands: %w", err)
	} else if !ok {
		return fmt.Errorf("could not set bot commands")
	}
	return nil
}

func (c *Client) commands() *bot.SetMyCommandsParams {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cmds []models.BotCommand
	for name, cmd := range c.commandMap {
		cmds = append(cmds, models.BotCommand{
			Command:     name,
			Description: cmd.Purpose,
		})
	}
	slices.SortFunc(cmds, func(a, b models.BotCommand) int {
		return strings.Compare(a.Command, b.Command)
	})
	return &bot.SetMyCommandsParams{
		Commands: cmds,
	}
}

func (c *Client) lookup(name string) (*Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, ok := c.commandMap[name]
	return cmd, ok
}

// SendHTML sends an HTML formatted message with link previews disabled. Each
// attempt is limited by the send timeout; failed attempts are retried with
// exponential backoff, except for the requests rejected by telegram.
func (c *Client) SendHTML(ctx context.Context, chatID any, text string) error {
	return c.sendHTML(ctx, chatID, 0, text)
}

func (c *Client) sendHTML(ctx context.Context, chatID any, replyTo int, text string) error {
	True := true
	p := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &True,
		},
	}
	if replyTo != 0 {
		p.ReplyParameters = &models.ReplyParameters{
			MessageID: replyTo,
		}
	}

	attempt := 0
	send := func() error {
		attempt++
		sctx, scancel := context.WithTimeout(ctx, c.opts.SendTimeout)
		defer scancel()

		if _, err := c.bot.SendMessage(sctx, p); err != nil {
			if isPermanent(err) {
				return ctxutil.Permanent(err)
			}
			if attempt < c.opts.SendAttempts {
				slog.Warn("could not send telegram message (will retry)", "chat", chatID, "attempt", attempt, "err", err)
			}
			return err
		}
		return nil
	}
	if err := ctxutil.RetryBackoff(ctx, c.opts.SendAttempts, c.opts.SendRetryInterval, c.opts.SendMaxRetryInterval, send); err != nil {
		return fmt.Errorf("could not send message to chat %v: %w", chatID, err)
	}
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, bot.ErrorBadRequest) || errors.Is(err, bot.ErrorForbidden) || errors.Is(err, bot.ErrorUnauthorized)
}

func (c *Client) stateKey() string {
	return path.Join("/telegram", c.BotUserName(), "state")
}

func (c *Client) handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if b != c.bot {
		slog.Error("handler invoked with invalid bot value", "want", c.bot, "got", b)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	sender := senderName(update.Message.From)
	if err := c.updateChatIDs(ctx, sender, update.Message.Chat.ID); err != nil {
		slog.Warn("could not update chat id values (ignored)", "err", err)
	}

	if err := c.respond(ctx, update); err != nil {
		slog.Error("could not respond to user command (ignored)", "user", sender, "err", err)
		return
	}
}

func senderName(u *models.User) string {
	if len(u.Username) != 0 {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

func (c *Client) respond(ctx context.Context, update *models.Update) (status error) {
	msg := update.Message

	var reply string
	defer func() {
		if len(reply) != 0 {
			if err := c.sendHTML(ctx, msg.Chat.ID, msg.ID, reply); err != nil {
				status = err
			}
		}
	}()

	defer func() {
		if status != nil {
			reply = html.EscapeString(status.Error())
			status = nil
		}
	}()

	name, args, err := parseCommand(msg.Text, msg.Entities, c.BotUserName())
	if err != nil {
		if errors.Is(err, errNotCommand) {
			return nil
		}
		return err
	}
	if len(name) == 0 {
		// Command addressed to a different bot.
		return nil
	}

	cmd, ok := c.lookup(name)
	if !ok {
		return fmt.Errorf("unknown command")
	}

	var sb strings.Builder
	if err := cmd.Handler(cli.WithStdout(ctx, &sb), args); err != nil {
		slog.Error("could not handle user command (ignored)", "cmd", name, "user", senderName(msg.From), "err", err)
		return err
	}

	reply = sb.String()
	return nil
}

var errNotCommand = errors.New("not a bot command")

// parseCommand returns the command name and its arguments from a message
// text. The optional "@botname" suffix is removed from the command name;
// commands addressed to other bots return an empty name.
func parseCommand(text string, entities []models.MessageEntity, botName string) (string, []string, error) {
	if len(entities) == 0 {
		return "", nil, errNotCommand
	}
	entity := entities[0]
	if entity.Type != models.MessageEntityTypeBotCommand || entity.Offset != 0 {
		return "", nil, errNotCommand
	}
	if len(text) == 0 || text[0] != '/' || entity.Length < 2 || entity.Length > len(text) {
		return "", nil, errNotCommand
	}

	name := text[1:entity.Length]
	if cmd, target, ok := strings.Cut(name, "@"); ok {
		if !strings.EqualFold(target, botName) {
			return "", nil, nil
		}
		name = cmd
	}
	args := strings.Fields(text[entity.Length:])
	return strings.ToLower(name), args, nil
}

func (c *Client) updateChatIDs(ctx context.Context, sender string, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.state.ChatIDs[sender]; ok && id == chatID {
		return nil
	}
	c.state.ChatIDs[sender] = chatID
	slog.Info("updating chat id for user", "user", sender, "chat-id", chatID)

	if err := kvutil.SetDB(ctx, c.db, c.stateKey(), c.state); err != nil {
		slog.Error("could not save telegram state to the db", "err", err)
		return err
	}
	return nil
}
