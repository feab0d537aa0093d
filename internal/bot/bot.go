// Package bot runs the Telegram command bot that manages subscriptions.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skireal/ebay-tracker/internal/store"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

const (
	defaultAPIURL      = "https://api.telegram.org"
	defaultPollTimeout = 30 * time.Second
)

// Bot long-polls the Telegram getUpdates endpoint and answers the
// subscription commands: /start, /stop, /status, /stats, /help.
type Bot struct {
	token string
	store store.Store

	apiURL      string
	client      *http.Client
	log         *slog.Logger
	pollTimeout time.Duration

	keywords []string
	siteID   string
}

// Option configures the Bot.
type Option func(*Bot)

// WithAPIURL overrides the Telegram API base URL.
func WithAPIURL(u string) Option {
	return func(b *Bot) {
		b.apiURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *Bot) {
		b.client = hc
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bot) {
		b.log = log
	}
}

// WithPollTimeout sets the getUpdates long-poll timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(b *Bot) {
		b.pollTimeout = d
	}
}

// New creates a Bot. keywords and siteID are shown in the status and help
// replies.
func New(token string, s store.Store, keywords []string, siteID string, opts ...Option) *Bot {
	b := &Bot{
		token:       token,
		store:       s,
		apiURL:      defaultAPIURL,
		log:         slog.Default(),
		pollTimeout: defaultPollTimeout,
		keywords:    keywords,
		siteID:      siteID,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.client == nil {
		// The HTTP timeout must outlast the long-poll timeout.
		b.client = &http.Client{Timeout: b.pollTimeout + 15*time.Second}
	}
	return b
}

// Run polls for updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("bot started", "keywords", len(b.keywords))

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.Error("polling updates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for i := range updates {
			offset = updates[i].UpdateID + 1
			b.handleUpdate(ctx, &updates[i])
		}
	}
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	Text string `json:"text"`
	Chat chat   `json:"chat"`
	From *user  `json:"from"`
}

type chat struct {
	ID int64 `json:"id"`
}

type user struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (b *Bot) handleUpdate(ctx context.Context, upd *update) {
	if upd.Message == nil || upd.Message.Text == "" {
		return
	}

	chatID := strconv.FormatInt(upd.Message.Chat.ID, 10)
	cmd := parseCommand(upd.Message.Text)

	b.log.Debug("command received", "chat_id", chatID, "command", cmd)

	var reply string
	var err error

	switch cmd {
	case "/start":
		reply, err = b.handleStart(ctx, chatID, upd.Message.From)
	case "/stop":
		reply, err = b.handleStop(ctx, chatID)
	case "/status":
		reply, err = b.handleStatus(ctx, chatID)
	case "/stats":
		reply, err = b.handleStats(ctx)
	case "/help":
		reply = b.helpText()
	default:
		return
	}

	if err != nil {
		b.log.Error("command failed", "command", cmd, "chat_id", chatID, "error", err)
		reply = "⚠️ Something went wrong, please try again later."
	}

	if sendErr := b.sendMessage(ctx, chatID, reply); sendErr != nil {
		b.log.Error("reply failed", "chat_id", chatID, "error", sendErr)
	}
}

// parseCommand extracts the leading bot command, dropping a trailing
// @botname mention and any arguments.
func parseCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}

func (b *Bot) handleStart(ctx context.Context, chatID string, from *user) (string, error) {
	wasActive, err := b.isSubscribed(ctx, chatID)
	if err != nil {
		return "", err
	}

	sub := &domain.Subscriber{ChatID: chatID}
	if from != nil {
		sub.Username = from.Username
		sub.FirstName = from.FirstName
		sub.LastName = from.LastName
	}
	if err := b.store.UpsertSubscriber(ctx, sub); err != nil {
		return "", err
	}

	if wasActive {
		return "👋 <b>Welcome back!</b>\n\n" +
			"Your subscription is already active.\n\n" +
			"Commands:\n/status - subscription status\n/stats - tracker statistics\n/stop - unsubscribe", nil
	}

	return "✅ <b>Welcome to the eBay tracker!</b>\n\n" +
		"You are subscribed to new listing alerts.\n\n" +
		"🔍 Tracked searches:\n" + b.keywordList() + "\n" +
		"Commands:\n/status - subscription status\n/stats - tracker statistics\n/stop - unsubscribe", nil
}

func (b *Bot) handleStop(ctx context.Context, chatID string) (string, error) {
	err := b.store.DeactivateSubscriber(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return "ℹ️ You are not subscribed.\n\nUse /start to subscribe.", nil
	}
	if err != nil {
		return "", err
	}

	return "👋 <b>Unsubscribed</b>\n\n" +
		"You will no longer receive new listing alerts.\n\n" +
		"Use /start to subscribe again.", nil
}

func (b *Bot) handleStatus(ctx context.Context, chatID string) (string, error) {
	active, err := b.isSubscribed(ctx, chatID)
	if err != nil {
		return "", err
	}

	if !active {
		return "❌ <b>Subscription inactive</b>\n\nUse /start to subscribe.", nil
	}

	return "✅ <b>Subscription active</b>\n\n" +
		"🔍 Tracked searches:\n" + b.keywordList() + "\n" +
		"🌍 Site: " + b.siteID + "\n\n" +
		"Commands:\n/stats - tracker statistics\n/stop - unsubscribe", nil
}

func (b *Bot) handleStats(ctx context.Context) (string, error) {
	stats, err := b.store.Stats(ctx)
	if err != nil {
		return "", err
	}
	subs, err := b.store.ActiveSubscribers(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("📊 <b>Tracker statistics</b>\n\n")
	fmt.Fprintf(&sb, "<b>Items:</b>\n  • Total: %d\n  • Today: %d\n\n", stats.TotalItems, stats.ItemsToday)
	fmt.Fprintf(&sb, "<b>Subscribers:</b> %d active\n", len(subs))

	if len(stats.ItemsByKeyword) > 0 {
		sb.WriteString("\n<b>By search:</b>\n")
		keywords := make([]string, 0, len(stats.ItemsByKeyword))
		for kw := range stats.ItemsByKeyword {
			keywords = append(keywords, kw)
		}
		sort.Strings(keywords)
		for _, kw := range keywords {
			fmt.Fprintf(&sb, "  • %s: %d items\n", html.EscapeString(kw), stats.ItemsByKeyword[kw])
		}
	}
	return sb.String(), nil
}

func (b *Bot) helpText() string {
	return "🤖 <b>eBay tracker bot</b>\n\n" +
		"Monitors eBay for new listings and sends alerts here.\n\n" +
		"<b>Commands:</b>\n" +
		"/start - subscribe to alerts\n" +
		"/stop - unsubscribe\n" +
		"/status - subscription status\n" +
		"/stats - tracker statistics\n" +
		"/help - this message\n\n" +
		"<b>Tracked searches:</b>\n" + b.keywordList() + "\n" +
		"<b>Site:</b> " + b.siteID
}

func (b *Bot) keywordList() string {
	var sb strings.Builder
	for _, kw := range b.keywords {
		fmt.Fprintf(&sb, "  • %s\n", html.EscapeString(kw))
	}
	return sb.String()
}

func (b *Bot) isSubscribed(ctx context.Context, chatID string) (bool, error) {
	subs, err := b.store.ActiveSubscribers(ctx)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.ChatID == chatID {
			return true, nil
		}
	}
	return false, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (b *Bot) getUpdates(ctx context.Context, offset int64) ([]update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(b.pollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}

	raw, err := b.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var updates []update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("parsing updates: %w", err)
	}
	return updates, nil
}

func (b *Bot) sendMessage(ctx context.Context, chatID, text string) error {
	_, err := b.call(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	return err
}

func (b *Bot) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	u := fmt.Sprintf("%s/bot%s/%s", b.apiURL, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s request: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf(
			"parsing %s response (status %d): %w",
			method,
			resp.StatusCode,
			err,
		)
	}
	if !apiResp.OK {
		return nil, fmt.Errorf(
			"telegram %s failed (status %d): %s",
			method,
			resp.StatusCode,
			apiResp.Description,
		)
	}
	return apiResp.Result, nil
}
