package notify

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
	"strings"
	"time"

	"github.com/skireal/ebay-tracker/internal/metrics"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

const defaultAPIURL = "https://api.telegram.org"

// Telegram sends notifications through the Telegram Bot API. Items with an
// image go out as a photo with a caption, the rest as plain messages. All
// text uses Telegram's HTML parse mode. Delivery goes to the static chat
// list plus, when a chat source is configured, the chats it returns.
type Telegram struct {
	token      string
	chatIDs    []string
	chatSource func(ctx context.Context) ([]string, error)
	apiURL     string
	client     *http.Client
	log        *slog.Logger
}

// TelegramOption configures the Telegram notifier.
type TelegramOption func(*Telegram)

// WithAPIURL overrides the Telegram API base URL.
func WithAPIURL(u string) TelegramOption {
	return func(t *Telegram) {
		t.apiURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = hc
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) TelegramOption {
	return func(t *Telegram) {
		t.log = log
	}
}

// WithChatSource adds a dynamic recipient list, queried at every broadcast.
// Chats subscribed through the bot are delivered to alongside the
// configured ones.
func WithChatSource(source func(ctx context.Context) ([]string, error)) TelegramOption {
	return func(t *Telegram) {
		t.chatSource = source
	}
}

// NewTelegram creates a Telegram notifier that delivers to every chat in
// chatIDs.
func NewTelegram(token string, chatIDs []string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		token:   token,
		chatIDs: chatIDs,
		apiURL:  defaultAPIURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewItem implements Notifier.
func (t *Telegram) NewItem(ctx context.Context, item *domain.Item) error {
	text := formatItem(item)

	if item.ImageURL != "" {
		return t.broadcast(ctx, "sendPhoto", func(chatID string) any {
			return photoRequest{
				ChatID:    chatID,
				Photo:     item.ImageURL,
				Caption:   text,
				ParseMode: "HTML",
			}
		})
	}

	return t.broadcast(ctx, "sendMessage", func(chatID string) any {
		return messageRequest{
			ChatID:    chatID,
			Text:      text,
			ParseMode: "HTML",
		}
	})
}

// Summary implements Notifier. Nothing is sent when no new items turned up.
func (t *Telegram) Summary(ctx context.Context, newItems int, keywords []string) error {
	if newItems == 0 {
		return nil
	}

	text := fmt.Sprintf(
		"📊 <b>eBay scan summary</b>\n\n✨ New items found: <b>%d</b>\n🔍 Keywords: %s",
		newItems,
		html.EscapeString(strings.Join(keywords, ", ")),
	)

	return t.broadcast(ctx, "sendMessage", func(chatID string) any {
		return messageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"}
	})
}

// Error implements Notifier.
func (t *Telegram) Error(ctx context.Context, message string) error {
	text := "❌ <b>eBay tracker error</b>\n\n" + html.EscapeString(message)

	return t.broadcast(ctx, "sendMessage", func(chatID string) any {
		return messageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"}
	})
}

type messageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type photoRequest struct {
	ChatID    string `json:"chat_id"`
	Photo     string `json:"photo"`
	Caption   string `json:"caption"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// recipients merges the static chat list with the chat source, deduplicated
// in delivery order. A failing chat source degrades to the static list.
func (t *Telegram) recipients(ctx context.Context) []string {
	out := make([]string, 0, len(t.chatIDs))
	seen := make(map[string]bool, len(t.chatIDs))
	for _, id := range t.chatIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	if t.chatSource == nil {
		return out
	}
	subscribed, err := t.chatSource(ctx)
	if err != nil {
		t.log.Warn("loading subscribed chats failed", "error", err)
		return out
	}
	for _, id := range subscribed {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// broadcast sends one API call per recipient chat and joins the failures.
// One unreachable chat does not stop delivery to the rest.
func (t *Telegram) broadcast(
	ctx context.Context,
	method string,
	payload func(chatID string) any,
) error {
	var errs []error
	for _, chatID := range t.recipients(ctx) {
		if err := t.call(ctx, method, payload(chatID)); err != nil {
			t.log.Warn("telegram delivery failed",
				"method", method,
				"chat_id", chatID,
				"error", err,
			)
			metrics.NotificationFailuresTotal.Inc()
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
			continue
		}
		metrics.NotificationsSentTotal.Inc()
	}
	return errors.Join(errs...)
}

func (t *Telegram) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	u := fmt.Sprintf("%s/bot%s/%s", t.apiURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing %s request: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf(
			"parsing %s response (status %d): %w",
			method,
			resp.StatusCode,
			err,
		)
	}
	if !apiResp.OK {
		return fmt.Errorf(
			"telegram %s failed (status %d): %s",
			method,
			resp.StatusCode,
			apiResp.Description,
		)
	}
	return nil
}

// formatItem renders the item as Telegram HTML.
func formatItem(item *domain.Item) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🆕 <b>New eBay listing!</b>\n\n")
	fmt.Fprintf(&b, "📦 <b>%s</b>\n", html.EscapeString(item.Title))

	if item.Price != "" && item.Currency != "" {
		fmt.Fprintf(&b, "\n💰 %s %s", item.Price, item.Currency)
		if item.ShippingCost != "" {
			fmt.Fprintf(&b, " + %s %s shipping", item.ShippingCost, item.ShippingCurrency)
		}
	}
	if item.ListingType == domain.ListingAuction {
		fmt.Fprintf(&b, "\n🔨 Auction, %d bids", item.BidCount)
		if item.EndsAt != nil {
			fmt.Fprintf(&b, ", ends %s", item.EndsAt.Format("2 Jan 15:04 MST"))
		}
	}
	if item.Condition != "" {
		fmt.Fprintf(&b, "\n📋 Condition: %s", html.EscapeString(item.Condition))
	}
	if item.Seller != "" {
		fmt.Fprintf(&b, "\n👤 Seller: %s", html.EscapeString(item.Seller))
	}
	if loc := item.FullLocation(); loc != "" {
		fmt.Fprintf(&b, "\n📍 %s", html.EscapeString(loc))
	}
	if item.Keyword != "" {
		fmt.Fprintf(&b, "\n\n🔍 Matched: <i>%s</i>", html.EscapeString(item.Keyword))
	}
	fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Open on eBay</a>", item.ItemURL)

	return b.String()
}
