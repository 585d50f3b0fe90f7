package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/core/events"
	"github.com/frahmantamala/storefront/internal/order"
)

const defaultAPIURL = "https://api.telegram.org"

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Telegram posts operator messages to the shop's admin chat through the Bot API.
type Telegram struct {
	http    *resty.Client
	token   string
	chatID  string
	enabled bool
	logger  *slog.Logger
}

func NewTelegram(cfg internal.TelegramConfig, logger *slog.Logger) *Telegram {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	t := &Telegram{
		http: resty.New().
			SetBaseURL(apiURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		token:  strings.TrimSpace(cfg.BotToken),
		chatID: strings.TrimSpace(cfg.AdminChatID),
		logger: logger,
	}
	t.enabled = t.token != "" && t.chatID != ""
	if !t.enabled {
		logger.Warn("telegram notifications disabled: bot_token or admin_chat_id missing")
	}
	return t
}

func (t *Telegram) Enabled() bool {
	return t.enabled
}

func (t *Telegram) OrderCreated(ctx context.Context, o *order.Order) error {
	if !t.enabled {
		return nil
	}
	return t.send(ctx, t.chatID, FormatOrderMessage(o))
}

// PaymentStatusChanged tells the operator about the payment and, once it is
// paid, thanks the buyer in their own chat.
func (t *Telegram) PaymentStatusChanged(ctx context.Context, o *order.Order, e *events.PaymentStatusChangedEvent) error {
	if !t.enabled {
		return nil
	}
	if err := t.send(ctx, t.chatID, FormatPaymentMessage(o, e)); err != nil {
		return err
	}

	if e.EventType() == events.EventTypePaymentCompleted && o.Customer.TelegramUserID != nil {
		buyer := strconv.FormatInt(*o.Customer.TelegramUserID, 10)
		text := fmt.Sprintf("✅ Заказ #%d оплачен. Мы свяжемся с вами в ближайшее время.", o.ID)
		if err := t.send(ctx, buyer, text); err != nil {
			// the buyer may never have started the bot
			t.logger.Info("could not notify buyer", "order_id", o.ID, "error", err)
		}
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, chatID, text string) error {
	var out apiResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{
			ChatID:                chatID,
			Text:                  text,
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode(), out.Description)
	}
	return nil
}

// FormatOrderMessage renders the operator message for a new order.
func FormatOrderMessage(o *order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🛒 Новый заказ #%d</b>\n\n", o.ID)

	c := o.Customer
	if c.Name != "" || c.Email != "" || c.Phone != "" || c.TelegramUserID != nil {
		b.WriteString("<b>Покупатель:</b>\n")
		if c.Name != "" {
			fmt.Fprintf(&b, "Имя: %s\n", html.EscapeString(c.Name))
		}
		if c.Email != "" {
			fmt.Fprintf(&b, "Email: %s\n", html.EscapeString(c.Email))
		}
		if c.Phone != "" {
			fmt.Fprintf(&b, "Телефон: %s\n", html.EscapeString(c.Phone))
		}
		if c.TelegramUserID != nil {
			fmt.Fprintf(&b, "ID: %d\n", *c.TelegramUserID)
		}
		b.WriteString("\n")
	}

	b.WriteString("<b>Товары:</b>\n")
	for i, l := range o.Lines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, html.EscapeString(l.Name))
		fmt.Fprintf(&b, "   Количество: %d шт.\n", l.Quantity)
		fmt.Fprintf(&b, "   Цена: %s\n", FormatAmount(l.UnitPrice, o.Currency))
		fmt.Fprintf(&b, "   Сумма: %s\n\n", FormatAmount(l.Amount, o.Currency))
	}

	if o.Comment != "" {
		fmt.Fprintf(&b, "<b>Комментарий:</b> %s\n\n", html.EscapeString(o.Comment))
	}

	fmt.Fprintf(&b, "<b>💰 Итого: %s</b>", FormatAmount(o.TotalAmount, o.Currency))
	return b.String()
}

func FormatPaymentMessage(o *order.Order, e *events.PaymentStatusChangedEvent) string {
	var title string
	switch e.EventType() {
	case events.EventTypePaymentCompleted:
		title = "✅ Заказ #%d оплачен"
	case events.EventTypePaymentFailed:
		title = "❌ Оплата заказа #%d не прошла"
	case events.EventTypePaymentRefunded:
		title = "↩️ Возврат по заказу #%d"
	default:
		title = "Платёж по заказу #%d"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>"+title+"</b>\n\n", o.ID)
	fmt.Fprintf(&b, "Сумма: %s\n", FormatAmount(e.Amount, e.Currency))
	fmt.Fprintf(&b, "Статус: %s → %s\n", e.FromStatus, e.ToStatus)
	if e.GatewayPaymentID != "" {
		fmt.Fprintf(&b, "PaymentId: <code>%s</code>\n", html.EscapeString(e.GatewayPaymentID))
	}
	if e.Message != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(e.Message))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatAmount renders minor units as "29 990 ₽". Kopecks are shown only when present.
func FormatAmount(minor int64, currency string) string {
	d := decimal.New(minor, -2)
	var s string
	if d.Equal(d.Truncate(0)) {
		s = groupThousands(d.StringFixed(0))
	} else {
		s = d.StringFixed(2)
		whole, frac, _ := strings.Cut(s, ".")
		s = groupThousands(whole) + "," + frac
	}
	return s + " " + currencySymbol(currency)
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "", "RUB":
		return "₽"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	default:
		return strings.ToUpper(code)
	}
}
