package paymentgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/frahmantamala/storefront/internal"
	gatewaytypes "github.com/frahmantamala/storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/storefront/internal/telemetry"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	Name                       string
	BaseURL                    string
	TerminalKey                string
	Password                   string
	Convention                 Convention
	SignNestedObjects          bool
	StrictResponseVerification bool
	Timeout                    time.Duration
	SuccessURL                 string
	FailURL                    string
	NotificationURL            string
	Taxation                   string
	DefaultTax                 string
}

// ConfigFrom maps the application gateway section onto client settings.
func ConfigFrom(cfg internal.GatewayConfig) (Config, error) {
	convention, err := ParseConvention(cfg.SignatureConvention)
	if err != nil {
		return Config{}, internal.NewConfigurationError(err.Error(), internal.ErrCodeMissingCredentials)
	}
	return Config{
		Name:                       cfg.Name,
		BaseURL:                    cfg.BaseURL,
		TerminalKey:                cfg.TerminalKey,
		Password:                   cfg.Password,
		Convention:                 convention,
		SignNestedObjects:          cfg.SignNestedObjects,
		StrictResponseVerification: cfg.StrictResponseVerification,
		Timeout:                    cfg.Timeout,
		SuccessURL:                 cfg.SuccessURL,
		FailURL:                    cfg.FailURL,
		NotificationURL:            cfg.NotificationURL,
		Taxation:                   cfg.Taxation,
		DefaultTax:                 cfg.DefaultTax,
	}, nil
}

type Client struct {
	cfg    Config
	signer *Signer
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.TerminalKey) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, internal.NewConfigurationError("payment gateway terminal key and password are required", internal.ErrCodeMissingCredentials)
	}
	if cfg.BaseURL == "" {
		return nil, internal.NewConfigurationError("payment gateway base URL is required", internal.ErrCodeMissingCredentials)
	}
	if cfg.SuccessURL == "" || cfg.FailURL == "" || cfg.NotificationURL == "" {
		return nil, internal.NewConfigurationError("payment gateway success, fail and notification URLs are required", internal.ErrCodeMissingRedirectURL)
	}
	if cfg.Name == "" {
		cfg.Name = "tinkoff"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Taxation == "" {
		cfg.Taxation = DefaultTaxation
	}
	if cfg.DefaultTax == "" {
		cfg.DefaultTax = DefaultTax
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		cfg:    cfg,
		signer: NewSigner(cfg.Password, cfg.Convention, CanonicalOptions{ScalarsOnly: !cfg.SignNestedObjects}),
		http:   httpClient,
		logger: logger,
	}, nil
}

// Name identifies the gateway on stored payment records.
func (c *Client) Name() string {
	return c.cfg.Name
}

func (c *Client) Signer() *Signer {
	return c.signer
}

type InitParams struct {
	OrderReference string
	Amount         int64
	Description    string
	Customer       Customer
	Items          []LineItem
}

type InitResult struct {
	PaymentID   string
	RedirectURL string
	Status      gatewaytypes.GatewayStatus
	Amount      int64
	Raw         Fields
}

type StateResult struct {
	PaymentID string
	OrderID   string
	Status    gatewaytypes.GatewayStatus
	Amount    int64
	Raw       Fields
}

type CancelResult struct {
	PaymentID      string
	Status         gatewaytypes.GatewayStatus
	OriginalAmount int64
	NewAmount      int64
	Raw            Fields
}

// InitPayment registers a payment and returns the hosted page URL. It is never retried.
func (c *Client) InitPayment(ctx context.Context, params InitParams) (*InitResult, error) {
	if err := validateInit(params); err != nil {
		return nil, err
	}

	req := gatewaytypes.InitRequest{
		TerminalKey:     c.cfg.TerminalKey,
		Amount:          params.Amount,
		OrderID:         params.OrderReference,
		Description:     params.Description,
		CustomerKey:     params.Customer.ID,
		SuccessURL:      c.redirectURL(c.cfg.SuccessURL, params.OrderReference),
		FailURL:         c.redirectURL(c.cfg.FailURL, params.OrderReference),
		NotificationURL: c.cfg.NotificationURL,
		Email:           strings.TrimSpace(params.Customer.Email),
		Phone:           strings.TrimSpace(params.Customer.Phone),
		Receipt:         BuildReceipt(params.Customer, params.Items, c.cfg.Taxation, c.cfg.DefaultTax),
	}
	if req.CustomerKey == "" {
		req.CustomerKey = params.OrderReference
	}

	if req.Receipt != nil {
		var total int64
		for _, item := range req.Receipt.Items {
			total += item.Amount
		}
		if total != params.Amount {
			c.logger.Warn("receipt total differs from payment amount",
				"order_reference", params.OrderReference,
				"amount", params.Amount,
				"receipt_total", total)
		}
	}

	resp, err := c.call(ctx, "init", "/Init", req)
	if err != nil {
		return nil, err
	}

	result := &InitResult{
		PaymentID:   resp.String("PaymentId"),
		RedirectURL: resp.String("PaymentURL"),
		Status:      gatewaytypes.GatewayStatus(resp.String("Status")),
		Raw:         resp,
	}
	result.Amount, _ = resp.Int64("Amount")

	if result.PaymentID == "" || result.RedirectURL == "" {
		return nil, internal.NewGatewayUnavailableError("payment gateway response lacks PaymentId or PaymentURL", internal.ErrCodeGatewayMalformed, nil)
	}

	c.logger.Info("payment initialized",
		"order_reference", params.OrderReference,
		"payment_id", result.PaymentID,
		"amount", params.Amount,
		"receipt_attached", req.Receipt != nil)

	return result, nil
}

func (c *Client) GetState(ctx context.Context, paymentID string) (*StateResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, internal.NewValidationFieldError("payment_id", "payment_id is required", internal.ErrCodeValidationFailed)
	}

	resp, err := c.call(ctx, "get_state", "/GetState", gatewaytypes.GetStateRequest{
		TerminalKey: c.cfg.TerminalKey,
		PaymentID:   paymentID,
	})
	if err != nil {
		return nil, err
	}

	result := &StateResult{
		PaymentID: resp.String("PaymentId"),
		OrderID:   resp.String("OrderId"),
		Status:    gatewaytypes.GatewayStatus(resp.String("Status")),
		Raw:       resp,
	}
	result.Amount, _ = resp.Int64("Amount")
	if result.PaymentID == "" {
		result.PaymentID = paymentID
	}
	return result, nil
}

// Cancel reverses or refunds a payment. A nil partialAmount cancels the full amount.
func (c *Client) Cancel(ctx context.Context, paymentID string, partialAmount *int64, originalAmount int64) (*CancelResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, internal.NewValidationFieldError("payment_id", "payment_id is required", internal.ErrCodeValidationFailed)
	}
	if partialAmount != nil {
		if *partialAmount <= 0 {
			return nil, internal.NewValidationFieldError("amount", "cancel amount must be positive", internal.ErrCodeInvalidAmount)
		}
		if *partialAmount > originalAmount {
			return nil, internal.NewValidationFieldError("amount",
				fmt.Sprintf("cancel amount %d exceeds original amount %d", *partialAmount, originalAmount),
				internal.ErrCodeInvalidAmount)
		}
	}

	resp, err := c.call(ctx, "cancel", "/Cancel", gatewaytypes.CancelRequest{
		TerminalKey: c.cfg.TerminalKey,
		PaymentID:   paymentID,
		Amount:      partialAmount,
	})
	if err != nil {
		return nil, err
	}

	result := &CancelResult{
		PaymentID: resp.String("PaymentId"),
		Status:    gatewaytypes.GatewayStatus(resp.String("Status")),
		Raw:       resp,
	}
	result.OriginalAmount, _ = resp.Int64("OriginalAmount")
	result.NewAmount, _ = resp.Int64("NewAmount")
	if result.PaymentID == "" {
		result.PaymentID = paymentID
	}

	c.logger.Info("payment cancelled",
		"payment_id", result.PaymentID,
		"status", result.Status,
		"original_amount", result.OriginalAmount,
		"new_amount", result.NewAmount)

	return result, nil
}

// call signs body, posts it and returns the verified response fields.
func (c *Client) call(ctx context.Context, operation, path string, body any) (Fields, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "paymentgateway."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("gateway.name", c.cfg.Name)))
	defer span.End()

	start := time.Now()
	defer func() {
		telemetry.GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	fields, err := c.do(ctx, path, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if appErr, ok := internal.IsAppError(err); ok {
			outcome = strings.ToLower(string(appErr.Type))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	telemetry.GatewayRequests.WithLabelValues(operation, outcome).Inc()
	return fields, err
}

func (c *Client) do(ctx context.Context, path string, body any) (Fields, error) {
	fields, err := ToFields(body)
	if err != nil {
		return nil, internal.NewInternalError("failed to encode gateway request", err)
	}
	token, err := c.signer.Sign(fields)
	if err != nil {
		return nil, internal.NewInternalError("failed to sign gateway request", err)
	}
	fields[TokenField] = token

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(fields).
		Post(path)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, internal.NewGatewayUnavailableError("payment gateway timed out", internal.ErrCodeGatewayTransport, err)
		}
		return nil, internal.NewGatewayUnavailableError("payment gateway request failed", internal.ErrCodeGatewayTransport, err)
	}

	if !resp.IsSuccess() {
		return nil, internal.NewGatewayUnavailableError(
			fmt.Sprintf("payment gateway returned HTTP %d", resp.StatusCode()),
			internal.ErrCodeGatewayStatus, nil)
	}

	out, err := DecodeFields(resp.Body())
	if err != nil {
		return nil, internal.NewGatewayUnavailableError("payment gateway returned a non-JSON body", internal.ErrCodeGatewayMalformed, err)
	}

	_, signed := out[TokenField]

	// a decline changes nothing locally, so its signature is only logged
	if !out.Bool("Success") {
		if signed && !c.signer.Verify(out) {
			c.logger.Warn("payment gateway decline carries a bad signature",
				"path", path,
				"error_code", out.String("ErrorCode"))
		}
		message := out.String("Message")
		if details := out.String("Details"); details != "" {
			message = strings.TrimSpace(message + " " + details)
		}
		if message == "" {
			message = "payment gateway declined the request"
		}
		return nil, internal.NewPaymentRejectedError(message, out.String("ErrorCode"))
	}

	if signed {
		if !c.signer.Verify(out) {
			return nil, internal.NewSignatureInvalidError("payment gateway response signature mismatch", internal.ErrCodeSignatureMismatch)
		}
	} else if c.cfg.StrictResponseVerification {
		return nil, internal.NewSignatureInvalidError("payment gateway response is not signed", internal.ErrCodeSignatureMissing)
	} else {
		c.logger.Warn("payment gateway response carries no signature, accepting",
			"path", path,
			"payment_id", out.String("PaymentId"))
	}

	return out, nil
}

func (c *Client) redirectURL(template, orderReference string) string {
	return strings.ReplaceAll(template, "{order}", orderReference)
}

func validateInit(params InitParams) error {
	if strings.TrimSpace(params.OrderReference) == "" {
		return internal.NewValidationFieldError("order_reference", "order reference is required", internal.ErrCodeValidationFailed)
	}
	if params.Amount <= 0 {
		return internal.NewValidationFieldError("amount", "amount must be positive", internal.ErrCodeInvalidAmount)
	}
	if len(params.Items) == 0 {
		return internal.NewValidationFieldError("items", "at least one item is required", internal.ErrCodeEmptyItems)
	}
	for i, item := range params.Items {
		if !item.Quantity.IsPositive() {
			return internal.NewValidationFieldError(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive", internal.ErrCodeInvalidQuantity)
		}
		if item.UnitPrice < 0 {
			return internal.NewValidationFieldError(fmt.Sprintf("items[%d].unit_price", i), "unit price must not be negative", internal.ErrCodeInvalidAmount)
		}
	}
	return nil
}
