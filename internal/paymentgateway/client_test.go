package paymentgateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/paymentgateway"
)

const (
	terminalKey = "TestTerminal"
	password    = "test-password"
)

type fakeGateway struct {
	mu       sync.Mutex
	server   *httptest.Server
	signer   *paymentgateway.Signer
	requests map[string][]paymentgateway.Fields

	status   int
	rawBody  string
	delay    time.Duration
	unsigned bool
	respond  func(path string, req paymentgateway.Fields) paymentgateway.Fields
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{
		signer:   paymentgateway.NewSigner(password, paymentgateway.ConventionPasswordField, paymentgateway.CanonicalOptions{}),
		requests: make(map[string][]paymentgateway.Fields),
		status:   http.StatusOK,
	}
	g.respond = g.defaultResponse
	g.server = httptest.NewServer(http.HandlerFunc(g.handle))
	return g
}

func (g *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req, err := paymentgateway.DecodeFields(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	g.requests[r.URL.Path] = append(g.requests[r.URL.Path], req)
	status, raw, delay, unsigned := g.status, g.rawBody, g.delay, g.unsigned
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if raw != "" {
		_, _ = io.WriteString(w, raw)
		return
	}

	resp := g.respond(r.URL.Path, req)
	if !unsigned {
		token, err := g.signer.Sign(resp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["Token"] = token
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (g *fakeGateway) defaultResponse(path string, req paymentgateway.Fields) paymentgateway.Fields {
	switch path {
	case "/Init":
		return paymentgateway.Fields{
			"Success":     true,
			"ErrorCode":   "0",
			"TerminalKey": terminalKey,
			"Status":      "NEW",
			"PaymentId":   "3093639567",
			"OrderId":     req.String("OrderId"),
			"Amount":      req["Amount"],
			"PaymentURL":  "https://securepay.example/new/fU1ppgqa",
		}
	case "/GetState":
		return paymentgateway.Fields{
			"Success":     true,
			"ErrorCode":   "0",
			"TerminalKey": terminalKey,
			"Status":      "CONFIRMED",
			"PaymentId":   req.String("PaymentId"),
			"OrderId":     "42-abcd1234",
			"Amount":      2999000,
		}
	case "/Cancel":
		newAmount := int64(0)
		if amount, ok := req.Int64("Amount"); ok {
			newAmount = 2999000 - amount
		}
		return paymentgateway.Fields{
			"Success":        true,
			"ErrorCode":      "0",
			"TerminalKey":    terminalKey,
			"Status":         "REFUNDED",
			"PaymentId":      req.String("PaymentId"),
			"OriginalAmount": 2999000,
			"NewAmount":      newAmount,
		}
	}
	return paymentgateway.Fields{"Success": false, "ErrorCode": "9999", "Message": "unknown method"}
}

func (g *fakeGateway) last(path string) paymentgateway.Fields {
	g.mu.Lock()
	defer g.mu.Unlock()
	reqs := g.requests[path]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func (g *fakeGateway) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests[path])
}

func ctx() context.Context {
	return context.Background()
}

func testClientConfig(baseURL string) paymentgateway.Config {
	return paymentgateway.Config{
		Name:              "tinkoff",
		BaseURL:           baseURL,
		TerminalKey:       terminalKey,
		Password:          password,
		Convention:        paymentgateway.ConventionPasswordField,
		SignNestedObjects: true,
		Timeout:           2 * time.Second,
		SuccessURL:        "https://shop.example/payment/success?order={order}",
		FailURL:           "https://shop.example/payment/fail?order={order}",
		NotificationURL:   "https://shop.example/api/v1/payment/webhook",
	}
}

func phoneItems() []paymentgateway.LineItem {
	return []paymentgateway.LineItem{
		{Name: "Phone", UnitPrice: 2999000, Quantity: decimal.NewFromInt(1)},
	}
}

var _ = Describe("Client", func() {
	var (
		gateway *fakeGateway
		client  *paymentgateway.Client
		logger  *slog.Logger
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		gateway = newFakeGateway()

		var err error
		client, err = paymentgateway.NewClient(testClientConfig(gateway.server.URL), logger)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		gateway.server.Close()
	})

	Describe("NewClient", func() {
		It("fails fast without credentials", func() {
			cfg := testClientConfig(gateway.server.URL)
			cfg.Password = ""

			_, err := paymentgateway.NewClient(cfg, logger)
			Expect(errors.Is(err, internal.ErrConfiguration)).To(BeTrue())
		})

		It("fails fast without redirect URLs", func() {
			cfg := testClientConfig(gateway.server.URL)
			cfg.NotificationURL = ""

			_, err := paymentgateway.NewClient(cfg, logger)
			Expect(errors.Is(err, internal.ErrConfiguration)).To(BeTrue())
		})
	})

	Describe("InitPayment", func() {
		It("returns the redirect URL and a signed request", func() {
			// Given
			params := paymentgateway.InitParams{
				OrderReference: "42-abcd1234",
				Amount:         2999000,
				Description:    "Order #42",
				Customer:       paymentgateway.Customer{Email: "a@b.com"},
				Items:          phoneItems(),
			}

			// When
			result, err := client.InitPayment(ctx(), params)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(result.PaymentID).To(Equal("3093639567"))
			Expect(result.RedirectURL).To(Equal("https://securepay.example/new/fU1ppgqa"))

			sent := gateway.last("/Init")
			Expect(sent.String("TerminalKey")).To(Equal(terminalKey))
			Expect(sent.String("OrderId")).To(Equal("42-abcd1234"))
			Expect(sent.String("SuccessURL")).To(Equal("https://shop.example/payment/success?order=42-abcd1234"))
			Expect(sent.String("CustomerKey")).To(Equal("42-abcd1234"))
			Expect(gateway.signer.Verify(sent)).To(BeTrue())

			receipt, ok := sent["Receipt"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(receipt["Email"]).To(Equal("a@b.com"))
			Expect(receipt["Taxation"]).To(Equal(paymentgateway.DefaultTaxation))
		})

		It("omits the receipt when the customer has no contact", func() {
			params := paymentgateway.InitParams{
				OrderReference: "43-abcd1234",
				Amount:         300,
				Customer:       paymentgateway.Customer{},
				Items: []paymentgateway.LineItem{
					{Name: "Sticker", UnitPrice: 100, Quantity: decimal.NewFromInt(3)},
				},
			}

			_, err := client.InitPayment(ctx(), params)
			Expect(err).ToNot(HaveOccurred())

			sent := gateway.last("/Init")
			Expect(sent).ToNot(HaveKey("Receipt"))
			Expect(sent).ToNot(HaveKey("Email"))
			Expect(sent).ToNot(HaveKey("Phone"))
		})

		It("recomputes receipt line amounts", func() {
			params := paymentgateway.InitParams{
				OrderReference: "44-abcd1234",
				Amount:         300,
				Customer:       paymentgateway.Customer{Phone: "+79990000000"},
				Items: []paymentgateway.LineItem{
					{Name: "Sticker", UnitPrice: 100, Quantity: decimal.NewFromInt(3), Amount: 299},
				},
			}

			_, err := client.InitPayment(ctx(), params)
			Expect(err).ToNot(HaveOccurred())

			receipt := gateway.last("/Init")["Receipt"].(map[string]any)
			items := receipt["Items"].([]any)
			Expect(items).To(HaveLen(1))
			Expect(items[0].(map[string]any)["Amount"]).To(Equal(json.Number("300")))
			Expect(items[0].(map[string]any)["Tax"]).To(Equal("none"))
		})

		DescribeTable("rejects invalid input before any network call",
			func(params paymentgateway.InitParams) {
				_, err := client.InitPayment(ctx(), params)
				Expect(errors.Is(err, internal.ErrValidation)).To(BeTrue())
				Expect(gateway.count("/Init")).To(Equal(0))
			},
			Entry("zero amount", paymentgateway.InitParams{OrderReference: "1-a", Amount: 0, Items: phoneItems()}),
			Entry("negative amount", paymentgateway.InitParams{OrderReference: "1-a", Amount: -5, Items: phoneItems()}),
			Entry("no items", paymentgateway.InitParams{OrderReference: "1-a", Amount: 100}),
			Entry("no order reference", paymentgateway.InitParams{Amount: 100, Items: phoneItems()}),
			Entry("zero quantity", paymentgateway.InitParams{OrderReference: "1-a", Amount: 100, Items: []paymentgateway.LineItem{
				{Name: "x", UnitPrice: 100, Quantity: decimal.Zero},
			}}),
		)

		It("reports a gateway decline verbatim", func() {
			gateway.respond = func(string, paymentgateway.Fields) paymentgateway.Fields {
				return paymentgateway.Fields{
					"Success":   false,
					"ErrorCode": "204",
					"Message":   "Неверный статус транзакции",
					"Details":   "Amount mismatch",
				}
			}

			_, err := client.InitPayment(ctx(), paymentgateway.InitParams{OrderReference: "1-a", Amount: 100, Items: phoneItems()})

			Expect(errors.Is(err, internal.ErrPaymentRejected)).To(BeTrue())
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Message).To(Equal("Неверный статус транзакции Amount mismatch"))
			Expect(appErr.Details).To(Equal(map[string]string{"gateway_error_code": "204"}))
		})

		It("reports a decline even when its signature does not match", func() {
			gateway.unsigned = true
			gateway.respond = func(string, paymentgateway.Fields) paymentgateway.Fields {
				return paymentgateway.Fields{
					"Success":   false,
					"ErrorCode": "8",
					"Message":   "Неверный статус транзакции",
					"Token":     "deadbeef",
				}
			}

			_, err := client.InitPayment(ctx(), paymentgateway.InitParams{OrderReference: "1-a", Amount: 100, Items: phoneItems()})

			Expect(errors.Is(err, internal.ErrPaymentRejected)).To(BeTrue())
			Expect(errors.Is(err, internal.ErrSignatureInvalid)).To(BeFalse())
		})

		It("treats non-2xx responses as unavailable", func() {
			gateway.status = http.StatusInternalServerError
			gateway.rawBody = `{"Success":false}`

			_, err := client.InitPayment(ctx(), paymentgateway.InitParams{OrderReference: "1-a", Amount: 100, Items: phoneItems()})
			Expect(errors.Is(err, internal.ErrGatewayUnavailable)).To(BeTrue())
		})

		It("treats non-JSON responses as unavailable", func() {
			gateway.rawBody = `<html>maintenance</html>`

			_, err := client.InitPayment(ctx(), paymentgateway.InitParams{OrderReference: "1-a", Amount: 100, Items: phoneItems()})
			Expect(errors.Is(err, internal.ErrGatewayUnavailable)).To(BeTrue())
		})

		It("times out and does not retry", func() {
			cfg := testClientConfig(gateway.server.URL)
			cfg.Timeout = 50 * time.Millisecond
			slow, err := paymentgateway.NewClient(cfg, logger)
			Expect(err).ToNot(HaveOccurred())
			gateway.delay = 300 * time.Millisecond

			_, err = slow.InitPayment(ctx(), paymentgateway.InitParams{OrderReference: "1-a", Amount: 100, Items: phoneItems()})
			Expect(errors.Is(err, internal.ErrGatewayUnavailable)).To(BeTrue())
			Eventually(func() int { return gateway.count("/Init") }).Should(Equal(1))
			Consistently(func() int { return gateway.count("/Init") }, 400*time.Millisecond).Should(Equal(1))
		})

		It("rejects a response with a wrong signature", func() {
			gateway.unsigned = true
			base := gateway.respond
			gateway.respond = func(path string, req paymentgateway.Fields) paymentgateway.Fields {
				resp := base(path, req)
				resp["Token"] = "deadbeef"
				return resp
			}

			_, err := client.InitPayment(ctx(), paymentgateway.InitParams{OrderReference: "1-a", Amount: 100, Items: phoneItems()})
			Expect(errors.Is(err, internal.ErrSignatureInvalid)).To(BeTrue())
		})

		It("accepts an unsigned response unless strict verification is on", func() {
			gateway.unsigned = true

			_, err := client.InitPayment(ctx(), paymentgateway.InitParams{OrderReference: "1-a", Amount: 100, Items: phoneItems()})
			Expect(err).ToNot(HaveOccurred())

			cfg := testClientConfig(gateway.server.URL)
			cfg.StrictResponseVerification = true
			strict, err := paymentgateway.NewClient(cfg, logger)
			Expect(err).ToNot(HaveOccurred())

			_, err = strict.InitPayment(ctx(), paymentgateway.InitParams{OrderReference: "1-b", Amount: 100, Items: phoneItems()})
			Expect(errors.Is(err, internal.ErrSignatureInvalid)).To(BeTrue())
		})
	})

	Describe("GetState", func() {
		It("returns the gateway status", func() {
			state, err := client.GetState(ctx(), "3093639567")

			Expect(err).ToNot(HaveOccurred())
			Expect(string(state.Status)).To(Equal("CONFIRMED"))
			Expect(state.Amount).To(Equal(int64(2999000)))
			Expect(gateway.signer.Verify(gateway.last("/GetState"))).To(BeTrue())
		})
	})

	Describe("Cancel", func() {
		It("sends a partial amount", func() {
			amount := int64(1000000)
			result, err := client.Cancel(ctx(), "3093639567", &amount, 2999000)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.NewAmount).To(Equal(int64(1999000)))
			sent := gateway.last("/Cancel")
			Expect(sent["Amount"]).To(Equal(json.Number("1000000")))
		})

		It("omits the amount for a full cancel", func() {
			_, err := client.Cancel(ctx(), "3093639567", nil, 2999000)

			Expect(err).ToNot(HaveOccurred())
			Expect(gateway.last("/Cancel")).ToNot(HaveKey("Amount"))
		})

		It("fails fast when the partial amount exceeds the original", func() {
			amount := int64(3000000)
			_, err := client.Cancel(ctx(), "3093639567", &amount, 2999000)

			Expect(errors.Is(err, internal.ErrValidation)).To(BeTrue())
			Expect(gateway.count("/Cancel")).To(Equal(0))
		})
	})

	Describe("VerifyNotification", func() {
		notification := func() paymentgateway.Fields {
			f := paymentgateway.Fields{
				"TerminalKey": terminalKey,
				"OrderId":     "42-abcd1234",
				"Success":     true,
				"Status":      "CONFIRMED",
				"PaymentId":   json.Number("3093639567"),
				"ErrorCode":   "0",
				"Amount":      json.Number("2999000"),
				"CardId":      json.Number("26800000"),
				"Pan":         "430000******0777",
				"ExpDate":     "1122",
			}
			token, err := gateway.signer.Sign(f)
			Expect(err).ToNot(HaveOccurred())
			f["Token"] = token
			return f
		}

		It("decodes a correctly signed notification", func() {
			n, err := client.VerifyNotification(notification())

			Expect(err).ToNot(HaveOccurred())
			Expect(n.PaymentID).To(Equal("3093639567"))
			Expect(string(n.Status)).To(Equal("CONFIRMED"))
			Expect(n.Amount).To(Equal(int64(2999000)))
		})

		It("rejects a tampered notification", func() {
			f := notification()
			f["Status"] = "REFUNDED"

			_, err := client.VerifyNotification(f)
			Expect(errors.Is(err, internal.ErrSignatureInvalid)).To(BeTrue())
		})

		It("rejects an unsigned notification", func() {
			f := notification()
			delete(f, "Token")

			_, err := client.VerifyNotification(f)
			Expect(errors.Is(err, internal.ErrSignatureInvalid)).To(BeTrue())
		})
	})
})
