package payment_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/storefront/internal/payment"
	"github.com/frahmantamala/storefront/internal/paymentgateway"
	"github.com/frahmantamala/storefront/internal/transport"
)

var _ = Describe("WebhookHandler", func() {
	var (
		env     *testEnv
		handler *payment.WebhookHandler
	)

	BeforeEach(func() {
		env = newTestEnv()
		handler = payment.NewWebhookHandler(transport.NewBaseHandler(env.logger), env.reconciler, env.logger)
		env.seedPayment("3093639567", 2999000)
	})

	AfterEach(func() {
		env.close()
	})

	post := func(body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		handler.HandleNotification(rr, req)
		return rr
	}

	It("should acknowledge a valid notification with OK", func() {
		rr := post(env.gateway.notification("3093639567", "AUTHORIZED", 2999000))

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(rr.Body.String()).To(Equal("OK"))
		Expect(rr.Header().Get("Content-Type")).To(HavePrefix("text/plain"))
	})

	It("should acknowledge a notification for an unknown payment", func() {
		rr := post(env.gateway.notification("1", "CONFIRMED", 2999000))

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(rr.Body.String()).To(Equal("OK"))
	})

	It("should return 400 for a body that is not a JSON object", func() {
		rr := post([]byte(`["not", "an", "object"]`))

		Expect(rr.Code).To(Equal(http.StatusBadRequest))
	})

	It("should return 400 for a signed notification without a status", func() {
		signer := paymentgateway.NewSigner(password, paymentgateway.ConventionPasswordField, paymentgateway.CanonicalOptions{})
		fields := paymentgateway.Fields{"TerminalKey": terminalKey, "PaymentId": "3093639567", "Success": true}
		token, err := signer.Sign(fields)
		Expect(err).NotTo(HaveOccurred())
		fields[paymentgateway.TokenField] = token
		body, err := toJSON(fields)
		Expect(err).NotTo(HaveOccurred())

		rr := post(body)

		Expect(rr.Code).To(Equal(http.StatusBadRequest))
	})

	It("should return 403 for a wrong signature", func() {
		raw := decode(env.gateway.notification("3093639567", "CONFIRMED", 2999000))
		raw[paymentgateway.TokenField] = strings.Repeat("0", 64)
		body, err := toJSON(raw)
		Expect(err).NotTo(HaveOccurred())

		rr := post(body)

		Expect(rr.Code).To(Equal(http.StatusForbidden))
	})

	It("should return 403 for a notification signed with another password", func() {
		signer := paymentgateway.NewSigner("other-password", paymentgateway.ConventionPasswordField, paymentgateway.CanonicalOptions{})
		fields := paymentgateway.Fields{"TerminalKey": terminalKey, "PaymentId": "3093639567", "Status": "CONFIRMED", "Amount": 2999000}
		token, err := signer.Sign(fields)
		Expect(err).NotTo(HaveOccurred())
		fields[paymentgateway.TokenField] = token
		body, err := toJSON(fields)
		Expect(err).NotTo(HaveOccurred())

		rr := post(body)

		Expect(rr.Code).To(Equal(http.StatusForbidden))
	})

	It("should return 413 for an oversized body", func() {
		body := append([]byte(`{"Pad":"`), bytes.Repeat([]byte("a"), 65<<10)...)
		body = append(body, []byte(`"}`)...)

		rr := post(body)

		Expect(rr.Code).To(Equal(http.StatusRequestEntityTooLarge))
	})
})
