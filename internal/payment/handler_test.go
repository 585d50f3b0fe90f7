package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/storefront/internal/core/database/dbtest"
	"github.com/frahmantamala/storefront/internal/order"
	orderPostgres "github.com/frahmantamala/storefront/internal/order/postgres"
	"github.com/frahmantamala/storefront/internal/payment"
	paymentPostgres "github.com/frahmantamala/storefront/internal/payment/postgres"
	"github.com/frahmantamala/storefront/internal/product"
	productPostgres "github.com/frahmantamala/storefront/internal/product/postgres"
	"github.com/frahmantamala/storefront/internal/transport"
)

var _ = Describe("Payment Handler Integration", func() {
	var (
		env       *testEnv
		router    chi.Router
		productID int64
	)

	BeforeEach(func() {
		env = newTestEnv()

		products := product.NewService(productPostgres.NewProductRepository(env.db), env.logger)
		orders := order.NewService(orderPostgres.NewOrderRepository(env.db), products, env.bus, "RUB", env.logger)
		service := payment.NewPaymentService(env.store, env.client, orders, env.reconciler, env.logger)
		sqlxDB, err := dbtest.SQLX(env.db)
		Expect(err).NotTo(HaveOccurred())
		stats := paymentPostgres.NewStatsRepository(sqlxDB)
		handler := payment.NewHandler(transport.NewBaseHandler(env.logger), service, stats, env.logger)

		router = chi.NewRouter()
		router.Post("/checkout", handler.Checkout)
		router.Get("/payments/{reference}", handler.GetStatus)
		router.Post("/payments/{reference}/refresh", handler.Refresh)
		router.Get("/admin/payments/{id}", handler.GetPayment)
		router.Get("/admin/orders/{id}/payments", handler.GetOrderPayments)
		router.Post("/admin/payments/{id}/cancel", handler.Cancel)
		router.Get("/admin/payments/stats", handler.GetStats)

		p, err := products.CreateProduct(context.Background(), product.ProductRequest{
			Name:     "Chair",
			Price:    decimal.RequireFromString("29990.00"),
			Category: "furniture",
		})
		Expect(err).NotTo(HaveOccurred())
		productID = p.ID
	})

	AfterEach(func() {
		env.close()
	})

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	checkout := func() payment.CheckoutResult {
		body := `{"customer":{"name":"Anna","phone":"+79001234567"},"items":[{"product_id":` + itoa(productID) + `,"quantity":1}]}`
		w := serve(http.MethodPost, "/checkout", body)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var result payment.CheckoutResult
		Expect(json.Unmarshal(w.Body.Bytes(), &result)).To(Succeed())
		return result
	}

	It("should handle POST /checkout successfully", func() {
		result := checkout()

		Expect(result.Amount).To(Equal(int64(2999000)))
		Expect(result.Currency).To(Equal("RUB"))
		Expect(result.RedirectURL).NotTo(BeEmpty())
	})

	It("should accept a checkout without contact", func() {
		body := `{"customer":{"name":"Anna"},"items":[{"product_id":` + itoa(productID) + `,"quantity":1}]}`

		w := serve(http.MethodPost, "/checkout", body)

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(env.gateway.last("/Init")).NotTo(HaveKey("Receipt"))
	})

	It("should reject a malformed phone", func() {
		body := `{"customer":{"phone":"call me"},"items":[{"product_id":` + itoa(productID) + `,"quantity":1}]}`

		w := serve(http.MethodPost, "/checkout", body)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(env.gateway.count("/Init")).To(BeZero())
	})

	It("should reject malformed JSON", func() {
		w := serve(http.MethodPost, "/checkout", `{"items":`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report a gateway decline as 402", func() {
		env.gateway.decline = true
		body := `{"customer":{"email":"anna@example.com"},"items":[{"product_id":` + itoa(productID) + `,"quantity":1}]}`

		w := serve(http.MethodPost, "/checkout", body)

		Expect(w.Code).To(Equal(http.StatusPaymentRequired))
	})

	It("should handle GET /payments/{reference} for the buyer", func() {
		result := checkout()

		w := serve(http.MethodGet, "/payments/"+result.OrderReference, "")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).NotTo(ContainSubstring("gateway_payment_id"))
		Expect(w.Body.String()).NotTo(ContainSubstring(result.GatewayPaymentID))
		var status payment.PublicStatusResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &status)).To(Succeed())
		Expect(status.Status).To(Equal("pending"))
		Expect(status.OrderID).To(Equal(result.OrderID))
		Expect(status.RedirectURL).To(Equal(result.RedirectURL))
		Expect(status.Events).To(HaveLen(1))
	})

	It("should return 404 for an unknown reference", func() {
		w := serve(http.MethodGet, "/payments/"+payment.NewOrderReference(999), "")

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should not look payments up by record id", func() {
		result := checkout()

		w := serve(http.MethodGet, "/payments/"+itoa(result.PaymentID), "")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should handle POST /payments/{reference}/refresh", func() {
		result := checkout()
		env.gateway.state = "CONFIRMED"

		w := serve(http.MethodPost, "/payments/"+result.OrderReference+"/refresh", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp payment.RefreshResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.OrderReference).To(Equal(result.OrderReference))
		Expect(resp.Outcome).To(Equal("applied"))
		Expect(resp.Status).To(Equal("completed"))

		// the hosted page is gone once paid
		w = serve(http.MethodGet, "/payments/"+result.OrderReference, "")
		Expect(w.Body.String()).NotTo(ContainSubstring("redirect_url"))
	})

	It("should not call the gateway again for a settled payment", func() {
		result := checkout()
		env.gateway.state = "REJECTED"
		Expect(serve(http.MethodPost, "/payments/"+result.OrderReference+"/refresh", "").Code).To(Equal(http.StatusOK))

		w := serve(http.MethodPost, "/payments/"+result.OrderReference+"/refresh", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(env.gateway.count("/GetState")).To(Equal(1))
		var resp payment.RefreshResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal("failed"))
	})

	It("should show gateway ids on GET /admin/payments/{id}", func() {
		result := checkout()

		w := serve(http.MethodGet, "/admin/payments/"+itoa(result.PaymentID), "")

		Expect(w.Code).To(Equal(http.StatusOK))
		var status payment.StatusResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &status)).To(Succeed())
		Expect(status.GatewayPaymentID).To(Equal(result.GatewayPaymentID))
		Expect(status.OrderReference).To(Equal(result.OrderReference))
	})

	It("should list every attempt on GET /admin/orders/{id}/payments", func() {
		result := checkout()

		w := serve(http.MethodGet, "/admin/orders/"+itoa(result.OrderID)+"/payments", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp payment.OrderPaymentsResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Payments).To(HaveLen(1))
		Expect(resp.Payments[0].ID).To(Equal(result.PaymentID))
		Expect(resp.Payments[0].Events).To(HaveLen(1))
	})

	It("should reject a non-positive cancel amount", func() {
		result := checkout()

		w := serve(http.MethodPost, "/admin/payments/"+itoa(result.PaymentID)+"/cancel", `{"amount":0}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(env.gateway.count("/Cancel")).To(BeZero())
	})

	It("should cancel without a body", func() {
		result := checkout()

		w := serve(http.MethodPost, "/admin/payments/"+itoa(result.PaymentID)+"/cancel", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(env.gateway.count("/Cancel")).To(Equal(1))
	})

	It("should handle GET /admin/payments/stats", func() {
		checkout()

		w := serve(http.MethodGet, "/admin/payments/stats", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		var stats payment.StatsResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats.Payments).To(ConsistOf(payment.StatusCount{Status: "pending", Count: 1, Amount: 2999000}))
		Expect(stats.Orders).To(HaveKeyWithValue("pending", int64(1)))
	})
})
