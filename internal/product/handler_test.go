package product_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/storefront/internal/core/database/dbtest"
	"github.com/frahmantamala/storefront/internal/product"
	productPostgres "github.com/frahmantamala/storefront/internal/product/postgres"
	"github.com/frahmantamala/storefront/internal/transport"
)

var _ = Describe("Product Handler Integration", func() {
	var (
		db      *gorm.DB
		handler *product.Handler
		router  chi.Router
	)

	BeforeEach(func() {
		var err error
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())

		service := product.NewService(productPostgres.NewProductRepository(db), slogger)
		handler = product.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		router = chi.NewRouter()
		router.Get("/products", handler.GetProducts)
		router.Get("/products/{id}", handler.GetProduct)
		router.Post("/admin/products", handler.CreateProduct)
		router.Put("/admin/products/{id}", handler.UpdateProduct)
		router.Delete("/admin/products/{id}", handler.DeleteProduct)

		_, err = service.CreateProduct(ctx(), product.ProductRequest{Name: "Chair", Price: decimal.RequireFromString("29990.00"), Category: "furniture"})
		Expect(err).NotTo(HaveOccurred())
	})

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("should handle GET /products request successfully", func() {
		w := serve(http.MethodGet, "/products", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var response product.ProductsResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.Products).To(HaveLen(1))
		Expect(response.Products[0].Price).To(Equal("29990.00"))
		Expect(response.Products[0].PriceMinor).To(Equal(int64(2999000)))
	})

	It("should return 404 for an unknown product", func() {
		w := serve(http.MethodGet, "/products/99", "")

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(w.Body.String()).To(ContainSubstring("PRODUCT_NOT_FOUND"))
	})

	It("should return 400 for a malformed id", func() {
		w := serve(http.MethodGet, "/products/abc", "")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should create, update and hide a product", func() {
		w := serve(http.MethodPost, "/admin/products", `{"name":"Lamp","price":"9.99","category":"light"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var created product.ProductResponse
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
		Expect(created.ID).To(BeNumerically(">", 1))

		w = serve(http.MethodPut, "/admin/products/"+itoa(created.ID), `{"name":"Desk lamp","price":12.5,"category":"light"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"price":"12.50"`))

		w = serve(http.MethodDelete, "/admin/products/"+itoa(created.ID), "")
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = serve(http.MethodGet, "/products", "")
		Expect(w.Body.String()).NotTo(ContainSubstring("Desk lamp"))
	})

	It("should reject invalid product payloads", func() {
		w := serve(http.MethodPost, "/admin/products", `{"name":"","price":"-1","category":""}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("VALIDATION_ERROR"))
	})
})
