package paymentgateway_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/storefront/internal/paymentgateway"
)

var _ = Describe("BuildReceipt", func() {
	items := []paymentgateway.LineItem{
		{Name: "Sticker", UnitPrice: 100, Quantity: decimal.NewFromInt(3), Amount: 1},
		{Name: "Tea, 250g", UnitPrice: 333, Quantity: decimal.RequireFromString("1.5"), Tax: "vat10", SKU: "4600000000000"},
	}

	It("is nil without an email or phone", func() {
		Expect(paymentgateway.BuildReceipt(paymentgateway.Customer{ID: "7"}, items, "", "")).To(BeNil())
		Expect(paymentgateway.BuildReceipt(paymentgateway.Customer{Email: "  "}, items, "", "")).To(BeNil())
	})

	It("recomputes every line amount from price and quantity", func() {
		receipt := paymentgateway.BuildReceipt(paymentgateway.Customer{Email: "a@b.com"}, items, "osn", "")

		Expect(receipt).ToNot(BeNil())
		Expect(receipt.Taxation).To(Equal("osn"))
		Expect(receipt.Items).To(HaveLen(2))
		Expect(receipt.Items[0].Amount).To(Equal(int64(300)))
		Expect(receipt.Items[0].Tax).To(Equal(paymentgateway.DefaultTax))
		// 333 * 1.5 = 499.5 rounds half away from zero
		Expect(receipt.Items[1].Amount).To(Equal(int64(500)))
		Expect(receipt.Items[1].Quantity.String()).To(Equal("1.5"))
		Expect(receipt.Items[1].Tax).To(Equal("vat10"))
		Expect(receipt.Items[1].Ean13).To(Equal("4600000000000"))
	})

	It("copies the customer contact", func() {
		receipt := paymentgateway.BuildReceipt(paymentgateway.Customer{Phone: "+79990000000"}, items, "", "")

		Expect(receipt.Phone).To(Equal("+79990000000"))
		Expect(receipt.Email).To(BeEmpty())
		Expect(receipt.Taxation).To(Equal(paymentgateway.DefaultTaxation))
	})
})
