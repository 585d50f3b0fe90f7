package payment_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/storefront/internal"
	ordermodel "github.com/frahmantamala/storefront/internal/core/datamodel/order"
	paymentmodel "github.com/frahmantamala/storefront/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/storefront/internal/core/events"
	"github.com/frahmantamala/storefront/internal/payment"
	"github.com/frahmantamala/storefront/internal/paymentgateway"
)

// laggingReads serves an outdated status for the first reads of a record, as if
// another writer moved it right after this reconciler looked.
type laggingReads struct {
	payment.Store
	state *lagState
}

type lagState struct {
	mu     sync.Mutex
	reads  int
	lagFor int
	status payment.Status
}

func (s *laggingReads) GetByID(ctx context.Context, id int64) (*paymentmodel.PaymentRecord, error) {
	rec, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.reads++
	if s.state.reads <= s.state.lagFor {
		old := *rec
		old.Status = string(s.state.status)
		return &old, nil
	}
	return rec, nil
}

func (s *laggingReads) InTx(ctx context.Context, fn func(tx payment.Store) error) error {
	return s.Store.InTx(ctx, func(tx payment.Store) error {
		return fn(&laggingReads{Store: tx, state: s.state})
	})
}

var _ = Describe("Status lattice", func() {
	DescribeTable("CanTransition",
		func(from, to payment.Status, allowed bool) {
			Expect(payment.CanTransition(from, to)).To(Equal(allowed))
		},
		Entry("pending to processing", payment.StatusPending, payment.StatusProcessing, true),
		Entry("pending to completed", payment.StatusPending, payment.StatusCompleted, true),
		Entry("pending to failed", payment.StatusPending, payment.StatusFailed, true),
		Entry("processing to completed", payment.StatusProcessing, payment.StatusCompleted, true),
		Entry("processing to failed", payment.StatusProcessing, payment.StatusFailed, true),
		Entry("completed to refunded", payment.StatusCompleted, payment.StatusRefunded, true),
		Entry("completed back to pending", payment.StatusCompleted, payment.StatusPending, false),
		Entry("completed to failed", payment.StatusCompleted, payment.StatusFailed, false),
		Entry("processing back to pending", payment.StatusProcessing, payment.StatusPending, false),
		Entry("failed to completed", payment.StatusFailed, payment.StatusCompleted, false),
		Entry("refunded to completed", payment.StatusRefunded, payment.StatusCompleted, false),
		Entry("pending to refunded", payment.StatusPending, payment.StatusRefunded, false),
	)

	It("should have no way out of a final status", func() {
		all := []payment.Status{payment.StatusPending, payment.StatusProcessing, payment.StatusCompleted, payment.StatusFailed, payment.StatusRefunded}
		for _, from := range all {
			Expect(from.Valid()).To(BeTrue())
			if !from.IsFinal() {
				continue
			}
			for _, to := range all {
				Expect(payment.CanTransition(from, to)).To(BeFalse(), "%s -> %s", from, to)
			}
		}
		Expect(payment.StatusCompleted.IsFinal()).To(BeFalse())
		Expect(payment.Status("settled").Valid()).To(BeFalse())
	})

	DescribeTable("MapGatewayStatus",
		func(gw gatewaytypes.GatewayStatus, want payment.Status) {
			Expect(payment.MapGatewayStatus(gw)).To(Equal(want))
		},
		Entry("CONFIRMED", gatewaytypes.StatusConfirmed, payment.StatusCompleted),
		Entry("COMPLETED", gatewaytypes.StatusCompleted, payment.StatusCompleted),
		Entry("REJECTED", gatewaytypes.StatusRejected, payment.StatusFailed),
		Entry("CANCELED", gatewaytypes.StatusCanceled, payment.StatusFailed),
		Entry("DEADLINE_EXPIRED", gatewaytypes.StatusDeadlineExpired, payment.StatusFailed),
		Entry("AUTH_FAIL", gatewaytypes.StatusAuthFail, payment.StatusFailed),
		Entry("REVERSED", gatewaytypes.StatusReversed, payment.StatusFailed),
		Entry("REFUNDED", gatewaytypes.StatusRefunded, payment.StatusRefunded),
		Entry("PARTIAL_REFUNDED", gatewaytypes.StatusPartialRefunded, payment.StatusRefunded),
		Entry("AUTHORIZED", gatewaytypes.GatewayStatus("AUTHORIZED"), payment.StatusProcessing),
		Entry("NEW", gatewaytypes.GatewayStatus("NEW"), payment.StatusProcessing),
		Entry("unknown", gatewaytypes.GatewayStatus("SOMETHING_NEW"), payment.StatusProcessing),
	)
})

var _ = Describe("Reconciler", func() {
	var (
		env      *testEnv
		ctx      context.Context
		orderID  int64
		recordID int64
	)

	BeforeEach(func() {
		env = newTestEnv()
		ctx = context.Background()
		orderID, recordID = env.seedPayment("3093639567", 2999000)
	})

	AfterEach(func() {
		env.close()
	})

	notify := func(status string, amount int64) (payment.Result, error) {
		return env.reconciler.HandleNotification(ctx, decode(env.gateway.notification("3093639567", status, amount)))
	}

	Context("HandleNotification", func() {
		It("should confirm the order on CONFIRMED", func() {
			// Given a pending payment of 2999000

			// When the gateway confirms it
			res, err := notify("CONFIRMED", 2999000)

			// Then the record is completed and the order confirmed
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeApplied))
			Expect(res.From).To(Equal(payment.StatusPending))
			Expect(res.To).To(Equal(payment.StatusCompleted))

			rec, err := env.store.GetByID(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(string(payment.StatusCompleted)))
			Expect(rec.CompletedAt).NotTo(BeNil())

			o := env.order(orderID)
			Expect(o.Status).To(Equal(ordermodel.StatusConfirmed))
			Expect(o.ConfirmedAt).NotTo(BeNil())

			env.bus.Wait()
			Expect(env.published.types()).To(Equal([]string{events.EventTypePaymentCompleted}))
		})

		It("should never move backwards across out-of-order deliveries", func() {
			// Given deliveries arriving as pending, completed, pending
			_, err := notify("NEW", 2999000)
			Expect(err).NotTo(HaveOccurred())
			_, err = notify("CONFIRMED", 2999000)
			Expect(err).NotTo(HaveOccurred())

			// When a stale AUTHORIZED arrives after completion
			res, err := notify("AUTHORIZED", 2999000)

			// Then it is dropped and the record stays completed
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeDropped))
			Expect(res.Reason).To(Equal(string(internal.ErrCodeStatusRegression)))

			rec, err := env.store.GetByID(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(string(payment.StatusCompleted)))

			evts, err := env.store.ListEvents(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			statuses := make([]string, 0, len(evts))
			for _, e := range evts {
				statuses = append(statuses, e.Status)
			}
			Expect(statuses).To(Equal([]string{"pending", "processing", "completed"}))
		})

		It("should treat a redelivered CONFIRMED as a duplicate", func() {
			// Given a completed payment
			_, err := notify("CONFIRMED", 2999000)
			Expect(err).NotTo(HaveOccurred())

			// When the same notification is delivered again
			res, err := notify("CONFIRMED", 2999000)

			// Then nothing changes and no second event is written
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeDuplicate))

			evts, err := env.store.ListEvents(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(evts).To(HaveLen(2))

			env.bus.Wait()
			Expect(env.published.types()).To(HaveLen(1))
		})

		It("should fail the order on REJECTED", func() {
			res, err := notify("REJECTED", 2999000)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.To).To(Equal(payment.StatusFailed))
			Expect(env.order(orderID).Status).To(Equal(ordermodel.StatusPaymentFailed))

			env.bus.Wait()
			Expect(env.published.types()).To(Equal([]string{events.EventTypePaymentFailed}))
		})

		It("should refund a completed payment even with a partial amount", func() {
			// Given a completed payment
			_, err := notify("CONFIRMED", 2999000)
			Expect(err).NotTo(HaveOccurred())

			// When a partial refund notification carries the refunded amount
			res, err := notify("PARTIAL_REFUNDED", 1000000)

			// Then the amount check does not block it
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeApplied))
			Expect(res.To).To(Equal(payment.StatusRefunded))

			rec, err := env.store.GetByID(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.CompletedAt).To(BeNil())
			Expect(env.order(orderID).Status).To(Equal(ordermodel.StatusRefunded))
		})

		It("should ignore notifications for unknown payments", func() {
			body := env.gateway.notification("999999", "CONFIRMED", 2999000)

			res, err := env.reconciler.HandleNotification(ctx, decode(body))

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeIgnored))
			Expect(env.order(orderID).Status).To(Equal(ordermodel.StatusPending))
		})

		It("should ignore a confirmation with a different amount", func() {
			res, err := notify("CONFIRMED", 100)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeIgnored))
			Expect(res.Reason).To(Equal(string(internal.ErrCodeAmountMismatch)))

			rec, err := env.store.GetByID(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(string(payment.StatusPending)))
		})

		It("should reject a tampered notification without side effects", func() {
			// Given a signed REJECTED notification
			raw := decode(env.gateway.notification("3093639567", "REJECTED", 2999000))

			// When an attacker flips the status
			raw["Status"] = "CONFIRMED"
			res, err := env.reconciler.HandleNotification(ctx, raw)

			// Then it is rejected as a signature failure
			Expect(err).To(HaveOccurred())
			Expect(err).To(MatchError(internal.ErrSignatureInvalid))
			Expect(res.Outcome).To(Equal(payment.OutcomeRejected))

			rec, err := env.store.GetByID(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(string(payment.StatusPending)))
			Expect(env.order(orderID).Status).To(Equal(ordermodel.StatusPending))
		})

		It("should reject an unsigned notification", func() {
			raw := decode(env.gateway.notification("3093639567", "CONFIRMED", 2999000))
			delete(raw, paymentgateway.TokenField)

			_, err := env.reconciler.HandleNotification(ctx, raw)

			Expect(err).To(MatchError(internal.ErrSignatureInvalid))
		})
	})

	Context("ApplyStatus", func() {
		It("should reject the lattice regression from failed to completed", func() {
			_, err := env.reconciler.ApplyStatus(ctx, recordID, payment.StatusFailed, "test")
			Expect(err).NotTo(HaveOccurred())

			res, err := env.reconciler.ApplyStatus(ctx, recordID, payment.StatusCompleted, "late confirmation")

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeDropped))
			Expect(env.order(orderID).Status).To(Equal(ordermodel.StatusPaymentFailed))
		})

		It("should keep completed through pending, completed, pending", func() {
			for _, s := range []payment.Status{payment.StatusPending, payment.StatusCompleted, payment.StatusPending} {
				_, err := env.reconciler.ApplyStatus(ctx, recordID, s, "sequence")
				Expect(err).NotTo(HaveOccurred())
			}

			rec, err := env.store.GetByID(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(string(payment.StatusCompleted)))

			evts, err := env.store.ListEvents(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(evts).To(HaveLen(2))
		})

		It("should return not found for a missing record", func() {
			_, err := env.reconciler.ApplyStatus(ctx, 424242, payment.StatusCompleted, "test")

			Expect(err).To(MatchError(internal.ErrPaymentNotFound))
		})

		It("should refuse a status outside the lattice", func() {
			_, err := env.reconciler.ApplyStatus(ctx, recordID, payment.Status("settled"), "test")

			Expect(err).To(MatchError(internal.ErrValidation))
			evts, err := env.store.ListEvents(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(evts).To(HaveLen(1))
		})

		Context("when another writer moves the record first", func() {
			var lag *lagState

			lagging := func(status payment.Status, reads int) *payment.Reconciler {
				lag = &lagState{lagFor: reads, status: status}
				return payment.NewReconciler(&laggingReads{Store: env.store, state: lag}, env.client, env.bus, env.logger)
			}

			It("should re-read and apply on top of the newer status", func() {
				// Given the record already moved to processing but the first read still says pending
				_, err := env.reconciler.ApplyStatus(ctx, recordID, payment.StatusProcessing, "form shown")
				Expect(err).NotTo(HaveOccurred())
				r := lagging(payment.StatusPending, 1)

				// When completed is applied
				res, err := r.ApplyStatus(ctx, recordID, payment.StatusCompleted, "late confirmation")

				// Then the guard fails once, the record is read again and one event is added
				Expect(err).NotTo(HaveOccurred())
				Expect(lag.reads).To(Equal(2))
				Expect(res.Outcome).To(Equal(payment.OutcomeApplied))
				Expect(res.From).To(Equal(payment.StatusProcessing))

				evts, err := env.store.ListEvents(ctx, recordID)
				Expect(err).NotTo(HaveOccurred())
				Expect(evts).To(HaveLen(3))
				Expect(evts[2].Status).To(Equal(string(payment.StatusCompleted)))
				Expect(env.order(orderID).Status).To(Equal(ordermodel.StatusConfirmed))
			})

			It("should drop the update when the newer status forbids it", func() {
				// Given the record was completed meanwhile
				_, err := env.reconciler.ApplyStatus(ctx, recordID, payment.StatusCompleted, "confirmed")
				Expect(err).NotTo(HaveOccurred())
				r := lagging(payment.StatusPending, 1)

				// When a failure computed from the old read is applied
				res, err := r.ApplyStatus(ctx, recordID, payment.StatusFailed, "stale failure")

				// Then it is re-evaluated and dropped without an event
				Expect(err).NotTo(HaveOccurred())
				Expect(lag.reads).To(Equal(2))
				Expect(res.Outcome).To(Equal(payment.OutcomeDropped))

				rec, err := env.store.GetByID(ctx, recordID)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Status).To(Equal(string(payment.StatusCompleted)))
				evts, err := env.store.ListEvents(ctx, recordID)
				Expect(err).NotTo(HaveOccurred())
				Expect(evts).To(HaveLen(2))
			})

			It("should give up after repeated conflicts", func() {
				_, err := env.reconciler.ApplyStatus(ctx, recordID, payment.StatusProcessing, "form shown")
				Expect(err).NotTo(HaveOccurred())
				r := lagging(payment.StatusPending, 100)

				_, err = r.ApplyStatus(ctx, recordID, payment.StatusCompleted, "late confirmation")

				Expect(err).To(MatchError(payment.ErrStaleStatus))
				Expect(lag.reads).To(Equal(2))
				rec, err := env.store.GetByID(ctx, recordID)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Status).To(Equal(string(payment.StatusProcessing)))
				evts, err := env.store.ListEvents(ctx, recordID)
				Expect(err).NotTo(HaveOccurred())
				Expect(evts).To(HaveLen(2))
			})
		})
	})

	Context("Refresh", func() {
		It("should apply the state reported by GetState", func() {
			// Given the gateway reports the payment as confirmed
			env.gateway.state = "CONFIRMED"

			// When the record is refreshed
			res, err := env.reconciler.Refresh(ctx, recordID)

			// Then the status is applied with a poll message
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeApplied))
			Expect(env.gateway.last("/GetState").String("PaymentId")).To(Equal("3093639567"))

			evts, err := env.store.ListEvents(ctx, recordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(evts).To(HaveLen(2))
			Expect(*evts[1].Message).To(Equal("state poll: CONFIRMED"))
		})

		It("should not ask the gateway about a final payment", func() {
			_, err := env.reconciler.ApplyStatus(ctx, recordID, payment.StatusFailed, "rejected")
			Expect(err).NotTo(HaveOccurred())

			res, err := env.reconciler.Refresh(ctx, recordID)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(payment.OutcomeDuplicate))
			Expect(res.From).To(Equal(payment.StatusFailed))
			Expect(env.gateway.count("/GetState")).To(BeZero())
		})

		It("should keep an in-flight payment in processing", func() {
			env.gateway.state = "FORM_SHOWED"

			res, err := env.reconciler.Refresh(ctx, recordID)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.To).To(Equal(payment.StatusProcessing))
		})
	})
})
