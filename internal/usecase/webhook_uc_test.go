//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/adapter"
	"oproz-billing/internal/usecase"
)

type webhookUCDeps struct {
	payments *memPaymentRepo
	plans    *memPlanRepo
	offers   *memOfferRepo
	events   *memEventRepo
	notifier *mockNotifier
}

func newWebhookUC(t *testing.T) (usecase.WebhookUseCase, *webhookUCDeps) {
	t.Helper()
	deps := &webhookUCDeps{
		payments: newMemPaymentRepo(),
		plans:    newMemPlanRepo(),
		offers:   newMemOfferRepo(),
		events:   newMemEventRepo(),
		notifier: &mockNotifier{},
	}
	uc := usecase.NewWebhookUseCase(
		deps.payments, deps.plans, deps.offers, deps.events, deps.notifier,
		&mockTxManager{}, newTestLogger(),
	)
	return uc, deps
}

func seedPendingRecord(t *testing.T, deps *webhookUCDeps) *model.PaymentRecord {
	t.Helper()
	ctx := context.Background()
	plan := &model.SubscriptionPlan{
		ID: "plan-1", Name: "Standard Monthly", Price: 99900,
		Duration: model.PlanDurationMonthly, Tier: model.PlanTierStandard, Active: true,
	}
	if err := deps.plans.Save(ctx, nil, plan); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	rec := &model.PaymentRecord{
		ID: "rec-1", TransactionID: "TXN_TEST1", GatewayOrderID: "order_1",
		UserID: "user-1", PlanID: plan.ID,
		BaseAmount: 99900, FinalAmount: 99900, Currency: "INR",
		Status: model.PaymentStatusPending, PaymentDate: now, CreatedAt: now, UpdatedAt: now,
	}
	if err := deps.payments.Insert(ctx, nil, rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func capturedEvent(orderID, paymentID string, amount int64) adapter.GatewayEvent {
	return adapter.GatewayEvent{
		Type: "payment.captured", PaymentID: paymentID, OrderID: orderID,
		Amount: amount, Method: "upi", Raw: []byte(`{"event":"payment.captured"}`),
	}
}

func TestWebhookUseCase_Captured(t *testing.T) {
	ctx := context.Background()

	t.Run("activates the matching pending record", func(t *testing.T) {
		uc, deps := newWebhookUC(t)
		rec := seedPendingRecord(t, deps)

		status, err := uc.Reconcile(ctx, capturedEvent(rec.GatewayOrderID, "pay_1", rec.FinalAmount))
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if status != model.WebhookEventStatusApplied {
			t.Fatalf("status = %s, want applied", status)
		}

		got, _ := deps.payments.FindByID(ctx, nil, rec.ID)
		if got.Status != model.PaymentStatusSuccess {
			t.Errorf("record status = %s, want success", got.Status)
		}
		if got.SubscriptionEnd == nil {
			t.Fatal("subscription window must be set")
		}
		wantEnd := model.AddPlanDuration(*got.SubscriptionStart, model.PlanDurationMonthly)
		if !got.SubscriptionEnd.Equal(wantEnd) {
			t.Errorf("subscription end = %v, want %v", got.SubscriptionEnd, wantEnd)
		}
		if len(deps.notifier.succeeded) != 1 {
			t.Errorf("success notifications = %d, want 1", len(deps.notifier.succeeded))
		}
	})

	t.Run("records the method the gateway reports", func(t *testing.T) {
		uc, deps := newWebhookUC(t)
		rec := seedPendingRecord(t, deps)

		if _, err := uc.Reconcile(ctx, capturedEvent(rec.GatewayOrderID, "pay_1", rec.FinalAmount)); err != nil {
			t.Fatal(err)
		}
		got, _ := deps.payments.FindByID(ctx, nil, rec.ID)
		if got.Method == nil || *got.Method != model.PaymentMethodUPI {
			t.Errorf("method = %v, want upi", got.Method)
		}
	})

	t.Run("unknown method string is stored as other", func(t *testing.T) {
		uc, deps := newWebhookUC(t)
		rec := seedPendingRecord(t, deps)
		ev := capturedEvent(rec.GatewayOrderID, "pay_1", rec.FinalAmount)
		ev.Method = "emandate"

		if _, err := uc.Reconcile(ctx, ev); err != nil {
			t.Fatal(err)
		}
		got, _ := deps.payments.FindByID(ctx, nil, rec.ID)
		if got.Method == nil || *got.Method != model.PaymentMethodOther {
			t.Errorf("method = %v, want other", got.Method)
		}
	})

	t.Run("exhausted offer cap still activates the record", func(t *testing.T) {
		uc, deps := newWebhookUC(t)

		maxUsage := 1
		offer := &model.Offer{
			ID: "offer-1", Code: "LAUNCH10", Active: true,
			MaxUsageCount: &maxUsage, UsedCount: 1,
		}
		if err := deps.offers.Save(ctx, nil, offer); err != nil {
			t.Fatal(err)
		}
		plan := &model.SubscriptionPlan{
			ID: "plan-1", Name: "Standard Monthly", Price: 99900,
			Duration: model.PlanDurationMonthly, Tier: model.PlanTierStandard, Active: true,
		}
		if err := deps.plans.Save(ctx, nil, plan); err != nil {
			t.Fatal(err)
		}
		now := time.Now().UTC()
		rec := &model.PaymentRecord{
			ID: "rec-1", TransactionID: "TXN_TEST1", GatewayOrderID: "order_1",
			UserID: "user-1", PlanID: plan.ID, OfferID: &offer.ID,
			BaseAmount: 99900, DiscountAmount: 9990, FinalAmount: 89910, Currency: "INR",
			Status: model.PaymentStatusPending, PaymentDate: now, CreatedAt: now, UpdatedAt: now,
		}
		if err := deps.payments.Insert(ctx, nil, rec); err != nil {
			t.Fatal(err)
		}

		status, err := uc.Reconcile(ctx, capturedEvent(rec.GatewayOrderID, "pay_1", rec.FinalAmount))
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if status != model.WebhookEventStatusApplied {
			t.Fatalf("status = %s, want applied", status)
		}
		got, _ := deps.payments.FindByID(ctx, nil, rec.ID)
		if got.Status != model.PaymentStatusSuccess {
			t.Errorf("record status = %s, want success", got.Status)
		}
		stored, _ := deps.offers.FindByID(ctx, nil, offer.ID)
		if stored.UsedCount != 1 {
			t.Errorf("used count = %d, want 1 past the cap", stored.UsedCount)
		}
	})

	t.Run("redelivery is ignored and does not extend the window", func(t *testing.T) {
		uc, deps := newWebhookUC(t)
		rec := seedPendingRecord(t, deps)
		ev := capturedEvent(rec.GatewayOrderID, "pay_1", rec.FinalAmount)

		if _, err := uc.Reconcile(ctx, ev); err != nil {
			t.Fatal(err)
		}
		first, _ := deps.payments.FindByID(ctx, nil, rec.ID)

		status, err := uc.Reconcile(ctx, ev)
		if err != nil {
			t.Fatalf("redelivery: %v", err)
		}
		if status != model.WebhookEventStatusIgnored {
			t.Errorf("status = %s, want ignored", status)
		}
		second, _ := deps.payments.FindByID(ctx, nil, rec.ID)
		if !second.SubscriptionEnd.Equal(*first.SubscriptionEnd) {
			t.Error("redelivery must not move the subscription window")
		}
		if len(deps.notifier.succeeded) != 1 {
			t.Errorf("redelivery must not notify again, got %d", len(deps.notifier.succeeded))
		}
	})

	t.Run("event before any record is queued for replay", func(t *testing.T) {
		uc, deps := newWebhookUC(t)

		status, err := uc.Reconcile(ctx, capturedEvent("order_unknown", "pay_7", 500))
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if status != model.WebhookEventStatusPending {
			t.Fatalf("status = %s, want pending", status)
		}
		pending, _ := deps.events.ListPending(ctx, nil, 10)
		if len(pending) != 1 {
			t.Fatalf("stored events = %d, want 1", len(pending))
		}
		if pending[0].GatewayPaymentID != "pay_7" || pending[0].EventType != "payment.captured" {
			t.Errorf("stored event fields wrong: %+v", pending[0])
		}
	})

	t.Run("queued event replays once the record exists", func(t *testing.T) {
		uc, deps := newWebhookUC(t)
		ev := capturedEvent("order_1", "pay_1", 99900)

		if status, _ := uc.Reconcile(ctx, ev); status != model.WebhookEventStatusPending {
			t.Fatalf("expected pending before the record exists")
		}
		rec := seedPendingRecord(t, deps)

		status, err := uc.Apply(ctx, ev)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if status != model.WebhookEventStatusApplied {
			t.Fatalf("status = %s, want applied", status)
		}
		got, _ := deps.payments.FindByID(ctx, nil, rec.ID)
		if got.Status != model.PaymentStatusSuccess {
			t.Errorf("record status = %s, want success", got.Status)
		}
	})
}

func TestWebhookUseCase_Failed(t *testing.T) {
	ctx := context.Background()

	t.Run("marks a pending record failed", func(t *testing.T) {
		uc, deps := newWebhookUC(t)
		rec := seedPendingRecord(t, deps)

		status, err := uc.Reconcile(ctx, adapter.GatewayEvent{
			Type: "payment.failed", OrderID: rec.GatewayOrderID, Raw: []byte(`{}`),
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if status != model.WebhookEventStatusApplied {
			t.Fatalf("status = %s, want applied", status)
		}
		got, _ := deps.payments.FindByID(ctx, nil, rec.ID)
		if got.Status != model.PaymentStatusFailed {
			t.Errorf("record status = %s, want failed", got.Status)
		}
		if len(deps.notifier.failed) != 1 {
			t.Errorf("failure notifications = %d, want 1", len(deps.notifier.failed))
		}
	})

	t.Run("failure after success is ignored", func(t *testing.T) {
		uc, deps := newWebhookUC(t)
		rec := seedPendingRecord(t, deps)
		if _, err := uc.Reconcile(ctx, capturedEvent(rec.GatewayOrderID, "pay_1", rec.FinalAmount)); err != nil {
			t.Fatal(err)
		}

		status, err := uc.Reconcile(ctx, adapter.GatewayEvent{
			Type: "payment.failed", PaymentID: "pay_1", OrderID: rec.GatewayOrderID, Raw: []byte(`{}`),
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if status != model.WebhookEventStatusIgnored {
			t.Errorf("status = %s, want ignored", status)
		}
		got, _ := deps.payments.FindByID(ctx, nil, rec.ID)
		if got.Status != model.PaymentStatusSuccess {
			t.Errorf("success record must not be demoted, got %s", got.Status)
		}
	})
}

func TestWebhookUseCase_Refunded(t *testing.T) {
	ctx := context.Background()
	uc, deps := newWebhookUC(t)
	rec := seedPendingRecord(t, deps)
	if _, err := uc.Reconcile(ctx, capturedEvent(rec.GatewayOrderID, "pay_1", rec.FinalAmount)); err != nil {
		t.Fatal(err)
	}

	status, err := uc.Reconcile(ctx, adapter.GatewayEvent{
		Type: "refund.processed", PaymentID: "pay_1", Raw: []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if status != model.WebhookEventStatusApplied {
		t.Fatalf("status = %s, want applied", status)
	}
	got, _ := deps.payments.FindByID(ctx, nil, rec.ID)
	if got.Status != model.PaymentStatusRefunded {
		t.Errorf("record status = %s, want refunded", got.Status)
	}
}

func TestWebhookUseCase_UnknownEventIgnored(t *testing.T) {
	uc, _ := newWebhookUC(t)
	status, err := uc.Reconcile(context.Background(), adapter.GatewayEvent{
		Type: "invoice.paid", Raw: []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if status != model.WebhookEventStatusIgnored {
		t.Errorf("status = %s, want ignored", status)
	}
}
