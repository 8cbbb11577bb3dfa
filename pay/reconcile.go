package pay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/notify"
	"github.com/Papel-hub/talentoStore/orders"
)

const (
	pendingTTL = 24 * time.Hour
	lockTTL    = 30 * time.Second
)

var (
	// ErrRetryable marks a notification that must be delivered again.
	ErrRetryable = errors.New("notification should be retried")
	// ErrMissingPaymentID is returned for payment notifications without an id.
	ErrMissingPaymentID = errors.New("notification has no payment id")

	errLockBusy = errors.New("payment is being reconciled by another delivery")
)

func retryable(err error) error {
	return fmt.Errorf("%w: %v", ErrRetryable, err)
}

// IsRetryable reports whether the webhook should answer with a retry status.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

// Notification is the gateway's "something changed" ping. Its content is
// never trusted beyond the payment id.
type Notification struct {
	Type   string
	Action string
	DataID string
}

// ParseNotification reads the JSON body form {type, action, data:{id}} and
// falls back to the query form ?type=payment&data.id=... (or topic/id).
func ParseNotification(body []byte, query url.Values) Notification {
	var n Notification
	var raw struct {
		Type   string `json:"type"`
		Action string `json:"action"`
		Data   struct {
			ID json.RawMessage `json:"id"`
		} `json:"data"`
	}
	if len(body) > 0 && json.Unmarshal(body, &raw) == nil {
		n.Type = raw.Type
		n.Action = raw.Action
		n.DataID = rawID(raw.Data.ID)
	}
	if n.Type == "" {
		n.Type = query.Get("type")
	}
	if n.Type == "" {
		n.Type = query.Get("topic")
	}
	if n.DataID == "" {
		n.DataID = query.Get("data.id")
	}
	if n.DataID == "" {
		n.DataID = query.Get("id")
	}
	return n
}

// rawID accepts both "123" and 123.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var num json.Number
	if json.Unmarshal(raw, &num) == nil {
		return num.String()
	}
	return ""
}

// MapStatus translates a gateway payment status into an order status. The
// second result is false when the status implies no transition yet.
func MapStatus(gatewayStatus string) (models.OrderStatus, bool) {
	switch strings.ToLower(gatewayStatus) {
	case "approved":
		return models.OrderPaid, true
	case "rejected":
		return models.OrderFailed, true
	case "cancelled", "refunded", "charged_back":
		return models.OrderCancelled, true
	}
	return "", false
}

// ReconciliationAnomaly is a notification that could not be applied cleanly.
// Anomalies are logged and never fail the webhook.
type ReconciliationAnomaly struct {
	Kind         string
	PaymentID    string
	ReferenceKey string
	OrderIDs     []string
	Detail       string
}

const (
	AnomalyUnmatched   = "unmatched"
	AnomalyMultiple    = "multiple_matches"
	AnomalyConflicting = "conflicting_status"
)

func (a ReconciliationAnomaly) Error() string {
	return fmt.Sprintf("%s: payment %s ref %q orders %v: %s",
		a.Kind, a.PaymentID, a.ReferenceKey, a.OrderIDs, a.Detail)
}

// Locker serializes concurrent deliveries of the same payment.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// StatusPublisher announces order status changes.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev models.OrderStatusEvent) error
}

// Reconciler applies authoritative payment states to orders.
type Reconciler struct {
	repo      orders.Repository
	gateway   Gateway
	locker    Locker
	publisher StatusPublisher
	notifier  notify.Notifier
	now       func() time.Time
	onAnomaly func(ReconciliationAnomaly)
}

// NewReconciler wires the reconciler. locker and publisher may be nil.
func NewReconciler(repo orders.Repository, gateway Gateway, locker Locker, publisher StatusPublisher, notifier notify.Notifier) *Reconciler {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Reconciler{
		repo:      repo,
		gateway:   gateway,
		locker:    locker,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Handle processes one notification. Only errors satisfying IsRetryable ask
// the gateway to deliver again; everything else has been acknowledged.
func (rc *Reconciler) Handle(ctx context.Context, n Notification) error {
	if !strings.EqualFold(n.Type, "payment") {
		log.Printf("[Reconciler] ignoring %q notification", n.Type)
		return nil
	}
	if n.DataID == "" {
		return ErrMissingPaymentID
	}

	// Status writes are conditional, so a lock outage only costs duplicate work.
	if rc.locker != nil {
		ok, err := rc.locker.Acquire(ctx, n.DataID, lockTTL)
		switch {
		case err != nil:
			log.Printf("[Reconciler] lock for payment %s unavailable, continuing without it: %v", n.DataID, err)
		case !ok:
			return retryable(errLockBusy)
		default:
			defer rc.locker.Release(context.WithoutCancel(ctx), n.DataID)
		}
	}

	p, err := rc.gateway.GetPayment(ctx, n.DataID)
	if err != nil {
		var tmp interface{ Temporary() bool }
		if errors.As(err, &tmp) && !tmp.Temporary() {
			log.Printf("[Reconciler] payment %s rejected by gateway, dropping: %v", n.DataID, err)
			return nil
		}
		return retryable(fmt.Errorf("fetch payment %s: %w", n.DataID, err))
	}
	return rc.apply(ctx, p)
}

func (rc *Reconciler) apply(ctx context.Context, p models.PaymentDetails) error {
	target, ok := MapStatus(p.Status)
	if !ok {
		log.Printf("[Reconciler] payment %s is %q, nothing to apply", p.ID, p.Status)
		return nil
	}

	ref, matched, err := rc.match(ctx, p)
	if err != nil {
		return err
	}

	if len(matched) == 0 {
		rc.report(ReconciliationAnomaly{
			Kind: AnomalyUnmatched, PaymentID: p.ID, ReferenceKey: ref,
			Detail: "no order carries this reference; buffered",
		})
		if ref == "" {
			return nil
		}
		now := rc.now()
		err := rc.repo.SavePendingNotification(ctx, models.PendingNotification{
			PaymentID:     p.ID,
			ReferenceKey:  ref,
			GatewayStatus: p.Status,
			ReceivedAt:    now,
			ExpiresAt:     now.Add(pendingTTL),
		})
		return storageErr(err)
	}

	ids := make([]string, 0, len(matched))
	for _, o := range matched {
		ids = append(ids, o.ID)
	}
	if len(matched) > 1 {
		rc.report(ReconciliationAnomaly{
			Kind: AnomalyMultiple, PaymentID: p.ID, ReferenceKey: ref, OrderIDs: ids,
			Detail: fmt.Sprintf("%d orders share the reference; all set to %s", len(matched), target),
		})
	}

	var conflicts []string
	for _, o := range matched {
		changed, err := rc.repo.UpdateOrderStatus(ctx, o.ID, target, p.ID)
		switch {
		case errors.Is(err, orders.ErrTerminalStatus):
			conflicts = append(conflicts, o.ID)
			continue
		case err != nil:
			return storageErr(err)
		}
		if changed {
			rc.transitioned(ctx, o, target)
		}
		// Runs on redeliveries too, so a failed mark is repaired by the retry.
		if target == models.OrderPaid {
			if err := rc.markPurchased(ctx, o); err != nil {
				return err
			}
		}
	}

	if len(conflicts) > 0 {
		rc.report(ReconciliationAnomaly{
			Kind: AnomalyConflicting, PaymentID: p.ID, ReferenceKey: ref, OrderIDs: conflicts,
			Detail: fmt.Sprintf("gateway says %s but order already settled", p.Status),
		})
		if err := rc.repo.FlagForReview(ctx, conflicts, "payment "+p.ID+" reported "+p.Status+" after settlement"); err != nil {
			return storageErr(err)
		}
	}
	if len(matched) > 1 {
		if err := rc.repo.FlagForReview(ctx, ids, "payment reference "+ref+" matches several orders"); err != nil {
			return storageErr(err)
		}
	}
	return nil
}

// match finds the orders for a payment by its preference id, falling back to
// the external reference (our order id) when the payment has no preference.
func (rc *Reconciler) match(ctx context.Context, p models.PaymentDetails) (string, []models.Order, error) {
	if p.PreferenceID != "" {
		found, err := rc.repo.FindOrdersByPaymentReference(ctx, p.PreferenceID)
		if err != nil {
			return p.PreferenceID, nil, storageErr(err)
		}
		return p.PreferenceID, found, nil
	}
	if p.ExternalReference == "" {
		return "", nil, nil
	}
	o, err := rc.repo.GetOrder(ctx, p.ExternalReference)
	if errors.Is(err, orders.ErrNotFound) {
		return p.ExternalReference, nil, nil
	}
	if err != nil {
		return p.ExternalReference, nil, storageErr(err)
	}
	return p.ExternalReference, []models.Order{*o}, nil
}

func (rc *Reconciler) transitioned(ctx context.Context, o models.Order, status models.OrderStatus) {
	now := rc.now()
	log.Printf("[Reconciler] order %s -> %s", o.ID, status)

	if rc.publisher != nil {
		ev := models.OrderStatusEvent{OrderID: o.ID, Status: status, UpdatedAt: now}
		if err := rc.publisher.PublishStatus(ctx, ev); err != nil {
			log.Printf("[Reconciler] publish status for order %s: %v", o.ID, err)
		}
	}
	if status != models.OrderPaid {
		return
	}
	if err := rc.notifier.SendReceipt(ctx, notify.ReceiptFor(o, now)); err != nil {
		log.Printf("[Reconciler] receipt for order %s: %v", o.ID, err)
	}
}

// markPurchased is one-way and idempotent. Only transient failures are
// returned; a missing customer record is logged and skipped.
func (rc *Reconciler) markPurchased(ctx context.Context, o models.Order) error {
	err := rc.repo.MarkCustomerPurchased(ctx, o.Customer.Email, o.ID)
	switch {
	case err == nil:
		return nil
	case orders.IsTransient(err):
		return retryable(fmt.Errorf("mark customer %s purchased: %w", o.Customer.Email, err))
	}
	log.Printf("[Reconciler] mark customer %s purchased: %v", o.Customer.Email, err)
	return nil
}

// ResolvePending replays notifications buffered for ref. Each one is
// re-fetched from the gateway; those that fail transiently are buffered again.
func (rc *Reconciler) ResolvePending(ctx context.Context, ref string) error {
	pending, err := rc.repo.TakePendingNotifications(ctx, ref)
	if err != nil {
		return err
	}
	var firstErr error
	for _, pn := range pending {
		log.Printf("[Reconciler] replaying payment %s buffered for %s", pn.PaymentID, ref)
		err := rc.Handle(ctx, Notification{Type: "payment", DataID: pn.PaymentID})
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		if IsRetryable(err) {
			if serr := rc.repo.SavePendingNotification(ctx, pn); serr != nil {
				log.Printf("[Reconciler] re-buffer payment %s: %v", pn.PaymentID, serr)
			}
		}
	}
	return firstErr
}

func (rc *Reconciler) report(a ReconciliationAnomaly) {
	log.Printf("[Reconciler] anomaly %v", a)
	if rc.onAnomaly != nil {
		rc.onAnomaly(a)
	}
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if orders.IsTransient(err) {
		return retryable(err)
	}
	return err
}
