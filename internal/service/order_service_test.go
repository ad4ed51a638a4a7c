package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeTxManager serializes transactions with a single mutex, modeling
// the row lock: a transaction that starts second observes everything
// the first one committed.
type fakeTxManager struct {
	mu sync.Mutex
}

func (m *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*model.Order
	order  []uuid.UUID // insertion order, oldest first
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	return &c
}

func (r *fakeOrderRepo) Create(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = cloneOrder(order)
	r.order = append(r.order, order.ID)
	return nil
}

func (r *fakeOrderRepo) find(id uuid.UUID) (*model.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) FindByIDWithItems(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(id)
}

func (r *fakeOrderRepo) FindForUpdate(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(id)
}

func (r *fakeOrderRepo) Replace(_ context.Context, order *model.Order, items []model.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	stored.CustomerName = order.CustomerName
	stored.Amount = order.Amount
	stored.Items = nil
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].OrderID = order.ID
		stored.Items = append(stored.Items, items[i])
	}
	return nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, approvedBy *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	stored.Status = status
	if approvedBy != nil {
		v := *approvedBy
		stored.ApprovedBy = &v
	}
	return nil
}

func (r *fakeOrderRepo) UpdatePaymentStatus(_ context.Context, id uuid.UUID, paymentStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	stored.PaymentStatus = paymentStatus
	return nil
}

func (r *fakeOrderRepo) Delete(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return apperr.ErrNotFound
	}
	delete(r.orders, order.ID)
	return nil
}

func (r *fakeOrderRepo) List(_ context.Context) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for i := len(r.order) - 1; i >= 0; i-- {
		if o, ok := r.orders[r.order[i]]; ok {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) CountByStatus(_ context.Context) (model.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats model.OrderStats
	for _, o := range r.orders {
		stats.Total++
		switch o.Status {
		case model.OrderStatusPending:
			stats.Pending++
		case model.OrderStatusApproved:
			stats.Approved++
		case model.OrderStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

type fakeActivityRepo struct {
	mu      sync.Mutex
	entries []model.ActivityLog
}

func (r *fakeActivityRepo) Log(_ context.Context, entry *model.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeActivityRepo) ListAll(_ context.Context) ([]model.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ActivityLog, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

func (r *fakeActivityRepo) ListForOrder(_ context.Context, orderID uuid.UUID) ([]model.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token := "Order #" + orderID.String()
	var out []model.ActivityLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if strings.Contains(r.entries[i].Description, token) {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeActivityRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func newTestService() (OrderService, *fakeOrderRepo, *fakeActivityRepo) {
	orders := newFakeOrderRepo()
	activity := &fakeActivityRepo{}
	svc := NewOrderService(orders, activity, &fakeTxManager{}, nil)
	return svc, orders, activity
}

func salesActor() Actor {
	return Actor{ID: uuid.New(), Name: "alice", Role: model.RoleSales}
}

func managerActor(name string) Actor {
	return Actor{ID: uuid.New(), Name: name, Role: model.RoleManager}
}

func accountsActor() Actor {
	return Actor{ID: uuid.New(), Name: "carol", Role: model.RoleAccounts}
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func widgetGadgetRequest() OrderRequest {
	return OrderRequest{
		CustomerName: "Acme Corp",
		Items: []OrderItemInput{
			{ProductName: "Widget", Quantity: 2, UnitPrice: dec("9.99")},
			{ProductName: "Gadget", Quantity: 1, UnitPrice: dec("15.00")},
		},
	}
}

func TestComputeTotals(t *testing.T) {
	items, amount := computeTotals([]OrderItemInput{
		{ProductName: "Widget", Quantity: 2, UnitPrice: dec("9.99")},
		{ProductName: "Gadget", Quantity: 1, UnitPrice: dec("15.00")},
	})

	if got := amount.StringFixed(2); got != "34.98" {
		t.Fatalf("expected amount 34.98, got %s", got)
	}
	if got := items[0].LineTotal.StringFixed(2); got != "19.98" {
		t.Fatalf("expected line total 19.98, got %s", got)
	}
	if got := items[1].LineTotal.StringFixed(2); got != "15.00" {
		t.Fatalf("expected line total 15.00, got %s", got)
	}

	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal)
	}
	if !sum.Equal(amount) {
		t.Fatalf("amount %s does not equal sum of line totals %s", amount, sum)
	}
}

func TestCreate(t *testing.T) {
	svc, _, activity := newTestService()
	actor := salesActor()

	resp, err := svc.Create(context.Background(), actor, widgetGadgetRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Amount != "34.98" {
		t.Fatalf("expected amount 34.98, got %s", resp.Amount)
	}
	if resp.Status != model.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", resp.Status)
	}
	if resp.PaymentStatus != model.PaymentStatusUnpaid {
		t.Fatalf("expected payment status unpaid, got %s", resp.PaymentStatus)
	}
	if resp.CreatedBy != actor.ID.String() {
		t.Fatalf("expected created_by %s, got %s", actor.ID, resp.CreatedBy)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}

	if activity.count() != 1 {
		t.Fatalf("expected exactly one activity record, got %d", activity.count())
	}
	logs, _ := activity.ListAll(context.Background())
	if logs[0].Action != model.ActionCreatedOrder {
		t.Fatalf("expected action %q, got %q", model.ActionCreatedOrder, logs[0].Action)
	}
	if !strings.Contains(logs[0].Description, "Order #"+resp.ID) {
		t.Fatalf("description %q should embed the order token", logs[0].Description)
	}
}

func TestCreate_ForbiddenForNonSales(t *testing.T) {
	svc, _, activity := newTestService()

	for _, role := range []string{model.RoleManager, model.RoleAccounts, model.RoleOther} {
		t.Run(role, func(t *testing.T) {
			_, err := svc.Create(context.Background(), Actor{ID: uuid.New(), Name: "x", Role: role}, widgetGadgetRequest())
			var fe *apperr.ForbiddenError
			if !errors.As(err, &fe) {
				t.Fatalf("expected Forbidden, got %v", err)
			}
		})
	}

	if activity.count() != 0 {
		t.Fatalf("denied mutations must not log activity, got %d records", activity.count())
	}
}

func TestCreate_ValidationListsAllViolations(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), salesActor(), OrderRequest{
		CustomerName: "",
		Items: []OrderItemInput{
			{ProductName: "", Quantity: 0, UnitPrice: dec("-1.00")},
		},
	})

	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	want := []string{"customer_name", "items[0].product_name", "items[0].quantity", "items[0].unit_price"}
	if len(ve.Fields) != len(want) {
		t.Fatalf("expected %d violations, got %d: %v", len(want), len(ve.Fields), ve.Fields)
	}
	for i, field := range want {
		if ve.Fields[i].Field != field {
			t.Fatalf("expected violation %d to be %s, got %s", i, field, ve.Fields[i].Field)
		}
	}
}

func TestCreate_RejectsLongCustomerName(t *testing.T) {
	svc, _, _ := newTestService()

	req := widgetGadgetRequest()
	req.CustomerName = strings.Repeat("a", 256)

	_, err := svc.Create(context.Background(), salesActor(), req)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields[0].Field != "customer_name" {
		t.Fatalf("expected customer_name violation, got %v", ve.Fields)
	}
}

func TestCreate_RejectsEmptyItems(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), salesActor(), OrderRequest{CustomerName: "Acme"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields[0].Field != "items" {
		t.Fatalf("expected items violation, got %v", ve.Fields)
	}
}

func TestReplace(t *testing.T) {
	svc, orders, activity := newTestService()
	actor := salesActor()
	ctx := context.Background()

	created, err := svc.Create(ctx, actor, widgetGadgetRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := svc.Replace(ctx, actor, created.ID, OrderRequest{
		CustomerName: "Acme Corp",
		Items: []OrderItemInput{
			{ProductName: "Sprocket", Quantity: 3, UnitPrice: dec("4.50")},
		},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	if resp.Amount != "13.50" {
		t.Fatalf("expected recomputed amount 13.50, got %s", resp.Amount)
	}
	if len(resp.Items) != 1 || resp.Items[0].ProductName != "Sprocket" {
		t.Fatalf("expected full item replacement, got %+v", resp.Items)
	}
	if resp.Status != model.OrderStatusPending {
		t.Fatalf("replace must not change status, got %s", resp.Status)
	}

	stored, _ := orders.FindByIDWithItems(ctx, uuid.MustParse(created.ID))
	if len(stored.Items) != 1 {
		t.Fatalf("old items must be discarded, got %d", len(stored.Items))
	}

	if activity.count() != 2 {
		t.Fatalf("expected 2 activity records (create + update), got %d", activity.count())
	}
	logs, _ := activity.ListAll(ctx)
	if logs[0].Action != model.ActionUpdatedOrder {
		t.Fatalf("expected newest record %q, got %q", model.ActionUpdatedOrder, logs[0].Action)
	}
}

func TestReplace_KeepsRejectedStatus(t *testing.T) {
	svc, _, _ := newTestService()
	sales := salesActor()
	ctx := context.Background()

	created, _ := svc.Create(ctx, sales, widgetGadgetRequest())
	if _, err := svc.Reject(ctx, managerActor("bob"), created.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	resp, err := svc.Replace(ctx, sales, created.ID, widgetGadgetRequest())
	if err != nil {
		t.Fatalf("replace on rejected order should be allowed: %v", err)
	}
	if resp.Status != model.OrderStatusRejected {
		t.Fatalf("replace must keep rejected status, got %s", resp.Status)
	}
}

func TestReplace_ForbiddenOnceApproved(t *testing.T) {
	svc, _, _ := newTestService()
	sales := salesActor()
	ctx := context.Background()

	created, _ := svc.Create(ctx, sales, widgetGadgetRequest())
	if _, err := svc.Approve(ctx, managerActor("bob"), created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := svc.Replace(ctx, sales, created.ID, widgetGadgetRequest())
	var fe *apperr.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if fe.Reason != "cannot edit approved orders" {
		t.Fatalf("unexpected reason %q", fe.Reason)
	}
}

func TestRemove(t *testing.T) {
	svc, orders, activity := newTestService()
	sales := salesActor()
	ctx := context.Background()

	created, _ := svc.Create(ctx, sales, widgetGadgetRequest())
	if err := svc.Remove(ctx, sales, created.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := orders.FindByIDWithItems(ctx, uuid.MustParse(created.ID)); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound after removal, got %v", err)
	}

	logs, _ := activity.ListForOrder(ctx, uuid.MustParse(created.ID))
	if len(logs) != 2 {
		t.Fatalf("expected create + delete records for the order, got %d", len(logs))
	}
	if logs[0].Action != model.ActionDeletedOrder {
		t.Fatalf("expected newest record %q, got %q", model.ActionDeletedOrder, logs[0].Action)
	}
}

func TestRemove_ForbiddenOnceApproved(t *testing.T) {
	svc, _, _ := newTestService()
	sales := salesActor()
	ctx := context.Background()

	created, _ := svc.Create(ctx, sales, widgetGadgetRequest())
	if _, err := svc.Approve(ctx, managerActor("bob"), created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	err := svc.Remove(ctx, sales, created.ID)
	var fe *apperr.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestApprove(t *testing.T) {
	svc, _, activity := newTestService()
	manager := managerActor("bob")
	ctx := context.Background()

	created, _ := svc.Create(ctx, salesActor(), widgetGadgetRequest())
	resp, err := svc.Approve(ctx, manager, created.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if resp.Status != model.OrderStatusApproved {
		t.Fatalf("expected approved, got %s", resp.Status)
	}
	if resp.ApprovedBy == nil || *resp.ApprovedBy != manager.ID.String() {
		t.Fatalf("expected approved_by %s, got %v", manager.ID, resp.ApprovedBy)
	}

	logs, _ := activity.ListForOrder(ctx, uuid.MustParse(created.ID))
	if logs[0].Action != model.ActionApprovedOrder {
		t.Fatalf("expected %q record, got %q", model.ActionApprovedOrder, logs[0].Action)
	}
}

func TestApprove_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Approve(context.Background(), managerActor("bob"), uuid.NewString())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestReject(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, _ := svc.Create(ctx, salesActor(), widgetGadgetRequest())
	resp, err := svc.Reject(ctx, managerActor("bob"), created.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}

	if resp.Status != model.OrderStatusRejected {
		t.Fatalf("expected rejected, got %s", resp.Status)
	}
	if resp.ApprovedBy != nil {
		t.Fatalf("reject must not set approved_by, got %v", *resp.ApprovedBy)
	}
}

func TestApprove_ConcurrentDecisionsSerialize(t *testing.T) {
	svc, orders, activity := newTestService()
	ctx := context.Background()

	created, _ := svc.Create(ctx, salesActor(), widgetGadgetRequest())
	managerA := managerActor("bob")
	managerB := managerActor("dave")

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for _, m := range []Actor{managerA, managerB} {
		go func(actor Actor) {
			defer wg.Done()
			_, err := svc.Approve(ctx, actor, created.ID)
			errs <- err
		}(m)
	}
	wg.Wait()
	close(errs)

	var succeeded, lost int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrAlreadyProcessed):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || lost != 1 {
		t.Fatalf("expected exactly one winner and one AlreadyProcessed, got %d/%d", succeeded, lost)
	}

	stored, _ := orders.FindByIDWithItems(ctx, uuid.MustParse(created.ID))
	if stored.Status != model.OrderStatusApproved {
		t.Fatalf("final status must be approved, got %s", stored.Status)
	}
	if stored.ApprovedBy == nil {
		t.Fatal("winner must have set approved_by")
	}
	if *stored.ApprovedBy != managerA.ID && *stored.ApprovedBy != managerB.ID {
		t.Fatalf("approved_by %s is neither manager", stored.ApprovedBy)
	}

	// create + exactly one decision record
	logs, _ := activity.ListForOrder(ctx, uuid.MustParse(created.ID))
	if len(logs) != 2 {
		t.Fatalf("expected 2 activity records, got %d", len(logs))
	}
}

func TestApprove_ConcurrentWithReject(t *testing.T) {
	svc, orders, _ := newTestService()
	ctx := context.Background()

	created, _ := svc.Create(ctx, salesActor(), widgetGadgetRequest())

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Approve(ctx, managerActor("bob"), created.ID)
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.Reject(ctx, managerActor("dave"), created.ID)
		errs <- err
	}()
	wg.Wait()
	close(errs)

	var succeeded, lost int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrAlreadyProcessed):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || lost != 1 {
		t.Fatalf("expected one winner and one AlreadyProcessed, got %d/%d", succeeded, lost)
	}

	stored, _ := orders.FindByIDWithItems(ctx, uuid.MustParse(created.ID))
	if stored.Status != model.OrderStatusApproved && stored.Status != model.OrderStatusRejected {
		t.Fatalf("final status must reflect the winner, got %s", stored.Status)
	}
}

func TestMarkPaid(t *testing.T) {
	svc, _, activity := newTestService()
	accounts := accountsActor()
	ctx := context.Background()

	created, _ := svc.Create(ctx, salesActor(), widgetGadgetRequest())

	t.Run("denied while pending", func(t *testing.T) {
		_, err := svc.MarkPaid(ctx, accounts, created.ID)
		var fe *apperr.ForbiddenError
		if !errors.As(err, &fe) {
			t.Fatalf("expected Forbidden, got %v", err)
		}
		if fe.Reason != "order must be approved before payment" {
			t.Fatalf("unexpected reason %q", fe.Reason)
		}
	})

	if _, err := svc.Approve(ctx, managerActor("bob"), created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	t.Run("succeeds once approved", func(t *testing.T) {
		resp, err := svc.MarkPaid(ctx, accounts, created.ID)
		if err != nil {
			t.Fatalf("mark paid: %v", err)
		}
		if resp.PaymentStatus != model.PaymentStatusPaid {
			t.Fatalf("expected paid, got %s", resp.PaymentStatus)
		}
		if resp.Status != model.OrderStatusApproved {
			t.Fatalf("paying must not change status, got %s", resp.Status)
		}
	})

	t.Run("denied once paid", func(t *testing.T) {
		_, err := svc.MarkPaid(ctx, accounts, created.ID)
		var fe *apperr.ForbiddenError
		if !errors.As(err, &fe) {
			t.Fatalf("expected Forbidden, got %v", err)
		}
		if fe.Reason != "order is already paid" {
			t.Fatalf("unexpected reason %q", fe.Reason)
		}
	})

	// create + approve + one pay record; the denied attempts log nothing
	logs, _ := activity.ListForOrder(ctx, uuid.MustParse(created.ID))
	if len(logs) != 3 {
		t.Fatalf("expected 3 activity records, got %d", len(logs))
	}
	if logs[0].Action != model.ActionMarkedPaid {
		t.Fatalf("expected newest record %q, got %q", model.ActionMarkedPaid, logs[0].Action)
	}
}

func TestList_NewestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	sales := salesActor()
	ctx := context.Background()

	first, _ := svc.Create(ctx, sales, widgetGadgetRequest())
	second, _ := svc.Create(ctx, sales, widgetGadgetRequest())

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatal("expected newest-first ordering")
	}
}
