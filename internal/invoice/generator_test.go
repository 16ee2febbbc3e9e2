package invoice

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bloomlane/payflow/internal/domain"
)

type memStore struct {
	objects map[string][]byte
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if s.failPut {
		return "", io.ErrClosedPipe
	}
	s.objects[key] = data
	return "https://cdn.example/" + key, nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	return s.objects[key], nil
}

type memOrders struct {
	urls map[string]string
}

func (m *memOrders) SetInvoiceURL(_ context.Context, orderID, url string) error {
	if m.urls == nil {
		m.urls = make(map[string]string)
	}
	m.urls[orderID] = url
	return nil
}

func productID(id string) *string { return &id }

func paidOrder() *domain.Order {
	paidAt := time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)
	return &domain.Order{
		ID:            "6f0a2e1c-9f7e-4a41-8c14-55f7cf7f3a01",
		MPaymentID:    "BLM-ABC123",
		OrderNumber:   "1042",
		Status:        domain.OrderStatusPaid,
		PaymentStatus: domain.PaymentStatusPaid,
		Subtotal:      23500,
		Total:         23500,
		Currency:      "ZAR",
		BuyerName:     "Thandi Mokoena",
		BuyerEmail:    "thandi@example.com",
		Fulfillment:   domain.FulfillmentDelivery,
		DeliveryAddr:  "12 Protea Rd, Cape Town",
		PaidAt:        &paidAt,
		CreatedAt:     paidAt.Add(-time.Hour),
		Items: []domain.OrderItem{
			{ProductID: productID("p1"), Name: "Rooibos blend", Quantity: 2, UnitPrice: 5000, LineTotal: 10000},
			{ProductID: productID("p2"), Name: "Honey jar", Quantity: 1, UnitPrice: 13500, LineTotal: 13500},
		},
	}
}

func testGenerator(store *memStore, orders *memOrders) *Generator {
	return NewGenerator(store, orders, Config{
		SiteName:              "Bloomlane",
		SiteURL:               "https://bloomlane.example",
		FreeShippingThreshold: 50000,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestComputeTotals(t *testing.T) {
	t.Run("keeps stored amounts when present", func(t *testing.T) {
		got := computeTotals(paidOrder())
		if got.subtotal != 23500 || got.total != 23500 {
			t.Errorf("unexpected totals: %+v", got)
		}
	})

	t.Run("rebuilds zero totals from item lines", func(t *testing.T) {
		order := paidOrder()
		order.Subtotal = 0
		order.Total = 0
		got := computeTotals(order)
		if got.subtotal != 23500 {
			t.Errorf("expected subtotal 23500, got %d", got.subtotal)
		}
		if got.total != 23500 {
			t.Errorf("expected total 23500, got %d", got.total)
		}
	})

	t.Run("rebuilds line totals from quantity and unit price", func(t *testing.T) {
		order := paidOrder()
		order.Subtotal = 0
		order.Total = 0
		for i := range order.Items {
			order.Items[i].LineTotal = 0
		}
		got := computeTotals(order)
		if got.total != 23500 {
			t.Errorf("expected total 23500 from qty x unit price, got %d", got.total)
		}
	})

	t.Run("includes shipping, tax and discount in a rebuilt total", func(t *testing.T) {
		order := paidOrder()
		order.Total = 0
		order.Shipping = 6000
		order.Tax = 1500
		order.Discount = 2000
		got := computeTotals(order)
		if got.total != 23500+6000+1500-2000 {
			t.Errorf("unexpected rebuilt total: %d", got.total)
		}
	})
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		currency string
		cents    int64
		want     string
	}{
		{"ZAR", 23500, "R 235.00"},
		{"ZAR", 50, "R 0.50"},
		{"ZAR", -2000, "-R 20.00"},
		{"USD", 199, "$ 1.99"},
		{"XXX", 100, "XXX 1.00"},
	}

	for _, tc := range cases {
		if got := formatAmount(tc.currency, tc.cents); got != tc.want {
			t.Errorf("formatAmount(%s, %d) = %q, want %q", tc.currency, tc.cents, got, tc.want)
		}
	}
}

func TestRender(t *testing.T) {
	g := testGenerator(newMemStore(), &memOrders{})

	t.Run("produces a PDF", func(t *testing.T) {
		pdf, err := g.Render(paidOrder(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.HasPrefix(pdf, []byte("%PDF")) {
			t.Error("expected output to start with %PDF")
		}
	})

	t.Run("renders unpaid orders too", func(t *testing.T) {
		order := paidOrder()
		order.Status = domain.OrderStatusPending
		order.PaymentStatus = domain.PaymentStatusUnpaid
		order.PaidAt = nil
		if _, err := g.Render(order, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("renders course lines with detail block", func(t *testing.T) {
		order := paidOrder()
		order.Items = append(order.Items, domain.OrderItem{
			SKU:       "CRS-SOURDOUGH",
			Name:      "Sourdough Masterclass - Weekend Package deposit (14 March 2026)",
			Quantity:  1,
			UnitPrice: 45000,
			LineTotal: 45000,
		})
		if _, err := g.Render(order, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("tolerates items without product references", func(t *testing.T) {
		order := paidOrder()
		order.Items[0].ProductID = nil
		if _, err := g.Render(order, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestGenerate(t *testing.T) {
	t.Run("uploads under a deterministic key and records the url", func(t *testing.T) {
		store := newMemStore()
		orders := &memOrders{}
		g := testGenerator(store, orders)
		order := paidOrder()

		url, err := g.Generate(context.Background(), order)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if url != "https://cdn.example/invoices/BLM-ABC123.pdf" {
			t.Errorf("unexpected url: %s", url)
		}
		if _, ok := store.objects["invoices/BLM-ABC123.pdf"]; !ok {
			t.Error("expected artifact under the deterministic key")
		}
		if orders.urls[order.ID] != url {
			t.Errorf("expected url recorded on order, got %q", orders.urls[order.ID])
		}
		if order.InvoiceURL != url {
			t.Error("expected url set on the in-memory order")
		}
	})

	t.Run("is safely re-invokable", func(t *testing.T) {
		store := newMemStore()
		g := testGenerator(store, &memOrders{})
		order := paidOrder()

		first, err := g.Generate(context.Background(), order)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := g.Generate(context.Background(), order)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first != second {
			t.Errorf("expected stable url across regenerations, got %s then %s", first, second)
		}
		if len(store.objects) != 1 {
			t.Errorf("expected overwrite, got %d objects", len(store.objects))
		}
	})

	t.Run("reports upload failure", func(t *testing.T) {
		store := newMemStore()
		store.failPut = true
		g := testGenerator(store, &memOrders{})

		if _, err := g.Generate(context.Background(), paidOrder()); err == nil {
			t.Error("expected upload failure to be reported")
		}
	})
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("BLM-ABC123", 0); got != "invoices/BLM-ABC123.pdf" {
		t.Errorf("unexpected key: %s", got)
	}
	if got := ObjectKey("BLM-ABC123", 3); got != "invoices/BLM-ABC123-v3.pdf" {
		t.Errorf("unexpected versioned key: %s", got)
	}
}
