package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/orders"
)

var maria = CustomerInput{
	Name:       "Maria Silva",
	Email:      "maria@example.com",
	TaxID:      "529.982.247-25",
	Phone:      "(11) 98765-4321",
	PersonType: models.PersonIndividual,
}

func cursoALines() []models.CartLine {
	return []models.CartLine{{
		ProductID: "curso-a",
		Title:     "Curso A",
		UnitPrice: decimal.RequireFromString("100.00"),
		Quantity:  2,
		FileURL:   "https://files.example/curso-a.pdf",
	}}
}

func TestValidateCustomer(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(in *CustomerInput)
		field string
	}{
		{"ok", func(*CustomerInput) {}, ""},
		{"blank name", func(in *CustomerInput) { in.Name = "  " }, "name"},
		{"no at", func(in *CustomerInput) { in.Email = "maria.example.com" }, "email"},
		{"two ats", func(in *CustomerInput) { in.Email = "a@b@example.com" }, "email"},
		{"empty local", func(in *CustomerInput) { in.Email = "@example.com" }, "email"},
		{"empty domain", func(in *CustomerInput) { in.Email = "maria@" }, "email"},
		{"short phone", func(in *CustomerInput) { in.Phone = "98765-432" }, "phone"},
		{"missing cpf", func(in *CustomerInput) { in.TaxID = "" }, "taxId"},
		{"bad cpf", func(in *CustomerInput) { in.TaxID = "123.456.789-00" }, "taxId"},
		{"repeated cpf", func(in *CustomerInput) { in.TaxID = "111.111.111-11" }, "taxId"},
		{"unknown person type", func(in *CustomerInput) { in.PersonType = "alien" }, "personType"},
		{"business without tax id", func(in *CustomerInput) {
			in.PersonType = models.PersonBusiness
			in.TaxID = ""
		}, ""},
		{"portuguese label", func(in *CustomerInput) { in.PersonType = "fisica" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := maria
			tt.edit(&in)
			c, err := ValidateCustomer(in)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, "11987654321", c.Phone)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, verr.Error(), tt.field)
		})
	}
}

func TestCustomerInput_PortugueseFields(t *testing.T) {
	var in CustomerInput
	require.NoError(t, json.Unmarshal([]byte(`{
		"nome": "Maria Silva",
		"email": "maria@example.com",
		"cpf": "529.982.247-25",
		"celular": "11987654321",
		"tipoPessoa": "fisica"
	}`), &in))

	c, err := ValidateCustomer(in)
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", c.Name)
	assert.Equal(t, "52998224725", c.TaxID)
	assert.Equal(t, models.PersonIndividual, c.PersonType)
}

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()
	repo := orders.NewMemoryRepository()
	b := NewBuilder(repo, "BRL")

	order, err := b.Build(ctx, cursoALines(), maria, "pix")
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, "200.00", order.Total.StringFixed(2))
	assert.Equal(t, "BRL", order.Currency)
	assert.Equal(t, models.PaymentPix, order.PaymentMethod)
	assert.Equal(t, "52998224725", order.Customer.TaxID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "https://files.example/curso-a.pdf", order.Items[0].FileURL)

	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, stored.Status)

	c, ok := repo.Customer("maria@example.com")
	require.True(t, ok)
	assert.Equal(t, models.CustomerSuspended, c.Status)
}

// recordingRepo counts write attempts.
type recordingRepo struct {
	orders.Repository
	writes int
}

func (r *recordingRepo) UpsertCustomer(context.Context, models.Customer) (*models.Customer, error) {
	r.writes++
	return nil, errors.New("unexpected write")
}

func (r *recordingRepo) CreateOrder(context.Context, *models.Order) error {
	r.writes++
	return errors.New("unexpected write")
}

func TestBuilder_ValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := &recordingRepo{}
	b := NewBuilder(repo, "BRL")

	bad := maria
	bad.TaxID = "123.456.789-00"

	cases := []struct {
		name   string
		lines  []models.CartLine
		in     CustomerInput
		method string
		field  string
	}{
		{"empty cart", nil, maria, "pix", "cart"},
		{"bad tax id", cursoALines(), bad, "pix", "taxId"},
		{"bad method", cursoALines(), maria, "bitcoin", "paymentMethod"},
		{"zero quantity", []models.CartLine{{ProductID: "x", Title: "X", Quantity: 0}}, maria, "pix", "items"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Build(ctx, tc.lines, tc.in, tc.method)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	assert.Zero(t, repo.writes)
}

type unavailableRepo struct{ orders.Repository }

func (unavailableRepo) UpsertCustomer(context.Context, models.Customer) (*models.Customer, error) {
	return nil, errors.Join(orders.ErrUnavailable, errors.New("server selection timeout"))
}

func TestBuilder_StorageDown(t *testing.T) {
	b := NewBuilder(unavailableRepo{}, "BRL")
	_, err := b.Build(context.Background(), cursoALines(), maria, "card")
	require.Error(t, err)
	assert.True(t, orders.IsTransient(err))
}

func TestParsePaymentMethod(t *testing.T) {
	for in, want := range map[string]models.PaymentMethod{
		"pix": models.PaymentPix, "PIX": models.PaymentPix,
		"card": models.PaymentCard, "cartao": models.PaymentCard,
		"boleto": models.PaymentBoleto,
	} {
		got, err := ParsePaymentMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParsePaymentMethod("")
	assert.Error(t, err)
}
