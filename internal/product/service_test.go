package product_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/backend-agrilink/internal/common"
	"github.com/agrilink/backend-agrilink/internal/events"
	"github.com/agrilink/backend-agrilink/internal/product"
)

type fakeStore struct {
	products map[uuid.UUID]product.Product

	lastFilter product.MyProductsFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: map[uuid.UUID]product.Product{}}
}

func (f *fakeStore) InsertProduct(_ context.Context, p product.Product) (product.Product, error) {
	p.ID = uuid.New()
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, p product.Product) (product.Product, error) {
	if _, ok := f.products[p.ID]; !ok {
		return product.Product{}, product.ErrNotFound
	}
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeStore) SetProductActive(_ context.Context, id uuid.UUID, active bool) error {
	p, ok := f.products[id]
	if !ok {
		return product.ErrNotFound
	}
	p.IsActive = active
	f.products[id] = p
	return nil
}

func (f *fakeStore) GetProduct(_ context.Context, id uuid.UUID) (product.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListByFarmer(_ context.Context, farmerID uuid.UUID, filter product.MyProductsFilter) ([]product.Product, error) {
	f.lastFilter = filter
	var out []product.Product
	for _, p := range f.products {
		if p.FarmerID != farmerID {
			continue
		}
		if filter.Status != nil && p.IsActive != *filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) CountByFarmer(_ context.Context, farmerID uuid.UUID, status *bool) (int64, error) {
	var total int64
	for _, p := range f.products {
		if p.FarmerID != farmerID {
			continue
		}
		if status != nil && p.IsActive != *status {
			continue
		}
		total++
	}
	return total, nil
}

func newService(t *testing.T, store product.Store, bus *events.Bus) *product.Service {
	t.Helper()
	svc, err := product.NewService(product.ServiceConfig{Store: store, Bus: bus, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return svc
}

func validInput() product.WriteInput {
	return product.WriteInput{
		Name:          "Fresh Tomatoes",
		CategoryID:    uuid.NewString(),
		Description:   "vine ripened",
		Price:         85.50,
		Unit:          "kg",
		StockQuantity: 25,
		Location:      "Cebu City",
	}
}

func farmer() product.Actor {
	return product.Actor{ID: uuid.New(), Type: "farmer"}
}

func TestCreateRequiresFarmer(t *testing.T) {
	svc := newService(t, newFakeStore(), nil)

	_, err := svc.Create(context.Background(), product.Actor{ID: uuid.New(), Type: "buyer"}, validInput())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestCreateAllowsBothAccountType(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, nil)

	saved, err := svc.Create(context.Background(), product.Actor{ID: uuid.New(), Type: "both"}, validInput())
	require.NoError(t, err)
	require.True(t, saved.IsActive)
	require.Len(t, store.products, 1)
}

func TestCreateRejectsShortName(t *testing.T) {
	svc := newService(t, newFakeStore(), nil)

	in := validInput()
	in.Name = "ab"
	_, err := svc.Create(context.Background(), farmer(), in)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestCreateRejectsNonPositivePrice(t *testing.T) {
	svc := newService(t, newFakeStore(), nil)

	in := validInput()
	in.Price = 0
	_, err := svc.Create(context.Background(), farmer(), in)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestCreateRejectsMissingUnit(t *testing.T) {
	svc := newService(t, newFakeStore(), nil)

	in := validInput()
	in.Unit = ""
	_, err := svc.Create(context.Background(), farmer(), in)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestCreateEmitsEvent(t *testing.T) {
	eventStore := &recordingEventStore{}
	svc := newService(t, newFakeStore(), &events.Bus{Store: eventStore})

	_, err := svc.Create(context.Background(), farmer(), validInput())
	require.NoError(t, err)
	require.Equal(t, []string{events.TopicProductCreated}, eventStore.topics)
}

type recordingEventStore struct {
	topics []string
}

func (r *recordingEventStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	r.topics = append(r.topics, topic)
	return events.DomainEvent{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}, nil
}

func TestUpdateRequiresOwnership(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, nil)

	owner := farmer()
	saved, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), farmer(), saved.ID, validInput())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	in := validInput()
	in.Price = 99.99
	updated, err := svc.Update(context.Background(), owner, saved.ID, in)
	require.NoError(t, err)
	require.Equal(t, 99.99, updated.Price)
}

func TestDelistIsSoftDelete(t *testing.T) {
	store := newFakeStore()
	eventStore := &recordingEventStore{}
	svc := newService(t, store, &events.Bus{Store: eventStore})

	owner := farmer()
	saved, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delist(context.Background(), owner, saved.ID))

	kept, ok := store.products[saved.ID]
	require.True(t, ok, "row must survive a delist")
	require.False(t, kept.IsActive)
	require.Contains(t, eventStore.topics, events.TopicProductDelisted)
}

func TestDelistUnknownProductIsNotFound(t *testing.T) {
	svc := newService(t, newFakeStore(), nil)

	err := svc.Delist(context.Background(), farmer(), uuid.New())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestMyProductsStatusFilterAndCounts(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, nil)

	owner := farmer()
	first, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delist(context.Background(), owner, first.ID))

	result, err := svc.MyProducts(context.Background(), owner, product.MyProductsParams{Status: "active"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, int64(1), result.Active)
	require.Equal(t, int64(1), result.Inactive)
	require.NotNil(t, store.lastFilter.Status)
	require.True(t, *store.lastFilter.Status)
}

func TestMyProductsRejectsBuyers(t *testing.T) {
	svc := newService(t, newFakeStore(), nil)

	_, err := svc.MyProducts(context.Background(), product.Actor{ID: uuid.New(), Type: "buyer"}, product.MyProductsParams{})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestMyProductsNormalizesSort(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, nil)

	owner := farmer()
	_, err := svc.MyProducts(context.Background(), owner, product.MyProductsParams{Sort: "sneaky"})
	require.NoError(t, err)
	require.Equal(t, product.SortNewest, store.lastFilter.Sort)

	_, err = svc.MyProducts(context.Background(), owner, product.MyProductsParams{Sort: product.SortTopSales})
	require.NoError(t, err)
	require.Equal(t, product.SortTopSales, store.lastFilter.Sort)
}
