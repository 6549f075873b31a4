package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	batches   map[int64]Batch
	movements []Movement
	nextID    int64
	clock     time.Time

	// casConflicts makes the next n UpdateBatch calls lose their version check.
	casConflicts int
	failInsert   error
	txCount      int
}

type memoryTx struct{ m *memoryRepo }

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{batches: map[int64]Batch{}, clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memoryRepo) seed(b Batch) Batch {
	m.nextID++
	b.ID = m.nextID
	if b.QualityStatus == "" {
		b.QualityStatus = QualityOK
	}
	if b.CreatedAt.IsZero() {
		m.clock = m.clock.Add(time.Minute)
		b.CreatedAt = m.clock
	}
	b.Version = 1
	m.batches[b.ID] = b
	return b
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	batches := make(map[int64]Batch, len(m.batches))
	for k, v := range m.batches {
		batches[k] = v
	}
	movements := append([]Movement(nil), m.movements...)
	nextID := m.nextID
	if err := fn(ctx, memoryTx{m}); err != nil {
		m.batches, m.movements, m.nextID = batches, movements, nextID
		return err
	}
	return nil
}

func (m *memoryRepo) GetBatch(ctx context.Context, id int64) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return Batch{}, shared.ErrNotFound
	}
	return b, nil
}

func (m *memoryRepo) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Batch
	for _, b := range m.batches {
		if filter.ProductID != 0 && b.ProductID != filter.ProductID {
			continue
		}
		if filter.LocationIDs != nil && !containsID(filter.LocationIDs, b.LocationID) {
			continue
		}
		if !filter.IncludeEmpty && b.QtyOnHand == 0 {
			continue
		}
		out = append(out, b)
	}
	SortFIFO(out)
	return out, nil
}

func (m *memoryRepo) AvailableQty(ctx context.Context, locationID, productID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AvailableOf(m.match(locationID, productID)), nil
}

func (m *memoryRepo) ExpiringBefore(ctx context.Context, cutoff time.Time, locationIDs []int64) ([]Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Batch
	for _, b := range m.batches {
		if b.QtyOnHand > 0 && !b.ExpiryDate.After(cutoff) && (locationIDs == nil || containsID(locationIDs, b.LocationID)) {
			out = append(out, b)
		}
	}
	SortFIFO(out)
	return out, nil
}

func (m *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Movement
	for _, mv := range m.movements {
		if filter.Ref != uuid.Nil && mv.Ref != filter.Ref {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

// setQuality flips a seeded batch's status outside the ledger.
func (m *memoryRepo) setQuality(locationID, productID int64, batchNo string, q QualityStatus) error {
	for id, b := range m.batches {
		if b.LocationID == locationID && b.ProductID == productID && b.BatchNo == batchNo {
			b.QualityStatus = q
			m.batches[id] = b
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryRepo) match(locationID, productID int64) []Batch {
	var out []Batch
	for _, b := range m.batches {
		if b.LocationID == locationID && b.ProductID == productID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t memoryTx) LockBatches(ctx context.Context, locationID, productID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range t.m.match(locationID, productID) {
		if b.QtyOnHand > 0 {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t memoryTx) GetBatchForUpdate(ctx context.Context, id int64) (Batch, error) {
	b, ok := t.m.batches[id]
	if !ok {
		return Batch{}, shared.ErrNotFound
	}
	return b, nil
}

func (t memoryTx) FindBatchForUpdate(ctx context.Context, locationID, productID int64, batchNo string, expiry time.Time, quality QualityStatus) (Batch, error) {
	for _, b := range t.m.match(locationID, productID) {
		if b.BatchNo == batchNo && b.ExpiryDate.Equal(expiry) && b.QualityStatus == quality {
			return b, nil
		}
	}
	return Batch{}, shared.ErrNotFound
}

func (t memoryTx) UpdateBatch(ctx context.Context, b Batch) (Batch, error) {
	if t.m.casConflicts > 0 {
		t.m.casConflicts--
		return Batch{}, shared.ErrConcurrentUpdate
	}
	current, ok := t.m.batches[b.ID]
	if !ok || current.Version != b.Version {
		return Batch{}, shared.ErrConcurrentUpdate
	}
	b.Version++
	t.m.batches[b.ID] = b
	return b, nil
}

func (t memoryTx) InsertBatch(ctx context.Context, b Batch) (Batch, error) {
	return t.m.seed(b), nil
}

func (t memoryTx) InsertMovements(ctx context.Context, movements []Movement) error {
	if t.m.failInsert != nil {
		return t.m.failInsert
	}
	for _, mv := range movements {
		t.m.nextID++
		mv.ID = t.m.nextID
		t.m.movements = append(t.m.movements, mv)
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type countingObserver struct {
	mu        sync.Mutex
	retries   int
	shortages int
}

func (o *countingObserver) LedgerRetry(string) {
	o.mu.Lock()
	o.retries++
	o.mu.Unlock()
}

func (o *countingObserver) InsufficientStock(string) {
	o.mu.Lock()
	o.shortages++
	o.mu.Unlock()
}

func newTestLedger(repo *memoryRepo, obs Observer) *Ledger {
	return NewLedger(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), LedgerConfig{MaxRetries: 3, Observer: obs})
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

// seedTwoBatches puts 5 units expiring first and 10 units expiring later at location 1.
func seedTwoBatches(repo *memoryRepo) (Batch, Batch) {
	b1 := repo.seed(Batch{ProductID: 7, LocationID: 1, BatchNo: "B1", ExpiryDate: day(10), QtyOnHand: 5, UnitCost: decimal.NewFromInt(100)})
	b2 := repo.seed(Batch{ProductID: 7, LocationID: 1, BatchNo: "B2", ExpiryDate: day(20), QtyOnHand: 10, UnitCost: decimal.NewFromInt(110)})
	return b1, b2
}

func totalOnHand(repo *memoryRepo, productID int64) int64 {
	var total int64
	for _, b := range repo.batches {
		if b.ProductID == productID {
			total += b.QtyOnHand
		}
	}
	return total
}

func TestAllocateFIFO(t *testing.T) {
	repo := newMemoryRepo()
	b1, b2 := seedTwoBatches(repo)
	ledger := newTestLedger(repo, nil)

	plan, err := ledger.Allocate(context.Background(), StockRequest{LocationID: 1, ProductID: 7, Qty: 7})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Equal(t, b1.ID, plan[0].BatchID)
	require.Equal(t, int64(5), plan[0].Qty)
	require.Equal(t, b2.ID, plan[1].BatchID)
	require.Equal(t, int64(2), plan[1].Qty)

	require.Equal(t, int64(5), repo.batches[b1.ID].QtyReserved)
	require.Equal(t, int64(2), repo.batches[b2.ID].QtyReserved)
	require.Len(t, repo.movements, 2)
	require.Equal(t, MovementReserve, repo.movements[0].Type)

	available, err := ledger.AvailableQty(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, int64(8), available)
}

func TestAllocateInsufficientLeavesStockUntouched(t *testing.T) {
	repo := newMemoryRepo()
	b1, b2 := seedTwoBatches(repo)
	obs := &countingObserver{}
	ledger := newTestLedger(repo, obs)

	_, err := ledger.Allocate(context.Background(), StockRequest{LocationID: 1, ProductID: 7, Qty: 20})
	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(15), stockErr.Available)
	require.Equal(t, int64(20), stockErr.Requested)
	require.Equal(t, 1, obs.shortages)

	require.Zero(t, repo.batches[b1.ID].QtyReserved)
	require.Zero(t, repo.batches[b2.ID].QtyReserved)
	require.Empty(t, repo.movements)
}

func TestAllocateSkipsNonOKBatches(t *testing.T) {
	repo := newMemoryRepo()
	b1, b2 := seedTwoBatches(repo)
	ledger := newTestLedger(repo, nil)

	_, err := ledger.UpdateQuality(context.Background(), b1.ID, QualityInput{Status: QualityQuarantine})
	require.NoError(t, err)

	plan, err := ledger.Allocate(context.Background(), StockRequest{LocationID: 1, ProductID: 7, Qty: 6})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, b2.ID, plan[0].BatchID)

	_, err = ledger.Allocate(context.Background(), StockRequest{LocationID: 1, ProductID: 7, Qty: 5})
	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(4), stockErr.Available)
}

func TestReleaseMoreThanReserved(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	ledger := newTestLedger(repo, nil)
	ctx := context.Background()

	require.NoError(t, ledger.Reserve(ctx, StockRequest{LocationID: 1, ProductID: 7, Qty: 3}))
	_, err := ledger.Release(ctx, StockRequest{LocationID: 1, ProductID: 7, Qty: 4})
	require.ErrorIs(t, err, shared.ErrValidation)

	released, err := ledger.Release(ctx, StockRequest{LocationID: 1, ProductID: 7, Qty: 3})
	require.NoError(t, err)
	require.Len(t, released, 1)
	available, err := ledger.AvailableQty(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, int64(15), available)
}

func TestConsumeForSaleDecrementsOnHand(t *testing.T) {
	repo := newMemoryRepo()
	b1, b2 := seedTwoBatches(repo)
	ledger := newTestLedger(repo, nil)

	_, err := ledger.ConsumeForSale(context.Background(), StockRequest{LocationID: 1, ProductID: 7, Qty: 6})
	require.NoError(t, err)
	require.Zero(t, repo.batches[b1.ID].QtyOnHand)
	require.Equal(t, int64(9), repo.batches[b2.ID].QtyOnHand)
}

func TestTransferConservesQuantity(t *testing.T) {
	repo := newMemoryRepo()
	b1, b2 := seedTwoBatches(repo)
	// Destination already holds B2 with the same expiry, so that part merges.
	existing := repo.seed(Batch{ProductID: 7, LocationID: 2, BatchNo: "B2", ExpiryDate: day(20), QtyOnHand: 4})
	ledger := newTestLedger(repo, nil)
	before := totalOnHand(repo, 7)

	result, err := ledger.Transfer(context.Background(), TransferInput{FromLocationID: 1, ToLocationID: 2, ProductID: 7, Qty: 8})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, result.Ref)
	require.Len(t, result.Allocations, 2)
	require.Equal(t, before, totalOnHand(repo, 7))

	require.Zero(t, repo.batches[b1.ID].QtyOnHand)
	require.Equal(t, int64(7), repo.batches[b2.ID].QtyOnHand)
	require.Equal(t, int64(7), repo.batches[existing.ID].QtyOnHand)

	copied := result.Destination[0]
	require.NotEqual(t, b1.ID, copied.ID)
	require.Equal(t, int64(2), copied.LocationID)
	require.Equal(t, "B1", copied.BatchNo)
	require.True(t, copied.UnitCost.Equal(b1.UnitCost))
	require.True(t, copied.ExpiryDate.Equal(b1.ExpiryDate))
	require.Equal(t, int64(5), copied.QtyOnHand)

	movements, err := ledger.ListMovements(context.Background(), MovementFilter{Ref: result.Ref})
	require.NoError(t, err)
	var out, in int64
	for _, mv := range movements {
		switch mv.Type {
		case MovementTransferOut:
			out += mv.Qty
		case MovementTransferIn:
			in += mv.Qty
		}
	}
	require.Equal(t, int64(8), out)
	require.Equal(t, int64(8), in)
}

func TestTransferMergesOnlyIntoSameQuality(t *testing.T) {
	repo := newMemoryRepo()
	_, b2 := seedTwoBatches(repo)
	quarantined := repo.seed(Batch{ProductID: 7, LocationID: 2, BatchNo: "B2", ExpiryDate: day(20), QtyOnHand: 3, QualityStatus: QualityQuarantine})
	ok := repo.seed(Batch{ProductID: 7, LocationID: 2, BatchNo: "B2", ExpiryDate: day(20), QtyOnHand: 4})
	require.NoError(t, repo.setQuality(1, 7, "B1", QualityDamaged))
	ledger := newTestLedger(repo, nil)

	result, err := ledger.Transfer(context.Background(), TransferInput{FromLocationID: 1, ToLocationID: 2, ProductID: 7, Qty: 6})
	require.NoError(t, err)
	require.Len(t, result.Destination, 1)
	require.Equal(t, ok.ID, result.Destination[0].ID)
	require.Equal(t, int64(10), repo.batches[ok.ID].QtyOnHand)
	require.Equal(t, int64(3), repo.batches[quarantined.ID].QtyOnHand)
	require.Equal(t, int64(4), repo.batches[b2.ID].QtyOnHand)
	require.Len(t, repo.match(2, 7), 2)
}

func TestTransferUsesCallerRef(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	ledger := newTestLedger(repo, nil)
	ref := uuid.New()

	result, err := ledger.Transfer(context.Background(), TransferInput{FromLocationID: 1, ToLocationID: 2, ProductID: 7, Qty: 1, Ref: ref})
	require.NoError(t, err)
	require.Equal(t, ref, result.Ref)
	for _, mv := range repo.movements {
		require.Equal(t, ref, mv.Ref)
	}
}

func TestTransferValidation(t *testing.T) {
	ledger := newTestLedger(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := ledger.Transfer(ctx, TransferInput{FromLocationID: 1, ToLocationID: 1, ProductID: 7, Qty: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = ledger.Transfer(ctx, TransferInput{FromLocationID: 1, ToLocationID: 2, ProductID: 7, Qty: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransferRollsBackOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	b1, b2 := seedTwoBatches(repo)
	repo.failInsert = errors.New("disk full")
	ledger := newTestLedger(repo, nil)

	_, err := ledger.Transfer(context.Background(), TransferInput{FromLocationID: 1, ToLocationID: 2, ProductID: 7, Qty: 8})
	require.Error(t, err)
	require.Len(t, repo.batches, 2)
	require.Equal(t, int64(5), repo.batches[b1.ID].QtyOnHand)
	require.Equal(t, int64(10), repo.batches[b2.ID].QtyOnHand)
	require.Empty(t, repo.movements)
}

func TestLedgerRetriesConcurrentUpdate(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	repo.casConflicts = 2
	obs := &countingObserver{}
	ledger := newTestLedger(repo, obs)

	_, err := ledger.Allocate(context.Background(), StockRequest{LocationID: 1, ProductID: 7, Qty: 7})
	require.NoError(t, err)
	require.Equal(t, 3, repo.txCount)
	require.Equal(t, 2, obs.retries)
}

func TestLedgerGivesUpAfterMaxRetries(t *testing.T) {
	repo := newMemoryRepo()
	b1, _ := seedTwoBatches(repo)
	repo.casConflicts = 10
	ledger := newTestLedger(repo, nil)

	_, err := ledger.Allocate(context.Background(), StockRequest{LocationID: 1, ProductID: 7, Qty: 2})
	require.ErrorIs(t, err, shared.ErrConcurrentUpdate)
	require.Equal(t, 3, repo.txCount)
	require.Zero(t, repo.batches[b1.ID].QtyReserved)
}

func TestConcurrentAllocationsNeverOversell(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	ledger := newTestLedger(repo, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Allocate(context.Background(), StockRequest{LocationID: 1, ProductID: 7, Qty: 2}); err == nil {
				mu.Lock()
				granted += 2
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(14), granted)
	for _, b := range repo.batches {
		require.LessOrEqual(t, b.QtyReserved, b.QtyOnHand)
	}
}

func TestReceiveValidation(t *testing.T) {
	repo := newMemoryRepo()
	ledger := newTestLedger(repo, nil)
	ctx := context.Background()
	mfg := day(15)

	cases := []ReceiveInput{
		{LocationID: 1, ProductID: 7},
		{LocationID: 1, ProductID: 7, Items: []ReceiveItem{{BatchNo: " ", ExpiryDate: day(20), Qty: 1}}},
		{LocationID: 1, ProductID: 7, Items: []ReceiveItem{{BatchNo: "X", ExpiryDate: day(20), Qty: 0}}},
		{LocationID: 1, ProductID: 7, Items: []ReceiveItem{{BatchNo: "X", Qty: 1}}},
		{LocationID: 1, ProductID: 7, Items: []ReceiveItem{{BatchNo: "X", ExpiryDate: day(10), ManufacturedDate: &mfg, Qty: 1}}},
		{LocationID: 1, ProductID: 7, Items: []ReceiveItem{{BatchNo: "X", ExpiryDate: day(20), Qty: 1, UnitCost: decimal.NewFromInt(-1)}}},
	}
	for i, in := range cases {
		_, err := ledger.Receive(ctx, in)
		require.ErrorIs(t, err, shared.ErrValidation, "case %d", i)
	}

	batches, err := ledger.Receive(ctx, ReceiveInput{LocationID: 1, ProductID: 7, Items: []ReceiveItem{
		{BatchNo: "R1", ExpiryDate: day(20), Qty: 3},
		{BatchNo: "R2", ExpiryDate: day(25), Qty: 4, QualityStatus: QualityQuarantine},
	}})
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, QualityOK, batches[0].QualityStatus)
	available, err := ledger.AvailableQty(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, int64(3), available)
}

func TestUpdateQualityWritesMovementOnChange(t *testing.T) {
	repo := newMemoryRepo()
	b1, _ := seedTwoBatches(repo)
	ledger := newTestLedger(repo, nil)
	ctx := context.Background()

	_, err := ledger.UpdateQuality(ctx, b1.ID, QualityInput{Status: QualityOK})
	require.NoError(t, err)
	require.Empty(t, repo.movements)

	updated, err := ledger.UpdateQuality(ctx, b1.ID, QualityInput{Status: QualityDamaged, Note: "crushed"})
	require.NoError(t, err)
	require.Equal(t, QualityDamaged, updated.QualityStatus)
	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementQuality, repo.movements[0].Type)
	require.Equal(t, "OK -> Damaged: crushed", repo.movements[0].Note)
}

func TestNearExpiry(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	ledger := newTestLedger(repo, nil)
	ledger.now = func() time.Time { return day(1) }

	batches, err := ledger.NearExpiry(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, "B1", batches[0].BatchNo)

	_, err = ledger.NearExpiry(context.Background(), -1, nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}
