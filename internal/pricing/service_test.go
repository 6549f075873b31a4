package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/fx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/locations"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/products"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

type configKey struct{ product, location int64 }

type memoryRepo struct {
	mu        sync.Mutex
	configs   map[configKey]Config
	templates map[int64]Template
	apps      []Application
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{configs: map[configKey]Config{}, templates: map[int64]Template{}}
}

type memoryTx struct{ m *memoryRepo }

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	configs := make(map[configKey]Config, len(m.configs))
	for k, v := range m.configs {
		configs[k] = v
	}
	apps := append([]Application(nil), m.apps...)
	if err := fn(ctx, memoryTx{m}); err != nil {
		m.configs, m.apps = configs, apps
		return err
	}
	return nil
}

func (m *memoryRepo) WithSnapshot(ctx context.Context, fn func(context.Context, ReadRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, memoryTx{m})
}

func (t memoryTx) GetConfig(ctx context.Context, productID, locationID int64) (Config, error) {
	cfg, ok := t.m.configs[configKey{productID, locationID}]
	if !ok {
		return Config{}, shared.ErrNotFound
	}
	return cfg, nil
}

func (t memoryTx) UpsertConfig(ctx context.Context, cfg Config) (Config, error) {
	key := configKey{cfg.ProductID, cfg.LocationID}
	if prev, ok := t.m.configs[key]; ok {
		cfg.ID = prev.ID
	} else {
		t.m.nextID++
		cfg.ID = t.m.nextID
	}
	t.m.configs[key] = cfg
	return cfg, nil
}

func (t memoryTx) InsertApplication(ctx context.Context, app Application) (Application, error) {
	t.m.nextID++
	app.ID = t.m.nextID
	t.m.apps = append(t.m.apps, app)
	return app, nil
}

func (m *memoryRepo) ListConfigs(ctx context.Context, filter ConfigFilter) ([]Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Config{}
	for _, c := range m.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) GetTemplate(ctx context.Context, id int64) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return Template{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) ListTemplates(ctx context.Context) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Template{}
	for _, t := range m.templates {
		out = append(out, t)
	}
	return out, nil
}

func (m *memoryRepo) CreateTemplate(ctx context.Context, t Template) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.templates[t.ID] = t
	return t, nil
}

func (m *memoryRepo) UpdateTemplate(ctx context.Context, t Template) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return t, nil
}

func (m *memoryRepo) ListApplications(ctx context.Context, templateID int64) ([]Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Application(nil), m.apps...), nil
}

type staticLocations struct{ h *locations.Hierarchy }

func (s staticLocations) Hierarchy(ctx context.Context) (*locations.Hierarchy, error) {
	return s.h, nil
}

// gatedLocations holds the first Hierarchy call until release is closed and
// records the context error that call observed.
type gatedLocations struct {
	staticLocations
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	seen    error
}

func (g *gatedLocations) Hierarchy(ctx context.Context) (*locations.Hierarchy, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
		g.seen = ctx.Err()
		if g.seen != nil {
			return nil, g.seen
		}
	}
	return g.staticLocations.Hierarchy(ctx)
}

type staticProducts map[int64]products.Product

func (s staticProducts) Get(ctx context.Context, id int64) (products.Product, error) {
	p, ok := s[id]
	if !ok {
		return products.Product{}, shared.NotFoundf("product %d", id)
	}
	return p, nil
}

// stubRates answers identity pairs with 1 and looks up the rest in rates.
// failOnCall > 0 makes that call fail as if the rate were missing.
type stubRates struct {
	rates      map[string]decimal.Decimal
	calls      int
	failOnCall int
}

func (s *stubRates) Lookup(ctx context.Context, from, to string, asOf time.Time) (fx.ExchangeRate, error) {
	s.calls++
	if s.calls == s.failOnCall {
		return fx.ExchangeRate{}, &shared.RateNotFoundError{From: from, To: to}
	}
	if from == to {
		return fx.ExchangeRate{FromCurrency: from, ToCurrency: to, Rate: decimal.NewFromInt(1), EffectiveDate: fx.Day(asOf)}, nil
	}
	r, ok := s.rates[from+to]
	if !ok {
		return fx.ExchangeRate{}, &shared.RateNotFoundError{From: from, To: to}
	}
	return fx.ExchangeRate{FromCurrency: from, ToCurrency: to, Rate: r, EffectiveDate: fx.Day(asOf)}, nil
}

func ptr(v int64) *int64 { return &v }

// testTree is HQ 1 (KRW) with Branch 2 (VND, Sub 4) and Branch 3 (KRW, Sub 6).
func testTree() *locations.Hierarchy {
	return locations.NewHierarchy([]locations.Location{
		{ID: 1, Code: "HQ", Name: "Seoul HQ", Type: locations.TypeHQ, Currency: "KRW", IsActive: true},
		{ID: 2, Code: "VN", Name: "Hanoi", Type: locations.TypeBranch, ParentID: ptr(1), Currency: "VND", IsActive: true},
		{ID: 3, Code: "KR", Name: "Busan", Type: locations.TypeBranch, ParentID: ptr(1), Currency: "KRW", IsActive: true},
		{ID: 4, Code: "VN-1", Name: "Hanoi Mall", Type: locations.TypeSubBranch, ParentID: ptr(2), Currency: "VND", IsActive: true},
		{ID: 6, Code: "KR-1", Name: "Busan Station", Type: locations.TypeSubBranch, ParentID: ptr(3), Currency: "KRW", IsActive: true},
	})
}

type fixture struct {
	svc   *Service
	repo  *memoryRepo
	rates *stubRates
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	rounding, err := NewRoundingPolicy(map[string]string{"KRW": "100", "VND": "1000"})
	require.NoError(t, err)
	prods := staticProducts{}
	for id := int64(1); id <= 5; id++ {
		prods[id] = products.Product{ID: id, SKU: fmt.Sprintf("SKU-%d", id), BaseCost: d("10000")}
	}
	repo := newMemoryRepo()
	rates := &stubRates{rates: map[string]decimal.Decimal{"KRWVND": d("18.5")}}
	svc := NewService(Dependencies{
		Repo:      repo,
		Locations: staticLocations{h: testTree()},
		Products:  prods,
		Rates:     rates,
		Rounding:  rounding,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return fixture{svc: svc, repo: repo, rates: rates}
}

func (f fixture) template(t *testing.T) Template {
	t.Helper()
	tmpl, err := f.svc.CreateTemplate(context.Background(), 1, TemplateInput{
		Name:                   "standard",
		HQMarginPercent:        d("20"),
		BranchMarginPercent:    d("10"),
		SubBranchMarginPercent: d("5"),
		DefaultTransferCost:    d("500"),
	})
	require.NoError(t, err)
	return tmpl
}

func TestSaveBranchConfigFreezesRate(t *testing.T) {
	f := newFixture(t)
	cfg, err := f.svc.SaveBranchConfig(context.Background(), 1, BranchConfigInput{
		ProductID: 1, LocationID: 3,
		HQMarginPercent: d("20"), BranchMarginPercent: d("10"), TransferCost: d("500"),
	})
	require.NoError(t, err)
	require.Equal(t, "14600", cfg.FinalPrice.String())
	require.Equal(t, "14600", cfg.DiscountedPrice.String())
	require.Equal(t, LevelBranch, cfg.Level)
	require.Equal(t, int64(1), cfg.SourceLocationID)

	vnd, err := f.svc.SaveBranchConfig(context.Background(), 1, BranchConfigInput{
		ProductID: 1, LocationID: 2,
		HQMarginPercent: d("20"), BranchMarginPercent: d("10"), TransferCost: d("500"),
	})
	require.NoError(t, err)
	require.Equal(t, "18.5", vnd.ExchangeRate.String())
	require.Equal(t, "VND", vnd.Currency)

	f.rates.rates["KRWVND"] = d("20")
	stored, err := memoryTx{f.repo}.GetConfig(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, "18.5", stored.ExchangeRate.String())
}

func TestSaveBranchConfigRejectsWrongLevel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SaveBranchConfig(context.Background(), 1, BranchConfigInput{ProductID: 1, LocationID: 6})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.SaveBranchConfig(context.Background(), 1, BranchConfigInput{ProductID: 1, LocationID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.SaveBranchConfig(context.Background(), 1, BranchConfigInput{ProductID: 1, LocationID: 3, HQMarginPercent: d("100")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSaveSubBranchConfigNeedsParentPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SaveSubBranchConfig(ctx, 1, SubBranchConfigInput{ProductID: 1, LocationID: 6, SubBranchMarginPercent: d("5"), TransferCost: d("500")})
	var chainErr *shared.ChainIncompleteError
	require.ErrorAs(t, err, &chainErr)
	require.Equal(t, int64(3), chainErr.BrokenAt)

	_, err = f.svc.SaveBranchConfig(ctx, 1, BranchConfigInput{ProductID: 1, LocationID: 3, HQMarginPercent: d("20"), BranchMarginPercent: d("10"), TransferCost: d("500")})
	require.NoError(t, err)
	cfg, err := f.svc.SaveSubBranchConfig(ctx, 1, SubBranchConfigInput{ProductID: 1, LocationID: 6, SubBranchMarginPercent: d("5"), TransferCost: d("500")})
	require.NoError(t, err)
	// (14600 + 500) / 0.95 = 15894.74
	require.Equal(t, "15900", cfg.FinalPrice.String())
	require.Equal(t, int64(3), cfg.SourceLocationID)
}

func TestResolveChainReportsGap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SaveBranchConfig(ctx, 1, BranchConfigInput{ProductID: 1, LocationID: 3, HQMarginPercent: d("20"), BranchMarginPercent: d("10"), TransferCost: d("500")})
	require.NoError(t, err)

	hops, err := f.svc.ResolveChain(ctx, 1, 6)
	var chainErr *shared.ChainIncompleteError
	require.ErrorAs(t, err, &chainErr)
	require.Equal(t, int64(6), chainErr.BrokenAt)
	require.Len(t, hops, 2)
	require.Equal(t, SourceBaseCost, hops[0].Source)
	require.Equal(t, "10000", hops[0].Price.String())
	require.Equal(t, "14600", hops[1].Price.String())
	require.Len(t, hops[1].MarginApplied, 2)

	_, err = f.svc.SaveSubBranchConfig(ctx, 1, SubBranchConfigInput{ProductID: 1, LocationID: 6, SubBranchMarginPercent: d("5"), TransferCost: d("500")})
	require.NoError(t, err)
	hops, err = f.svc.ResolveChain(ctx, 1, 6)
	require.NoError(t, err)
	require.Len(t, hops, 3)
	require.Equal(t, int64(6), hops[2].LocationID)
}

func TestResolveChainForHQIsBaseCost(t *testing.T) {
	f := newFixture(t)
	hops, err := f.svc.ResolveChain(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, hops, 1)
	require.Equal(t, SourceBaseCost, hops[0].Source)
}

func TestResolveChainSharedWorkSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SaveBranchConfig(context.Background(), 1, BranchConfigInput{ProductID: 1, LocationID: 3, HQMarginPercent: d("20"), BranchMarginPercent: d("10"), TransferCost: d("500")})
	require.NoError(t, err)
	gate := &gatedLocations{staticLocations: staticLocations{h: testTree()}, entered: make(chan struct{}), release: make(chan struct{})}
	f.svc.locations = gate

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.ResolveChain(ctx, 1, 3)
		done <- err
	}()
	<-gate.entered
	other := make(chan error, 1)
	go func() {
		hops, err := f.svc.ResolveChain(context.Background(), 1, 3)
		if err == nil && len(hops) != 2 {
			err = fmt.Errorf("got %d hops", len(hops))
		}
		other <- err
	}()
	cancel()
	close(gate.release)

	require.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, <-other)
	require.NoError(t, gate.seen)
}

func TestTemplateMarginsMustSumBelowHundred(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateTemplate(ctx, 1, TemplateInput{Name: "over", HQMarginPercent: d("60"), BranchMarginPercent: d("50")})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.CreateTemplate(ctx, 1, TemplateInput{Name: "edge", HQMarginPercent: d("60"), BranchMarginPercent: d("40")})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.repo.templates)

	tmpl := f.template(t)
	_, err = f.svc.UpdateTemplate(ctx, 1, tmpl.ID, TemplateInput{Name: tmpl.Name, HQMarginPercent: d("70"), BranchMarginPercent: d("30")})
	require.ErrorIs(t, err, shared.ErrValidation)
	stored, err := f.svc.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, "20", stored.HQMarginPercent.String())
}

func TestApplyTemplateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	tmpl := f.template(t)
	f.rates.failOnCall = 3

	_, err := f.svc.ApplyTemplate(context.Background(), 1, tmpl.ID, ApplyInput{
		LocationIDs: []int64{3},
		ProductIDs:  []int64{1, 2, 3, 4, 5},
	})
	var rateErr *shared.RateNotFoundError
	require.True(t, errors.As(err, &rateErr))
	require.Empty(t, f.repo.configs)
	require.Empty(t, f.repo.apps)
}

func TestApplyTemplateWritesEveryPair(t *testing.T) {
	f := newFixture(t)
	tmpl := f.template(t)

	app, err := f.svc.ApplyTemplate(context.Background(), 1, tmpl.ID, ApplyInput{
		LocationIDs: []int64{6, 3, 3},
		ProductIDs:  []int64{1, 2, 3, 4, 5},
	})
	require.NoError(t, err)
	require.Equal(t, 10, app.RowsWritten)
	require.Equal(t, []int64{6, 3}, app.LocationIDs)
	require.Len(t, f.repo.configs, 10)
	require.Len(t, f.repo.apps, 1)

	for id := int64(1); id <= 5; id++ {
		branch := f.repo.configs[configKey{id, 3}]
		require.Equal(t, "14600", branch.FinalPrice.String())
		require.Equal(t, tmpl.ID, *branch.TemplateID)
		sub := f.repo.configs[configKey{id, 6}]
		require.Equal(t, "15900", sub.FinalPrice.String())
	}
}

func TestApplyTemplateRejectsHQAndCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	tmpl := f.template(t)
	ctx := context.Background()

	_, err := f.svc.ApplyTemplate(ctx, 1, tmpl.ID, ApplyInput{LocationIDs: []int64{1}, ProductIDs: []int64{1}})
	require.ErrorIs(t, err, shared.ErrValidation)

	krwOnly, err := f.svc.CreateTemplate(ctx, 1, TemplateInput{Name: "korea", TargetCurrency: "krw"})
	require.NoError(t, err)
	_, err = f.svc.ApplyTemplate(ctx, 1, krwOnly.ID, ApplyInput{LocationIDs: []int64{2}, ProductIDs: []int64{1}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.repo.configs)
}

func TestApplyTemplateSubBranchWithoutParentFails(t *testing.T) {
	f := newFixture(t)
	tmpl := f.template(t)
	_, err := f.svc.ApplyTemplate(context.Background(), 1, tmpl.ID, ApplyInput{LocationIDs: []int64{4}, ProductIDs: []int64{1}})
	var chainErr *shared.ChainIncompleteError
	require.ErrorAs(t, err, &chainErr)
	require.Empty(t, f.repo.configs)
}
