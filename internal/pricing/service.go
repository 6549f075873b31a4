package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/fx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/locations"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/products"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// Repository abstracts pricing persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	WithSnapshot(ctx context.Context, fn func(context.Context, ReadRepository) error) error
	ListConfigs(ctx context.Context, filter ConfigFilter) ([]Config, error)
	GetTemplate(ctx context.Context, id int64) (Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	CreateTemplate(ctx context.Context, t Template) (Template, error)
	UpdateTemplate(ctx context.Context, t Template) (Template, error)
	ListApplications(ctx context.Context, templateID int64) ([]Application, error)
}

// ReadRepository reads configs inside one consistent snapshot.
type ReadRepository interface {
	GetConfig(ctx context.Context, productID, locationID int64) (Config, error)
}

// TxRepository writes configs inside a transaction.
type TxRepository interface {
	ReadRepository
	UpsertConfig(ctx context.Context, cfg Config) (Config, error)
	InsertApplication(ctx context.Context, app Application) (Application, error)
}

// LocationSource provides the location tree.
type LocationSource interface {
	Hierarchy(ctx context.Context) (*locations.Hierarchy, error)
}

// ProductSource provides product base costs.
type ProductSource interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// RateSource resolves exchange rates.
type RateSource interface {
	Lookup(ctx context.Context, from, to string, asOf time.Time) (fx.ExchangeRate, error)
}

// Locker serialises bulk applies of the same template.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

type noLock struct{}

func (noLock) WithLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// Dependencies groups the collaborators of Service.
type Dependencies struct {
	Repo      Repository
	Locations LocationSource
	Products  ProductSource
	Rates     RateSource
	Rounding  RoundingPolicy
	Locker    Locker
	Audit     shared.Auditor
	Logger    *slog.Logger
}

// Service prices products across the location tree.
type Service struct {
	repo      Repository
	locations LocationSource
	products  ProductSource
	rates     RateSource
	rounding  RoundingPolicy
	locker    Locker
	audit     shared.Auditor
	logger    *slog.Logger
	chains    singleflight.Group
	now       func() time.Time
}

// NewService builds Service.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locker := deps.Locker
	if locker == nil {
		locker = noLock{}
	}
	return &Service{
		repo:      deps.Repo,
		locations: deps.Locations,
		products:  deps.Products,
		rates:     deps.Rates,
		rounding:  deps.Rounding,
		locker:    locker,
		audit:     deps.Audit,
		logger:    logger,
		now:       time.Now,
	}
}

// ComputeInput feeds the pure price calculator.
type ComputeInput struct {
	ParentPrice  decimal.Decimal   `json:"parent_price"`
	TransferCost decimal.Decimal   `json:"transfer_cost"`
	ExchangeRate decimal.Decimal   `json:"exchange_rate"`
	Margins      []decimal.Decimal `json:"margins"`
	Currency     string            `json:"currency" validate:"required,len=3"`
}

// Compute runs ComputeDerivedPrice with the configured rounding for the currency.
func (s *Service) Compute(in ComputeInput) (Computation, error) {
	cur, err := shared.NormalizeCurrency(in.Currency)
	if err != nil {
		return Computation{}, err
	}
	return ComputeDerivedPrice(in.ParentPrice, in.TransferCost, in.ExchangeRate, in.Margins, s.rounding.Increment(cur))
}

// ListConfigs returns stored configs.
func (s *Service) ListConfigs(ctx context.Context, filter ConfigFilter) ([]Config, error) {
	page := shared.ListFilter{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.ListConfigs(ctx, filter)
}

// SaveBranchConfig prices a product at a Branch, freezing today's HQ to branch rate.
func (s *Service) SaveBranchConfig(ctx context.Context, actorID int64, in BranchConfigInput) (Config, error) {
	h, err := s.locations.Hierarchy(ctx)
	if err != nil {
		return Config{}, err
	}
	loc, err := activeTarget(h, in.LocationID, locations.TypeBranch)
	if err != nil {
		return Config{}, err
	}
	hq, err := h.Get(*loc.ParentID)
	if err != nil {
		return Config{}, err
	}
	product, err := s.products.Get(ctx, in.ProductID)
	if err != nil {
		return Config{}, err
	}
	rate, err := s.rates.Lookup(ctx, hq.Currency, loc.Currency, s.now())
	if err != nil {
		return Config{}, err
	}
	cfg, err := s.branchConfig(product, hq, loc, rate, branchMargins{
		hq:       in.HQMarginPercent,
		branch:   in.BranchMarginPercent,
		transfer: in.TransferCost,
		discount: in.DiscountPercent,
	})
	if err != nil {
		return Config{}, err
	}
	cfg.UpdatedBy = actorID

	var saved Config
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		saved, err = tx.UpsertConfig(ctx, cfg)
		return err
	})
	if err != nil {
		return Config{}, fmt.Errorf("pricing: save branch config: %w", err)
	}
	s.record(ctx, actorID, shared.AuditEntityPricingConfig, "pricing_config:save_branch", saved.ID, map[string]any{
		"product_id": saved.ProductID, "location_id": saved.LocationID, "final_price": saved.FinalPrice.String(),
	})
	return saved, nil
}

// SaveSubBranchConfig prices a product at a SubBranch from the parent branch's stored price.
func (s *Service) SaveSubBranchConfig(ctx context.Context, actorID int64, in SubBranchConfigInput) (Config, error) {
	h, err := s.locations.Hierarchy(ctx)
	if err != nil {
		return Config{}, err
	}
	loc, err := activeTarget(h, in.LocationID, locations.TypeSubBranch)
	if err != nil {
		return Config{}, err
	}
	parent, err := h.Get(*loc.ParentID)
	if err != nil {
		return Config{}, err
	}
	if _, err := s.products.Get(ctx, in.ProductID); err != nil {
		return Config{}, err
	}
	rate, err := s.rates.Lookup(ctx, parent.Currency, loc.Currency, s.now())
	if err != nil {
		return Config{}, err
	}

	var saved Config
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		parentCfg, err := tx.GetConfig(ctx, in.ProductID, parent.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return &shared.ChainIncompleteError{ProductID: in.ProductID, BrokenAt: parent.ID, LocationID: loc.ID}
		}
		if err != nil {
			return err
		}
		cfg, err := s.subBranchConfig(parentCfg, loc, rate, subMargins{
			sub:      in.SubBranchMarginPercent,
			transfer: in.TransferCost,
			discount: in.DiscountPercent,
		})
		if err != nil {
			return err
		}
		cfg.UpdatedBy = actorID
		saved, err = tx.UpsertConfig(ctx, cfg)
		return err
	})
	if err != nil {
		return Config{}, fmt.Errorf("pricing: save sub-branch config: %w", err)
	}
	s.record(ctx, actorID, shared.AuditEntityPricingConfig, "pricing_config:save_sub_branch", saved.ID, map[string]any{
		"product_id": saved.ProductID, "location_id": saved.LocationID, "final_price": saved.FinalPrice.String(),
	})
	return saved, nil
}

type chainResult struct {
	hops []ChainHop
	err  error
}

// ResolveChain walks HQ down to locationID. A missing config returns the hops
// found so far together with a *shared.ChainIncompleteError.
func (s *Service) ResolveChain(ctx context.Context, productID, locationID int64) ([]ChainHop, error) {
	key := strconv.FormatInt(productID, 10) + ":" + strconv.FormatInt(locationID, 10)
	detached := context.WithoutCancel(ctx)
	v, err, _ := s.chains.Do(key, func() (any, error) {
		hops, err := s.resolveChain(detached, productID, locationID)
		return chainResult{hops: hops, err: err}, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := v.(chainResult)
	return append([]ChainHop(nil), res.hops...), res.err
}

func (s *Service) resolveChain(ctx context.Context, productID, locationID int64) ([]ChainHop, error) {
	h, err := s.locations.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	path, err := h.Breadcrumbs(locationID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	root := path[0]
	hops := []ChainHop{{
		LocationID:    root.ID,
		LocationName:  root.Name,
		Currency:      root.Currency,
		Price:         product.BaseCost,
		MarginApplied: []decimal.Decimal{},
		Source:        SourceBaseCost,
	}}
	var broken error
	err = s.repo.WithSnapshot(ctx, func(ctx context.Context, rr ReadRepository) error {
		for _, loc := range path[1:] {
			cfg, err := rr.GetConfig(ctx, productID, loc.ID)
			if errors.Is(err, shared.ErrNotFound) {
				broken = &shared.ChainIncompleteError{ProductID: productID, BrokenAt: loc.ID, LocationID: locationID}
				return nil
			}
			if err != nil {
				return err
			}
			hops = append(hops, ChainHop{
				LocationID:    loc.ID,
				LocationName:  loc.Name,
				Currency:      cfg.Currency,
				Price:         cfg.DiscountedPrice,
				MarginApplied: cfg.margins(),
				Source:        SourceConfig,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pricing: resolve chain: %w", err)
	}
	return hops, broken
}

// ApplyTemplate prices every (location, product) pair with the template's
// margins. Either every pair is written together with one Application row,
// or nothing is written.
func (s *Service) ApplyTemplate(ctx context.Context, actorID, templateID int64, in ApplyInput) (Application, error) {
	locIDs := dedupe(in.LocationIDs)
	productIDs := dedupe(in.ProductIDs)
	if len(locIDs) == 0 || len(productIDs) == 0 {
		return Application{}, shared.Validationf("at least one location and one product are required")
	}
	tmpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return Application{}, err
	}
	if !tmpl.IsActive {
		return Application{}, shared.Validationf("template %d is inactive", templateID)
	}

	var app Application
	lockKey := "pricing:template:" + strconv.FormatInt(templateID, 10)
	err = s.locker.WithLock(ctx, lockKey, func(ctx context.Context) error {
		h, err := s.locations.Hierarchy(ctx)
		if err != nil {
			return err
		}
		targets, err := templateTargets(h, tmpl, locIDs)
		if err != nil {
			return err
		}
		prods := make([]products.Product, 0, len(productIDs))
		for _, id := range productIDs {
			p, err := s.products.Get(ctx, id)
			if err != nil {
				return err
			}
			prods = append(prods, p)
		}
		asOf := s.now()
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			type pair struct{ product, location int64 }
			planned := make(map[pair]Config, len(targets)*len(prods))
			ordered := make([]Config, 0, len(targets)*len(prods))
			for _, loc := range targets {
				parent, err := h.Get(*loc.ParentID)
				if err != nil {
					return err
				}
				for _, p := range prods {
					cfg, err := s.templateConfig(ctx, tx, tmpl, p, parent, loc, asOf, func(productID, locationID int64) (Config, bool) {
						c, ok := planned[pair{productID, locationID}]
						return c, ok
					})
					if err != nil {
						return fmt.Errorf("product %d at location %d: %w", p.ID, loc.ID, err)
					}
					cfg.UpdatedBy = actorID
					planned[pair{p.ID, loc.ID}] = cfg
					ordered = append(ordered, cfg)
				}
			}
			for _, cfg := range ordered {
				if _, err := tx.UpsertConfig(ctx, cfg); err != nil {
					return err
				}
			}
			app, err = tx.InsertApplication(ctx, Application{
				TemplateID:  templateID,
				LocationIDs: locIDs,
				ProductIDs:  productIDs,
				RowsWritten: len(ordered),
				AppliedBy:   actorID,
				AppliedAt:   asOf,
			})
			return err
		})
	})
	if err != nil {
		s.logger.Warn("template apply rejected",
			slog.Int64("template_id", templateID),
			slog.Int("locations", len(locIDs)),
			slog.Int("products", len(productIDs)),
			slog.Any("error", err))
		return Application{}, fmt.Errorf("pricing: apply template %d: %w", templateID, err)
	}
	s.logger.Info("template applied", slog.Int64("template_id", templateID), slog.Int("rows", app.RowsWritten))
	s.record(ctx, actorID, shared.AuditEntityPricingApply, "pricing_template:apply", app.ID, map[string]any{
		"template_id": templateID, "rows_written": app.RowsWritten,
	})
	return app, nil
}

func (s *Service) templateConfig(ctx context.Context, tx TxRepository, tmpl Template, p products.Product, parent, loc locations.Location, asOf time.Time, plannedParent func(productID, locationID int64) (Config, bool)) (Config, error) {
	rate, err := s.rates.Lookup(ctx, parent.Currency, loc.Currency, asOf)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	switch loc.Type {
	case locations.TypeBranch:
		cfg, err = s.branchConfig(p, parent, loc, rate, branchMargins{
			hq:       tmpl.HQMarginPercent,
			branch:   tmpl.BranchMarginPercent,
			transfer: tmpl.DefaultTransferCost,
			discount: tmpl.DiscountPercent,
		})
	case locations.TypeSubBranch:
		parentCfg, ok := plannedParent(p.ID, parent.ID)
		if !ok {
			parentCfg, err = tx.GetConfig(ctx, p.ID, parent.ID)
			if errors.Is(err, shared.ErrNotFound) {
				return Config{}, &shared.ChainIncompleteError{ProductID: p.ID, BrokenAt: parent.ID, LocationID: loc.ID}
			}
			if err != nil {
				return Config{}, err
			}
		}
		cfg, err = s.subBranchConfig(parentCfg, loc, rate, subMargins{
			sub:      tmpl.SubBranchMarginPercent,
			transfer: tmpl.DefaultTransferCost,
			discount: tmpl.DiscountPercent,
		})
	default:
		return Config{}, shared.Validationf("location %d of type %s cannot be priced", loc.ID, loc.Type)
	}
	if err != nil {
		return Config{}, err
	}
	id := tmpl.ID
	cfg.TemplateID = &id
	return cfg, nil
}

type branchMargins struct {
	hq, branch, transfer, discount decimal.Decimal
}

type subMargins struct {
	sub, transfer, discount decimal.Decimal
}

func (s *Service) branchConfig(p products.Product, hq, loc locations.Location, rate fx.ExchangeRate, m branchMargins) (Config, error) {
	q, err := DeriveBranchPrice(p.BaseCost, m.transfer, rate.Rate, m.hq, m.branch, m.discount, s.rounding.Increment(loc.Currency))
	if err != nil {
		return Config{}, err
	}
	return Config{
		ProductID:           p.ID,
		LocationID:          loc.ID,
		SourceLocationID:    hq.ID,
		Level:               LevelBranch,
		Currency:            loc.Currency,
		HQMarginPercent:     m.hq,
		BranchMarginPercent: m.branch,
		TransferCost:        m.transfer,
		ExchangeRate:        rate.Rate,
		RateDate:            rate.EffectiveDate,
		LocalCost:           q.LocalCost,
		FinalPrice:          q.SuggestedPrice,
		DiscountPercent:     m.discount,
		DiscountedPrice:     q.DiscountedPrice,
	}, nil
}

func (s *Service) subBranchConfig(parentCfg Config, loc locations.Location, rate fx.ExchangeRate, m subMargins) (Config, error) {
	q, err := DeriveSubBranchPrice(parentCfg.DiscountedPrice, m.transfer, rate.Rate, m.sub, m.discount, s.rounding.Increment(loc.Currency))
	if err != nil {
		return Config{}, err
	}
	return Config{
		ProductID:              parentCfg.ProductID,
		LocationID:             loc.ID,
		SourceLocationID:       parentCfg.LocationID,
		Level:                  LevelSubBranch,
		Currency:               loc.Currency,
		SubBranchMarginPercent: m.sub,
		TransferCost:           m.transfer,
		ExchangeRate:           rate.Rate,
		RateDate:               rate.EffectiveDate,
		LocalCost:              q.LocalCost,
		FinalPrice:             q.SuggestedPrice,
		DiscountPercent:        m.discount,
		DiscountedPrice:        q.DiscountedPrice,
	}, nil
}

func (c Config) margins() []decimal.Decimal {
	if c.Level == LevelSubBranch {
		return []decimal.Decimal{c.SubBranchMarginPercent}
	}
	return []decimal.Decimal{c.HQMarginPercent, c.BranchMarginPercent}
}

// GetTemplate returns a template by id.
func (s *Service) GetTemplate(ctx context.Context, id int64) (Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

// ListTemplates returns every template.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	return s.repo.ListTemplates(ctx)
}

// ListApplications returns the apply history of a template, newest first.
func (s *Service) ListApplications(ctx context.Context, templateID int64) ([]Application, error) {
	if _, err := s.repo.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	return s.repo.ListApplications(ctx, templateID)
}

// CreateTemplate stores a new template.
func (s *Service) CreateTemplate(ctx context.Context, actorID int64, in TemplateInput) (Template, error) {
	t, err := templateFromInput(in)
	if err != nil {
		return Template{}, err
	}
	t.IsActive = in.IsActive == nil || *in.IsActive
	t.CreatedBy = actorID
	created, err := s.repo.CreateTemplate(ctx, t)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Template{}, shared.Validationf("template %q already exists", t.Name)
		}
		return Template{}, fmt.Errorf("pricing: create template: %w", err)
	}
	return created, nil
}

// UpdateTemplate replaces the margins of a template. Configs already written keep their values.
func (s *Service) UpdateTemplate(ctx context.Context, actorID, id int64, in TemplateInput) (Template, error) {
	current, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, err
	}
	t, err := templateFromInput(in)
	if err != nil {
		return Template{}, err
	}
	t.ID = id
	t.CreatedBy = current.CreatedBy
	t.IsActive = current.IsActive
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	updated, err := s.repo.UpdateTemplate(ctx, t)
	if err != nil {
		return Template{}, fmt.Errorf("pricing: update template: %w", err)
	}
	s.record(ctx, actorID, shared.AuditEntityPricingConfig, "pricing_template:update", id, nil)
	return updated, nil
}

func templateFromInput(in TemplateInput) (Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Template{}, shared.Validationf("template name is required")
	}
	for field, v := range map[string]decimal.Decimal{
		"hq margin":         in.HQMarginPercent,
		"branch margin":     in.BranchMarginPercent,
		"sub-branch margin": in.SubBranchMarginPercent,
		"discount":          in.DiscountPercent,
	} {
		if err := checkPercent(field, v); err != nil {
			return Template{}, shared.Validationf("%v", err)
		}
	}
	if in.HQMarginPercent.Add(in.BranchMarginPercent).GreaterThanOrEqual(hundred) {
		return Template{}, shared.Validationf("hq margin + branch margin must be < 100")
	}
	if in.DefaultTransferCost.IsNegative() {
		return Template{}, shared.Validationf("default transfer cost must be >= 0")
	}
	t := Template{
		Name:                   name,
		Description:            strings.TrimSpace(in.Description),
		HQMarginPercent:        in.HQMarginPercent,
		BranchMarginPercent:    in.BranchMarginPercent,
		SubBranchMarginPercent: in.SubBranchMarginPercent,
		DefaultTransferCost:    in.DefaultTransferCost,
		DiscountPercent:        in.DiscountPercent,
	}
	if in.TargetCurrency != "" {
		cur, err := shared.NormalizeCurrency(in.TargetCurrency)
		if err != nil {
			return Template{}, err
		}
		t.TargetCurrency = cur
	}
	return t, nil
}

func (s *Service) record(ctx context.Context, actorID int64, entity, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit pricing", slog.String("action", action), slog.Any("error", err))
	}
}

func activeTarget(h *locations.Hierarchy, id int64, want locations.Type) (locations.Location, error) {
	loc, err := h.Get(id)
	if err != nil {
		return locations.Location{}, err
	}
	if loc.Type != want {
		return locations.Location{}, shared.Validationf("location %d is %s, expected %s", id, loc.Type, want)
	}
	if !loc.IsActive {
		return locations.Location{}, shared.Validationf("location %d is inactive", id)
	}
	if loc.ParentID == nil {
		return locations.Location{}, fmt.Errorf("%w: location %d has no parent", shared.ErrCorruptHierarchy, id)
	}
	return loc, nil
}

// templateTargets resolves and orders apply targets: branches first so
// sub-branches in the same call can build on them.
func templateTargets(h *locations.Hierarchy, tmpl Template, ids []int64) ([]locations.Location, error) {
	out := make([]locations.Location, 0, len(ids))
	for _, id := range ids {
		loc, err := h.Get(id)
		if err != nil {
			return nil, err
		}
		if loc.Type == locations.TypeHQ {
			return nil, shared.Validationf("location %d is HQ; HQ prices come from product base cost", id)
		}
		loc, err = activeTarget(h, id, loc.Type)
		if err != nil {
			return nil, err
		}
		if tmpl.TargetCurrency != "" && loc.Currency != tmpl.TargetCurrency {
			return nil, shared.Validationf("template %d targets %s but location %d uses %s", tmpl.ID, tmpl.TargetCurrency, id, loc.Currency)
		}
		out = append(out, loc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type == locations.TypeBranch && out[j].Type != locations.TypeBranch
	})
	return out, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
