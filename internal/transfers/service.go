package transfers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/inventory"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// approvalModule tags approval history rows written by this package.
const approvalModule = "stock_transfer"

// Repository persists transfer requests.
type Repository interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, error)
	// CompareAndSet stores req's status, approval and rejection fields only
	// while the stored status still equals expected. It fails with
	// shared.ErrConcurrentUpdate otherwise.
	CompareAndSet(ctx context.Context, req Request, expected Status) (Request, error)
}

// LedgerPort executes the physical stock movement.
type LedgerPort interface {
	Transfer(ctx context.Context, in inventory.TransferInput) (inventory.TransferResult, error)
}

// ApprovalPort records and reads approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Service drives the transfer request lifecycle.
type Service struct {
	repo      Repository
	ledger    LedgerPort
	approvals ApprovalPort
	audit     shared.Auditor
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs Service. approvals and audit may be nil.
func NewService(repo Repository, ledger LedgerPort, approvals ApprovalPort, audit shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, approvals: approvals, audit: audit, logger: logger, now: time.Now}
}

// Create stores a Pending request. Stock is not checked until approval.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (Request, error) {
	if in.FromLocationID <= 0 || in.ToLocationID <= 0 || in.ProductID <= 0 {
		return Request{}, shared.Validationf("locations and product are required")
	}
	if in.FromLocationID == in.ToLocationID {
		return Request{}, shared.Validationf("source and destination must differ")
	}
	if in.Qty <= 0 {
		return Request{}, shared.Validationf("requested quantity must be positive")
	}
	req, err := s.repo.Create(ctx, Request{
		Ref:            uuid.New(),
		RequestedBy:    actorID,
		FromLocationID: in.FromLocationID,
		ToLocationID:   in.ToLocationID,
		ProductID:      in.ProductID,
		Qty:            in.Qty,
		Status:         StatusPending,
		Note:           strings.TrimSpace(in.Note),
	})
	if err != nil {
		return Request{}, fmt.Errorf("transfers: create: %w", err)
	}
	s.recordApproval(ctx, req, actorID, shared.ApprovalSubmit, req.Note)
	s.record(ctx, actorID, "transfer_request:create", req, nil)
	return req, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	if id <= 0 {
		return Request{}, shared.Validationf("invalid transfer request id")
	}
	return s.repo.Get(ctx, id)
}

// History returns the approval trail of a request, oldest first.
func (s *Service) History(ctx context.Context, req Request) ([]shared.ApprovalLog, error) {
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	logs, err := s.approvals.List(ctx, approvalModule, req.Ref)
	if err != nil {
		return nil, fmt.Errorf("transfers: history: %w", err)
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// List returns requests, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Validationf("unknown status %q", filter.Status)
	}
	page := shared.ListFilter{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.List(ctx, filter)
}

// Approve moves a Pending request to Approved and runs the ledger transfer.
// A successful transfer completes the request. A failed transfer puts the
// request back to Pending with the approval cleared and returns the ledger
// error, so approve can simply be called again later.
func (s *Service) Approve(ctx context.Context, id, approverID int64) (Request, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if _, err := Next(req.Status, ActionApprove); err != nil {
		return Request{}, err
	}
	at := s.now().UTC()
	approved := req
	approved.Status = StatusApproved
	approved.ApprovedBy = &approverID
	approved.ApprovedAt = &at
	approved, err = s.transition(ctx, approved, StatusPending, ActionApprove)
	if err != nil {
		return Request{}, err
	}

	_, transferErr := s.ledger.Transfer(ctx, inventory.TransferInput{
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		ProductID:      req.ProductID,
		Qty:            req.Qty,
		Note:           "transfer request " + strconv.FormatInt(req.ID, 10),
		ActorID:        approverID,
		Ref:            req.Ref,
	})
	// The outcome must be persisted even when the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	if transferErr != nil {
		s.logger.Warn("transfer request execution failed, reverting to pending",
			slog.Int64("request_id", req.ID),
			slog.String("ref", req.Ref.String()),
			slog.Any("error", transferErr))
		if revertErr := s.revert(persistCtx, approved); revertErr != nil {
			s.logger.Error("revert transfer request", slog.Int64("request_id", req.ID), slog.Any("error", revertErr))
			return Request{}, errors.Join(transferErr, revertErr)
		}
		s.recordApproval(persistCtx, req, approverID, shared.ApprovalRevert, transferErr.Error())
		return Request{}, transferErr
	}

	completed := approved
	completed.Status = StatusCompleted
	completed, err = s.transition(persistCtx, completed, StatusApproved, ActionComplete)
	if err != nil {
		s.logger.Error("complete transfer request after stock moved",
			slog.Int64("request_id", req.ID),
			slog.String("ref", req.Ref.String()),
			slog.Any("error", err))
		return Request{}, err
	}
	s.recordApproval(persistCtx, req, approverID, shared.ApprovalApprove, "")
	s.record(persistCtx, approverID, "transfer_request:approve", completed, map[string]any{"qty": req.Qty})
	return completed, nil
}

// Reject closes a Pending request with a reason.
func (s *Service) Reject(ctx context.Context, id, actorID int64, reason string) (Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Request{}, shared.Validationf("rejection reason is required")
	}
	req, err := s.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if _, err := Next(req.Status, ActionReject); err != nil {
		return Request{}, err
	}
	req.Status = StatusRejected
	req.RejectionReason = reason
	rejected, err := s.transition(ctx, req, StatusPending, ActionReject)
	if err != nil {
		return Request{}, err
	}
	s.recordApproval(ctx, rejected, actorID, shared.ApprovalReject, reason)
	s.record(ctx, actorID, "transfer_request:reject", rejected, map[string]any{"reason": reason})
	return rejected, nil
}

// revert clears the approval. Reverting a request that is already Pending
// is a no-op.
func (s *Service) revert(ctx context.Context, approved Request) error {
	pending := approved
	pending.Status = StatusPending
	pending.ApprovedBy = nil
	pending.ApprovedAt = nil
	_, err := s.transition(ctx, pending, StatusApproved, ActionRevert)
	var transErr *shared.InvalidTransitionError
	if errors.As(err, &transErr) && transErr.Current == string(StatusPending) {
		return nil
	}
	return err
}

// transition writes next if the stored status is still from. A lost race is
// reported as an InvalidTransitionError against the status that won.
func (s *Service) transition(ctx context.Context, next Request, from Status, action Action) (Request, error) {
	saved, err := s.repo.CompareAndSet(ctx, next, from)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, shared.ErrConcurrentUpdate) {
		return Request{}, fmt.Errorf("transfers: %s: %w", action, err)
	}
	current, getErr := s.repo.Get(ctx, next.ID)
	if getErr != nil {
		return Request{}, fmt.Errorf("transfers: %s: %w", action, getErr)
	}
	return Request{}, &shared.InvalidTransitionError{Current: string(current.Status), Attempted: string(action)}
}

func (s *Service) recordApproval(ctx context.Context, req Request, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   req.Ref,
		ActorID: actorID,
		Action:  action,
		Note:    note,
		At:      s.now().UTC(),
	}); err != nil {
		s.logger.Warn("record transfer approval", slog.String("action", string(action)), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, req Request, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["ref"] = req.Ref.String()
	meta["status"] = string(req.Status)
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   shared.AuditEntityTransferRequest,
		EntityID: strconv.FormatInt(req.ID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit transfer request", slog.String("action", action), slog.Any("error", err))
	}
}
