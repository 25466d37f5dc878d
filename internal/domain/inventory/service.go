package inventory

import (
	"context"
	"fmt"
	"time"

	"clinicore/internal/core/apperror"
	appctx "clinicore/internal/core/context"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/tx"
	"clinicore/internal/core/types"
	"clinicore/internal/domain"
	"clinicore/pkg/logger"
)

// Service provides supply and stock ledger operations.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
}

// NewService creates a new inventory service.
func NewService(repo Repository, numGen numerator.Generator, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		numerator: numGen,
		txManager: txManager,
	}
}

// View is the caller-facing state of a supply after an operation.
type View struct {
	SupplyID id.ID          `json:"supplyId"`
	Stock    types.Quantity `json:"stock"`
	Status   SupplyStatus   `json:"status"`
	UnitCost types.Money    `json:"unitCost"`
}

func makeView(s *Supply, now time.Time) View {
	return View{
		SupplyID: s.ID,
		Stock:    s.Stock,
		Status:   s.Status(now),
		UnitCost: s.UnitCost,
	}
}

// CreateInput carries supply creation parameters.
type CreateInput struct {
	Code         string
	Name         string
	Category     *string
	Unit         string
	InitialStock types.Quantity
	MinStock     types.Quantity
	MaxStock     *types.Quantity
	UnitCost     types.Money
	Supplier     *string
	ExpiryDate   *time.Time
}

// CreateSupply registers a supply. A non-zero initial stock is recorded as
// an IN movement so the ledger reconstructs every balance from day one.
func (s *Service) CreateSupply(ctx context.Context, input CreateInput) (*Supply, error) {
	sup := NewSupply(input.Code, input.Name, input.Unit)
	sup.Category = input.Category
	sup.MinStock = input.MinStock
	sup.MaxStock = input.MaxStock
	sup.UnitCost = input.UnitCost
	sup.Supplier = input.Supplier
	sup.ExpiryDate = input.ExpiryDate

	if err := sup.Validate(ctx); err != nil {
		return nil, err
	}
	if input.InitialStock.IsNegative() {
		return nil, apperror.NewValidation("initial stock cannot be negative").
			WithDetail("field", "initialStock")
	}

	if sup.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("SUP"), nil, time.Now())
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		sup.Code = code
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, sup); err != nil {
			return fmt.Errorf("create supply: %w", err)
		}

		if input.InitialStock.IsPositive() {
			unitCost := input.UnitCost
			reason := "initial stock"
			m := &Movement{
				ID:             id.New(),
				SupplyID:       sup.ID,
				Type:           MovementIn,
				Quantity:       input.InitialStock,
				UnitCost:       &unitCost,
				Reason:         &reason,
				ResultingStock: input.InitialStock,
				CreatedBy:      appctx.GetActorID(ctx),
				CreatedAt:      time.Now().UTC(),
			}
			if err := s.repo.AppendMovement(ctx, m); err != nil {
				return fmt.Errorf("append movement: %w", err)
			}

			sup.Stock = input.InitialStock
			sup.Touch()
			if err := s.repo.Update(ctx, sup); err != nil {
				return fmt.Errorf("update supply: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "supply created", "id", sup.ID, "code", sup.Code, "stock", sup.Stock)
	return sup, nil
}

// MovementInput carries stock movement parameters.
type MovementInput struct {
	Type     MovementType
	Quantity types.Quantity

	// Direction is required for ADJUST, ignored otherwise
	Direction *AdjustDirection

	// UnitCost applies the weighted-average update on IN
	UnitCost *types.Money

	Reason *string
}

// ApplyMovement records a ledger entry and updates the materialized stock
// in one transaction. The supply row is locked first, so two concurrent
// withdrawals can never both pass the stock check against a stale balance.
func (s *Service) ApplyMovement(ctx context.Context, supplyID id.ID, input MovementInput) (View, error) {
	if !input.Quantity.IsPositive() {
		return View{}, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}

	switch input.Type {
	case MovementIn, MovementOut, MovementExpired:
	case MovementAdjust:
		if input.Direction == nil {
			return View{}, apperror.NewValidation("adjust movements require a direction").
				WithDetail("field", "direction")
		}
		if *input.Direction != AdjustIncrease && *input.Direction != AdjustDecrease {
			return View{}, apperror.NewValidation("invalid adjust direction").
				WithDetail("field", "direction").
				WithDetail("value", string(*input.Direction))
		}
	default:
		return View{}, apperror.NewValidation("invalid movement type").
			WithDetail("field", "type").
			WithDetail("value", string(input.Type))
	}

	var view View
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sup, err := s.repo.GetForUpdate(ctx, supplyID)
		if err != nil {
			return err
		}

		delta := signedDelta(input.Type, input.Direction, input.Quantity)
		newStock := sup.Stock + delta
		if newStock.IsNegative() {
			return apperror.NewInsufficientStock(supplyID.String(),
				input.Quantity.Float64(), sup.Stock.Float64())
		}

		m := &Movement{
			ID:             id.New(),
			SupplyID:       sup.ID,
			Type:           input.Type,
			Quantity:       input.Quantity,
			Direction:      input.Direction,
			Reason:         input.Reason,
			ResultingStock: newStock,
			CreatedBy:      appctx.GetActorID(ctx),
			CreatedAt:      time.Now().UTC(),
		}

		if input.Type == MovementIn {
			cost := sup.UnitCost
			if input.UnitCost != nil {
				cost = *input.UnitCost
				sup.UnitCost = weightedAverageCost(sup.Stock, sup.UnitCost, input.Quantity, cost)
			}
			// Record the effective cost on the movement for audit.
			m.UnitCost = &cost
		}

		if err := s.repo.AppendMovement(ctx, m); err != nil {
			return fmt.Errorf("append movement: %w", err)
		}

		sup.Stock = newStock
		sup.Touch()
		if err := s.repo.Update(ctx, sup); err != nil {
			return fmt.Errorf("update supply: %w", err)
		}

		view = makeView(sup, time.Now().UTC())
		return nil
	})
	if err != nil {
		return View{}, err
	}

	logger.Info(ctx, "stock movement applied",
		"supply_id", supplyID, "type", input.Type, "quantity", input.Quantity, "stock", view.Stock)
	return view, nil
}

// GetSupply retrieves a supply by ID.
func (s *Service) GetSupply(ctx context.Context, supplyID id.ID) (*Supply, error) {
	return s.repo.GetByID(ctx, supplyID)
}

// GetView returns the stock/status view of a supply.
func (s *Service) GetView(ctx context.Context, supplyID id.ID) (View, error) {
	sup, err := s.repo.GetByID(ctx, supplyID)
	if err != nil {
		return View{}, err
	}
	return makeView(sup, time.Now().UTC()), nil
}

// UpdateSupply edits catalog fields. Stock is excluded; it only moves
// through the ledger.
func (s *Service) UpdateSupply(ctx context.Context, sup *Supply) error {
	if err := sup.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, sup.ID)
		if err != nil {
			return err
		}
		// Direct stock edits are rejected, not silently dropped.
		if sup.Stock != current.Stock {
			return apperror.NewValidation("stock can only change through movements").
				WithDetail("field", "stock")
		}
		sup.Touch()
		return s.repo.Update(ctx, sup)
	})
}

// ListSupplies retrieves supplies with filtering.
func (s *Service) ListSupplies(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supply], error) {
	return s.repo.List(ctx, filter)
}

// FindBelowMinimum retrieves supplies needing reorder.
func (s *Service) FindBelowMinimum(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supply], error) {
	return s.repo.FindBelowMinimum(ctx, filter)
}

// ListMovements retrieves ledger entries.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[*Movement], error) {
	return s.repo.ListMovements(ctx, filter)
}

// RebuildStock replays the full ledger and rewrites the materialized
// balance. Audit/repair tool; returns the replayed balance.
func (s *Service) RebuildStock(ctx context.Context, supplyID id.ID) (types.Quantity, error) {
	var balance types.Quantity
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sup, err := s.repo.GetForUpdate(ctx, supplyID)
		if err != nil {
			return err
		}

		movements, err := s.repo.GetAllMovements(ctx, supplyID)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}

		balance = 0
		for _, m := range movements {
			balance += m.SignedDelta()
		}

		if sup.Stock != balance {
			logger.Warn(ctx, "materialized stock drifted from ledger",
				"supply_id", supplyID, "stored", sup.Stock, "replayed", balance)
			sup.Stock = balance
			sup.Touch()
			return s.repo.Update(ctx, sup)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// weightedAverageCost blends the existing holding cost with an incoming
// batch cost, weighted by quantity.
func weightedAverageCost(stock types.Quantity, currentCost types.Money, inQty types.Quantity, inCost types.Money) types.Money {
	total := stock + inQty
	if !total.IsPositive() {
		return inCost
	}
	existingValue := currentCost.Mul(stock.Decimal())
	incomingValue := inCost.Mul(inQty.Decimal())
	return existingValue.Add(incomingValue).DivRound(total.Decimal(), 4)
}
