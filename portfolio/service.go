package portfolio

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/deposit"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
	"github.com/warp/payout-engine/schedule"
	"go.uber.org/zap"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service handles approval, payment and tick events.
type Service struct {
	store     TxStore
	plans     *factory.PlanFactory
	deposits  *deposit.Engine
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	retention time.Duration
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.newID = fn } }

// WithPenalty sets the late-installment penalty.
func WithPenalty(amount decimal.Decimal) Option {
	return func(s *Service) { s.deposits = deposit.NewEngine(amount) }
}

// WithRejectedRetention sets how long rejected customers are kept.
func WithRejectedRetention(d time.Duration) Option { return func(s *Service) { s.retention = d } }

func NewService(store TxStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		plans:     factory.NewPlanFactory(),
		deposits:  deposit.NewEngine(deposit.DefaultPenalty),
		log:       logger,
		now:       time.Now,
		newID:     uuid.NewString,
		retention: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// Now is the service clock, for callers that stamp events.
func (s *Service) Now() time.Time { return s.clock() }

// =============================================================================
// CATALOG
// =============================================================================

// RegisterAgent adds or replaces an agent. Parent links are not checked for
// cycles here; a cascade through a cycle fails when it happens.
func (s *Service) RegisterAgent(ctx context.Context, a commission.AgentNode) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		agents, err := tx.ListAgents(ctx)
		if err != nil {
			return err
		}
		merged := make([]commission.AgentNode, 0, len(agents)+1)
		for _, existing := range agents {
			if existing.ID != a.ID {
				merged = append(merged, existing)
			}
		}
		if _, err := commission.NewForest(append(merged, a)); err != nil {
			return err
		}
		return tx.SaveAgent(ctx, a)
	})
}

// DefinePlan validates a plan definition and stores it. Redefining an
// existing plan keeps its catalog position.
func (s *Service) DefinePlan(ctx context.Context, kind PlanKind, configJSON string) (PlanRecord, error) {
	var id, name string
	active := true
	switch kind {
	case KindInvestment:
		p, err := s.plans.ParsePlan(configJSON)
		if err != nil {
			return PlanRecord{}, err
		}
		id, name = string(p.ID), p.Name
	case KindRD:
		p, err := s.plans.ParseRDPlan(configJSON)
		if err != nil {
			return PlanRecord{}, err
		}
		id, name = string(p.ID), p.Name
	case KindBonus:
		p, err := s.plans.ParseBonusPlan(configJSON)
		if err != nil {
			return PlanRecord{}, err
		}
		id, name, active = string(p.ID), p.Name, p.Active
	case KindGift:
		p, err := s.plans.ParseGiftPlan(configJSON)
		if err != nil {
			return PlanRecord{}, err
		}
		id, name, active = string(p.ID), p.Name, p.Active
	default:
		return PlanRecord{}, generic.Invalid("kind", "unknown plan kind "+string(kind))
	}

	now := s.clock()
	rec := PlanRecord{ID: id, Kind: kind, Name: name, ConfigJSON: configJSON, Active: active, CreatedAt: now, UpdatedAt: now}
	err := s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetPlan(ctx, kind, id)
		if err != nil {
			return err
		}
		if existing != nil {
			rec.Position = existing.Position
			rec.CreatedAt = existing.CreatedAt
		} else {
			all, err := tx.ListPlans(ctx, kind)
			if err != nil {
				return err
			}
			rec.Position = len(all)
		}
		return tx.SavePlan(ctx, rec)
	})
	if err != nil {
		return PlanRecord{}, err
	}
	s.log.Info("plan defined", zap.String("kind", string(kind)), zap.String("plan_id", id))
	return rec, nil
}

// =============================================================================
// INVESTMENTS
// =============================================================================

// CreateCustomer records a pending investment.
func (s *Service) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if !c.Amount.IsPositive() {
		return Customer{}, generic.Invalid("investment_amount", "must be positive")
	}
	if c.InvestmentDate.IsZero() {
		return Customer{}, generic.Invalid("investment_date", "is required")
	}
	plan, err := s.store.GetPlan(ctx, KindInvestment, string(c.PlanID))
	if err != nil {
		return Customer{}, err
	}
	if plan == nil {
		return Customer{}, generic.NotFound("plan", string(c.PlanID))
	}

	if c.ID == "" {
		c.ID = generic.CustomerID(s.newID())
	}
	now := s.clock()
	c.Status = StatusPending
	c.ApprovedAt = nil
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// RejectCustomer marks a pending investment rejected. Rejected customers
// are purged by PurgeRejected once past the retention window.
func (s *Service) RejectCustomer(ctx context.Context, id generic.CustomerID) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return generic.NotFound("customer", string(id))
		}
		if c.Status == StatusApproved {
			return generic.Invalid("status", "approved investments cannot be rejected")
		}
		c.Status = StatusRejected
		c.UpdatedAt = s.clock()
		return tx.SaveCustomer(ctx, *c)
	})
}

// Approval is everything an investment approval produced.
type Approval struct {
	Customer    Customer
	Obligations []schedule.Obligation
	Commissions []commission.Obligation
	Grants      []rewards.Grant
}

// ApproveInvestment generates the payout schedule, cascades commission on
// the principal dated at approval, and evaluates the agent's bonus plans for
// the investment month. A second approval fails with duplicate_schedule.
func (s *Service) ApproveInvestment(ctx context.Context, id generic.CustomerID, approvedAt time.Time) (Approval, error) {
	approvedAt = approvedAt.UTC()
	var out Approval

	err := s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return generic.NotFound("customer", string(id))
		}
		if c.Status == StatusRejected {
			return generic.Invalid("status", "rejected investments cannot be approved")
		}
		plan, err := s.investmentPlan(ctx, tx, c.PlanID)
		if err != nil {
			return err
		}
		existing, err := tx.CountObligations(ctx, c.ID)
		if err != nil {
			return err
		}

		obs, err := schedule.Generate(investmentOf(*c, plan), existing)
		if err != nil {
			return err
		}
		for i := range obs {
			obs[i].ID = s.newID()
		}
		if err := tx.InsertObligations(ctx, obs); err != nil {
			return err
		}

		var coms []commission.Obligation
		if c.AgentID != "" {
			forest, err := s.forest(ctx, tx)
			if err != nil {
				return err
			}
			coms, err = commission.Cascade(forest, commission.Trigger{
				AgentID:    c.AgentID,
				CustomerID: c.ID,
				Amount:     c.Amount,
				PayoutDate: generic.DateOf(approvedAt),
				Source:     commission.SourceInvestment,
				SourceRef:  string(c.ID),
			})
			if err != nil {
				return err
			}
			for i := range coms {
				coms[i].ID = s.newID()
			}
			if err := tx.InsertCommissions(ctx, coms); err != nil {
				return err
			}
		}

		c.Status = StatusApproved
		c.ApprovedAt = &approvedAt
		c.UpdatedAt = approvedAt
		if err := tx.SaveCustomer(ctx, *c); err != nil {
			return err
		}

		grants, err := s.bonusesForAgent(ctx, tx, *c)
		if err != nil {
			return err
		}

		out = Approval{Customer: *c, Obligations: obs, Commissions: coms, Grants: grants}
		return nil
	})
	if err != nil {
		s.log.Warn("investment approval refused", zap.String("customer_id", string(id)), zap.Error(err))
		return Approval{}, err
	}

	s.log.Info("investment approved",
		zap.String("customer_id", string(id)),
		zap.Int("obligations", len(out.Obligations)),
		zap.Int("commissions", len(out.Commissions)),
		zap.Int("grants", len(out.Grants)),
	)
	return out, nil
}

// PayObligation marks a payout obligation paid at paidAt.
func (s *Service) PayObligation(ctx context.Context, id string, paidAt time.Time, method generic.PaymentMethod, reference string) (schedule.Obligation, error) {
	var out schedule.Obligation
	err := s.store.WithTx(ctx, func(tx Store) error {
		o, err := tx.GetObligation(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return generic.NotFound("obligation", id)
		}
		paid, err := schedule.MarkPaid(*o, paidAt, method, reference)
		if err != nil {
			return err
		}
		out = paid
		return tx.MarkObligationPaid(ctx, paid)
	})
	return out, err
}

// PayCommission marks a commission obligation paid at paidAt.
func (s *Service) PayCommission(ctx context.Context, id string, paidAt time.Time, method generic.PaymentMethod, reference string) (commission.Obligation, error) {
	var out commission.Obligation
	err := s.store.WithTx(ctx, func(tx Store) error {
		o, err := tx.GetCommission(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return generic.NotFound("commission", id)
		}
		paid, err := commission.MarkPaid(*o, paidAt, method, reference)
		if err != nil {
			return err
		}
		out = paid
		return tx.MarkCommissionPaid(ctx, paid)
	})
	return out, err
}

// Settlement reports what is still owed on an investment.
func (s *Service) Settlement(ctx context.Context, id generic.CustomerID) (schedule.Settlement, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return schedule.Settlement{}, err
	}
	if c == nil {
		return schedule.Settlement{}, generic.NotFound("customer", string(id))
	}
	plan, err := s.investmentPlan(ctx, s.store, c.PlanID)
	if err != nil {
		return schedule.Settlement{}, err
	}
	obs, err := s.store.ListObligations(ctx, id)
	if err != nil {
		return schedule.Settlement{}, err
	}
	return schedule.Settle(investmentOf(*c, plan), obs), nil
}

// =============================================================================
// RECURRING DEPOSITS
// =============================================================================

// CreateRDCustomer records a pending recurring deposit.
func (s *Service) CreateRDCustomer(ctx context.Context, c RDCustomer) (RDCustomer, error) {
	if !c.InstallmentAmount.IsPositive() {
		return RDCustomer{}, generic.Invalid("installment_amount", "must be positive")
	}
	if c.StartDate.IsZero() {
		return RDCustomer{}, generic.Invalid("investment_date", "is required")
	}
	plan, err := s.store.GetPlan(ctx, KindRD, string(c.PlanID))
	if err != nil {
		return RDCustomer{}, err
	}
	if plan == nil {
		return RDCustomer{}, generic.NotFound("rd plan", string(c.PlanID))
	}

	if c.ID == "" {
		c.ID = generic.CustomerID(s.newID())
	}
	now := s.clock()
	c.Status = StatusPending
	c.ApprovedAt = nil
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.store.SaveRDCustomer(ctx, c); err != nil {
		return RDCustomer{}, err
	}
	return c, nil
}

// RejectDeposit marks a pending recurring deposit rejected.
func (s *Service) RejectDeposit(ctx context.Context, id generic.CustomerID) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetRDCustomer(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return generic.NotFound("rd customer", string(id))
		}
		if c.Status == StatusApproved {
			return generic.Invalid("status", "approved deposits cannot be rejected")
		}
		c.Status = StatusRejected
		c.UpdatedAt = s.clock()
		return tx.SaveRDCustomer(ctx, *c)
	})
}

// ApproveDeposit generates installments and the maturity. Commission is
// deferred to each installment payment.
func (s *Service) ApproveDeposit(ctx context.Context, id generic.CustomerID, approvedAt time.Time) (deposit.Schedule, error) {
	approvedAt = approvedAt.UTC()
	var out deposit.Schedule

	err := s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetRDCustomer(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return generic.NotFound("rd customer", string(id))
		}
		if c.Status == StatusRejected {
			return generic.Invalid("status", "rejected deposits cannot be approved")
		}
		plan, err := s.rdPlan(ctx, tx, c.PlanID)
		if err != nil {
			return err
		}
		existing, err := tx.CountInstallments(ctx, c.ID)
		if err != nil {
			return err
		}

		sched, err := s.deposits.Generate(deposit.Account{
			CustomerID:        c.ID,
			AgentID:           c.AgentID,
			Plan:              plan,
			InstallmentAmount: c.InstallmentAmount,
			StartDate:         c.StartDate,
		}, existing)
		if err != nil {
			return err
		}
		for i := range sched.Installments {
			sched.Installments[i].ID = s.newID()
		}
		sched.Maturity.ID = s.newID()
		if err := tx.InsertDepositSchedule(ctx, sched); err != nil {
			return err
		}

		c.Status = StatusApproved
		c.ApprovedAt = &approvedAt
		c.UpdatedAt = approvedAt
		out = sched
		return tx.SaveRDCustomer(ctx, *c)
	})
	if err != nil {
		s.log.Warn("deposit approval refused", zap.String("rd_customer_id", string(id)), zap.Error(err))
		return deposit.Schedule{}, err
	}

	s.log.Info("deposit approved",
		zap.String("rd_customer_id", string(id)),
		zap.Int("installments", len(out.Installments)),
		zap.String("maturity", out.Maturity.Amount.StringFixed(2)),
	)
	return out, nil
}

// PayInstallment marks an installment paid at paidAt, applying the late penalty
// and the commission cascade in the same transaction.
func (s *Service) PayInstallment(ctx context.Context, id string, paidAt time.Time, method generic.PaymentMethod, reference string) (deposit.PaymentResult, error) {
	var out deposit.PaymentResult

	err := s.store.WithTx(ctx, func(tx Store) error {
		inst, err := tx.GetInstallment(ctx, id)
		if err != nil {
			return err
		}
		if inst == nil {
			return generic.NotFound("installment", id)
		}
		c, err := tx.GetRDCustomer(ctx, inst.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			return generic.NotFound("rd customer", string(inst.CustomerID))
		}
		penalized, err := tx.PenaltyExists(ctx, inst.ID)
		if err != nil {
			return err
		}
		maturity, err := tx.GetMaturity(ctx, inst.CustomerID)
		if err != nil {
			return err
		}
		forest, err := s.forest(ctx, tx)
		if err != nil {
			return err
		}

		res, err := s.deposits.Pay(deposit.Payment{
			Installment:   *inst,
			PaidAt:        paidAt,
			Method:        method,
			Reference:     reference,
			PenaltyExists: penalized,
			Maturity:      maturity,
			Agents:        forest,
			AgentID:       c.AgentID,
		})
		if err != nil {
			return err
		}

		if err := tx.MarkInstallmentPaid(ctx, res.Installment); err != nil {
			return err
		}
		if res.Penalty != nil {
			res.Penalty.ID = s.newID()
			if err := tx.InsertPenalty(ctx, *res.Penalty); err != nil {
				return err
			}
		}
		if res.Maturity != nil {
			if err := tx.UpdateMaturityAmount(ctx, *res.Maturity); err != nil {
				return err
			}
		}
		for i := range res.Commissions {
			res.Commissions[i].ID = s.newID()
		}
		if err := tx.InsertCommissions(ctx, res.Commissions); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		s.log.Warn("installment payment refused", zap.String("installment_id", id), zap.Error(err))
		return deposit.PaymentResult{}, err
	}

	fields := []zap.Field{
		zap.String("installment_id", id),
		zap.Int("commissions", len(out.Commissions)),
	}
	if out.Penalty != nil {
		fields = append(fields, zap.String("penalty", out.Penalty.Amount.StringFixed(2)), zap.String("deducted", out.Deduction.StringFixed(2)))
	}
	s.log.Info("installment paid", fields...)
	return out, nil
}

// =============================================================================
// INCENTIVES & TICKS
// =============================================================================

// RunMonthlyTick evaluates the gift catalog and bonus plans over p and
// persists new grants. Running it again for the same period adds nothing.
func (s *Service) RunMonthlyTick(ctx context.Context, p generic.Period) ([]rewards.Grant, error) {
	var grants []rewards.Grant
	err := s.store.WithTx(ctx, func(tx Store) error {
		customers, err := tx.ListApprovedInPeriod(ctx, p)
		if err != nil {
			return err
		}
		gifts, err := s.giftPlans(ctx, tx)
		if err != nil {
			return err
		}
		bonuses, err := s.bonusPlans(ctx, tx)
		if err != nil {
			return err
		}
		existing, err := tx.ListGrants(ctx, p.Key())
		if err != nil {
			return err
		}

		grants = rewards.Tick(investmentsOf(customers), rewards.Catalog{Gifts: gifts, Bonuses: bonuses}, p, rewards.NewIssued(existing))
		for i := range grants {
			grants[i].ID = s.newID()
		}
		return tx.InsertGrants(ctx, grants)
	})
	if err != nil {
		s.log.Error("monthly tick failed", zap.String("period", p.Key()), zap.Error(err))
		return nil, err
	}
	s.log.Info("monthly tick complete", zap.String("period", p.Key()), zap.Int("grants", len(grants)))
	return grants, nil
}

// FulfilGrant marks a grant rewarded at the given time.
func (s *Service) FulfilGrant(ctx context.Context, id string, at time.Time, method generic.PaymentMethod) (rewards.Grant, error) {
	var out rewards.Grant
	err := s.store.WithTx(ctx, func(tx Store) error {
		g, err := tx.GetGrant(ctx, id)
		if err != nil {
			return err
		}
		if g == nil {
			return generic.NotFound("grant", id)
		}
		done, err := rewards.Fulfil(*g, at, method)
		if err != nil {
			return err
		}
		out = done
		return tx.MarkGrantRewarded(ctx, done)
	})
	return out, err
}

// DeactivateExpiredPlans switches off bonus plans whose validity has ended.
func (s *Service) DeactivateExpiredPlans(ctx context.Context, now time.Time) ([]rewards.BonusPlan, error) {
	var expired []rewards.BonusPlan
	err := s.store.WithTx(ctx, func(tx Store) error {
		plans, err := s.bonusPlans(ctx, tx)
		if err != nil {
			return err
		}
		expired = rewards.Expired(plans, now)
		for _, p := range expired {
			if err := tx.SetPlanActive(ctx, KindBonus, string(p.ID), false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		s.log.Info("bonus plans deactivated", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// PurgeRejected deletes rejected customers whose last update is older than
// the retention window at now.
func (s *Service) PurgeRejected(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.retention)
	n, err := s.store.DeleteRejectedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("rejected customers purged", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// =============================================================================
// LOADERS
// =============================================================================

func (s *Service) forest(ctx context.Context, st Store) (*commission.Forest, error) {
	agents, err := st.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	return commission.NewForest(agents)
}

func (s *Service) investmentPlan(ctx context.Context, st Store, id generic.PlanID) (schedule.Plan, error) {
	rec, err := st.GetPlan(ctx, KindInvestment, string(id))
	if err != nil {
		return schedule.Plan{}, err
	}
	if rec == nil {
		return schedule.Plan{}, generic.NotFound("plan", string(id))
	}
	return s.plans.ParsePlan(rec.ConfigJSON)
}

func (s *Service) rdPlan(ctx context.Context, st Store, id generic.PlanID) (deposit.Plan, error) {
	rec, err := st.GetPlan(ctx, KindRD, string(id))
	if err != nil {
		return deposit.Plan{}, err
	}
	if rec == nil {
		return deposit.Plan{}, generic.NotFound("rd plan", string(id))
	}
	return s.plans.ParseRDPlan(rec.ConfigJSON)
}

func (s *Service) bonusPlans(ctx context.Context, st Store) ([]rewards.BonusPlan, error) {
	recs, err := st.ListPlans(ctx, KindBonus)
	if err != nil {
		return nil, err
	}
	plans := make([]rewards.BonusPlan, 0, len(recs))
	for _, rec := range recs {
		p, err := s.plans.ParseBonusPlan(rec.ConfigJSON)
		if err != nil {
			return nil, err
		}
		p.Active = rec.Active
		plans = append(plans, p)
	}
	return plans, nil
}

func (s *Service) giftPlans(ctx context.Context, st Store) ([]rewards.GiftPlan, error) {
	recs, err := st.ListPlans(ctx, KindGift)
	if err != nil {
		return nil, err
	}
	plans := make([]rewards.GiftPlan, 0, len(recs))
	for _, rec := range recs {
		p, err := s.plans.ParseGiftPlan(rec.ConfigJSON)
		if err != nil {
			return nil, err
		}
		p.Active = rec.Active
		plans = append(plans, p)
	}
	return plans, nil
}

func (s *Service) bonusesForAgent(ctx context.Context, tx Store, c Customer) ([]rewards.Grant, error) {
	period := generic.MonthOf(c.InvestmentDate)
	customers, err := tx.ListApprovedInPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	plans, err := s.bonusPlans(ctx, tx)
	if err != nil {
		return nil, err
	}
	existing, err := tx.ListGrants(ctx, period.Key())
	if err != nil {
		return nil, err
	}

	activity := rewards.ForAgent(rewards.Aggregate(investmentsOf(customers), period), c.AgentID)
	grants := rewards.Bonuses(activity, plans, period, rewards.NewIssued(existing))
	for i := range grants {
		grants[i].ID = s.newID()
	}
	if err := tx.InsertGrants(ctx, grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func investmentOf(c Customer, plan schedule.Plan) schedule.Investment {
	return schedule.Investment{
		CustomerID:     c.ID,
		Principal:      c.Amount,
		InvestmentDate: c.InvestmentDate,
		Terms:          plan.Terms,
	}
}

func investmentsOf(customers []Customer) []rewards.Investment {
	out := make([]rewards.Investment, 0, len(customers))
	for _, c := range customers {
		out = append(out, rewards.Investment{
			CustomerID: c.ID,
			AgentID:    c.AgentID,
			Amount:     c.Amount,
			Date:       c.InvestmentDate,
			Approved:   c.Status == StatusApproved,
		})
	}
	return out
}
