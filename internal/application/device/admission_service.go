package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/domain/identity"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/bizops/backend/internal/infrastructure/logger"
	"github.com/bizops/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Outcome is how an admission check ended
type Outcome string

const (
	OutcomeAdmitted Outcome = "admitted"
	OutcomeDenied   Outcome = "denied"
	OutcomeBypassed Outcome = "bypassed"
	OutcomeFailOpen Outcome = "fail_open" // store failed; admitted anyway
	OutcomeDeferred Outcome = "deferred"  // tenant data missing; no decision rendered
)

// Allows reports whether the installation may render the application
func (o Outcome) Allows() bool {
	switch o {
	case OutcomeAdmitted, OutcomeBypassed, OutcomeFailOpen:
		return true
	default:
		return false
	}
}

// Stage names the registry step of an admission check
type Stage string

const (
	StageRegistering        Stage = "registering"
	StageCounting           Stage = "counting"
	StageEvaluatingEviction Stage = "evaluating_eviction"
)

// StageError is a registry failure tagged with the step it happened in
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CheckInput identifies the installation asking to be admitted
type CheckInput struct {
	TenantID    uuid.UUID
	PrincipalID uuid.UUID
	Identity    device.Identity
}

// Decision is the result of an admission check. Every check ends in one.
type Decision struct {
	Outcome     Outcome
	Allowed     bool
	DeviceID    string
	DeviceType  device.Type
	Plan        identity.TenantPlan
	ActiveCount device.Counts
	Limits      device.Limits
	Error       string // user-facing denial text; empty unless denied
}

// MetricsRecorder receives admission telemetry
type MetricsRecorder interface {
	RecordCheck(ctx context.Context, outcome, deviceType string, elapsed time.Duration)
	RecordFailOpen(ctx context.Context, stage string)
	RecordActiveDevices(ctx context.Context, tenantID uuid.UUID, deviceType string, count int)
}

type nopMetrics struct{}

func (nopMetrics) RecordCheck(context.Context, string, string, time.Duration) {}
func (nopMetrics) RecordFailOpen(context.Context, string) {}
func (nopMetrics) RecordActiveDevices(context.Context, uuid.UUID, string, int) {}

// AdmissionServiceConfig contains configuration for AdmissionService
type AdmissionServiceConfig struct {
	ActivityWindow time.Duration
	Clock          func() time.Time
	Metrics        MetricsRecorder
}

// DefaultAdmissionServiceConfig returns default configuration
func DefaultAdmissionServiceConfig() AdmissionServiceConfig {
	return AdmissionServiceConfig{
		ActivityWindow: device.DefaultActivityWindow,
		Clock:          time.Now,
	}
}

// AdmissionService decides whether an installation may use the application
// under its tenant's device quota.
type AdmissionService struct {
	sessions  device.SessionRepository
	tenants   identity.TenantRepository
	operators identity.OperatorChecker
	metrics   MetricsRecorder
	logger    *zap.Logger

	window time.Duration
	now    func() time.Time
}

// NewAdmissionService creates a new AdmissionService
func NewAdmissionService(
	sessions device.SessionRepository,
	tenants identity.TenantRepository,
	operators identity.OperatorChecker,
	logger *zap.Logger,
	config AdmissionServiceConfig,
) *AdmissionService {
	if config.ActivityWindow <= 0 {
		config.ActivityWindow = device.DefaultActivityWindow
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Metrics == nil {
		config.Metrics = nopMetrics{}
	}
	return &AdmissionService{
		sessions:  sessions,
		tenants:   tenants,
		operators: operators,
		metrics:   config.Metrics,
		logger:    logger,
		window:    config.ActivityWindow,
		now:       config.Clock,
	}
}

// Check runs one admission cycle for the installation. It never returns an
// error: store failures admit the device, missing tenant data defers.
func (s *AdmissionService) Check(ctx context.Context, input CheckInput) *Decision {
	started := time.Now()
	deviceType := string(input.Identity.DeviceType)

	ctx, span := telemetry.StartSpan(ctx, "device_admission", "check",
		attribute.String(telemetry.SpanAttrTenantID, input.TenantID.String()),
		attribute.String(telemetry.SpanAttrDeviceID, input.Identity.DeviceID),
		attribute.String(telemetry.SpanAttrDeviceType, deviceType),
	)
	defer span.End()

	var decision *Decision
	telemetry.WithProfilingLabels(ctx, telemetry.AdmissionLabels(deviceType), func(ctx context.Context) {
		decision = s.check(ctx, input)
	})

	span.SetAttributes(attribute.String(telemetry.SpanAttrOutcome, string(decision.Outcome)))
	s.metrics.RecordCheck(ctx, string(decision.Outcome), deviceType, time.Since(started))
	return decision
}

func (s *AdmissionService) check(ctx context.Context, input CheckInput) *Decision {
	log := s.logger.With(logger.Fields(ctx)...).With(
		zap.String("tenant_id", input.TenantID.String()),
		zap.String("device_id", input.Identity.DeviceID),
		zap.String("device_type", string(input.Identity.DeviceType)),
	)

	decision := &Decision{
		DeviceID:   input.Identity.DeviceID,
		DeviceType: input.Identity.DeviceType,
	}

	if s.isOperator(ctx, input.PrincipalID, log) {
		log.Debug("Device admission bypassed for platform operator")
		return decision.finish(OutcomeBypassed)
	}

	tenant, ok := s.loadTenant(ctx, input.TenantID, log)
	if !ok {
		return decision.finish(OutcomeDeferred)
	}

	decision.Plan = device.EffectivePlan(tenant.Plan)
	decision.Limits = device.LimitsForTenant(tenant)

	if err := s.evaluate(ctx, tenant, input, decision); err != nil {
		return s.failOpen(ctx, decision, err, log)
	}

	if decision.Outcome == OutcomeDenied {
		log.Info("Device admission denied",
			zap.Int("active", decision.ActiveCount.For(decision.DeviceType)),
			zap.Int("limit", decision.Limits.For(decision.DeviceType)),
			zap.String("reason", decision.Error),
		)
	}
	return decision
}

// evaluate runs REGISTERING, COUNTING and EVALUATING_EVICTION in order.
// Store failures come back as *StageError and nothing is retried.
func (s *AdmissionService) evaluate(ctx context.Context, tenant *identity.Tenant, input CheckInput, decision *Decision) error {
	now := s.now().UTC()
	since := device.Window(now, s.window)
	t := input.Identity.DeviceType

	session, err := device.NewSession(tenant.ID, input.PrincipalID, input.Identity, now)
	if err != nil {
		return &StageError{Stage: StageRegistering, Err: err}
	}
	stored, err := s.sessions.Upsert(ctx, session)
	if err != nil {
		return &StageError{Stage: StageRegistering, Err: err}
	}
	if !stored.IsActive {
		decision.Error = device.RevokedMessage
		decision.finish(OutcomeDenied)
		return nil
	}

	counts, err := s.sessions.CountActiveByType(ctx, tenant.ID, since)
	if err != nil {
		return &StageError{Stage: StageCounting, Err: err}
	}
	decision.ActiveCount = counts
	for _, typ := range device.Types {
		s.metrics.RecordActiveDevices(ctx, tenant.ID, string(typ), counts.For(typ))
	}

	limit := decision.Limits.For(t)
	if counts.For(t) <= limit {
		decision.finish(OutcomeAdmitted)
		return nil
	}

	grandfathered, err := s.sessions.FindOldestActive(ctx, tenant.ID, t, since, limit)
	if err != nil {
		return &StageError{Stage: StageEvaluatingEviction, Err: err}
	}
	if device.ContainsDevice(grandfathered, input.Identity.DeviceID) {
		decision.finish(OutcomeAdmitted)
		return nil
	}

	decision.Error = device.DenialMessage(t, limit, tenant.Plan)
	decision.finish(OutcomeDenied)
	return nil
}

func (s *AdmissionService) failOpen(ctx context.Context, decision *Decision, err error, log *zap.Logger) *Decision {
	stage := StageRegistering
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}

	log.Warn("Device admission failed open",
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	s.metrics.RecordFailOpen(ctx, string(stage))

	decision.Error = ""
	return decision.finish(OutcomeFailOpen)
}

func (s *AdmissionService) isOperator(ctx context.Context, principalID uuid.UUID, log *zap.Logger) bool {
	if s.operators == nil || principalID == uuid.Nil {
		return false
	}
	ok, err := s.operators.IsOperator(ctx, principalID)
	if err != nil {
		log.Warn("Operator check failed, applying device quota", zap.Error(err))
		return false
	}
	return ok
}

func (s *AdmissionService) loadTenant(ctx context.Context, tenantID uuid.UUID, log *zap.Logger) (*identity.Tenant, bool) {
	if tenantID == uuid.Nil {
		log.Info("Device admission deferred: principal has no tenant")
		return nil, false
	}

	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			log.Warn("Device admission deferred: tenant not found")
		} else {
			log.Warn("Device admission deferred: failed to load tenant", zap.Error(err))
		}
		return nil, false
	}
	if !tenant.HasPlan() {
		log.Warn("Device admission deferred: tenant has no plan")
		return nil, false
	}
	return tenant, true
}

func (d *Decision) finish(outcome Outcome) *Decision {
	d.Outcome = outcome
	d.Allowed = outcome.Allows()
	return d
}
