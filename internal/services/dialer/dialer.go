package dialer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/maane-ai/assist-service/internal/config"
	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	promptsvc "github.com/maane-ai/assist-service/internal/services/prompt"
	"github.com/maane-ai/assist-service/pkg/logger"
	"github.com/maane-ai/assist-service/pkg/redis"
)

// sidMappingTTL bounds how long the callSID → slot mapping survives. Twice
// the max call length covers delayed status callbacks.
const sidMappingTTLFactor = 2

// Dialer places outbound calls under per-tenant concurrency limits. Jobs
// wait in a FIFO queue; a worker drains each tenant's queue only while it
// can hold a semaphore slot, and terminal Twilio status callbacks free the
// slot and wake the worker.
type Dialer struct {
	cfg      *config.AssistConfig
	sem      *Semaphore
	queue    *Queue
	repos    repository.RepositoryManager
	resolver *promptsvc.Resolver
	redisSvc *redis.Service
	twilio   *twilio.RestClient
	cron     *cron.Cron

	kick chan struct{}
}

// New creates the outbound dialer.
func New(cfg *config.AssistConfig, redisSvc *redis.Service, repos repository.RepositoryManager, resolver *promptsvc.Resolver) *Dialer {
	return &Dialer{
		cfg:      cfg,
		sem:      NewSemaphore(redisSvc),
		queue:    NewQueue(redisSvc, cfg.DialQueueMax),
		repos:    repos,
		resolver: resolver,
		redisSvc: redisSvc,
		twilio: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		}),
		cron: cron.New(),
		kick: make(chan struct{}, 1),
	}
}

// Start launches the drain worker and the stale-slot reaper.
func (d *Dialer) Start(ctx context.Context) error {
	go d.workerLoop(ctx)

	if _, err := d.cron.AddFunc("@every 1m", func() { d.reapStaleSlots(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule slot reaper: %w", err)
	}
	d.cron.Start()

	logger.Base().Info("outbound dialer started",
		zap.Int("queue_max", d.cfg.DialQueueMax),
		zap.Duration("max_call_length", d.cfg.DialMaxCallLength))
	return nil
}

// Stop halts the reaper. The worker loop exits with its context.
func (d *Dialer) Stop() {
	d.cron.Stop()
}

// Enqueue queues an outbound call for the tenant and wakes the worker.
func (d *Dialer) Enqueue(ctx context.Context, tenantID, phone, leadID string) (*domain.DialJob, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, errors.New("phone is required")
	}

	// Resolver lookup also rejects unknown and disabled tenants.
	tenant, err := d.resolver.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.CallsEnabled {
		return nil, fmt.Errorf("%w: calls for %s", promptsvc.ErrChannelOff, tenantID)
	}

	job := &domain.DialJob{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Phone:    phone,
		LeadID:   leadID,
		QueuedAt: time.Now(),
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		return nil, err
	}

	d.Kick()
	logger.Base().Info("dial job queued",
		zap.String("tenant_id", tenantID),
		zap.String("job_id", job.ID))
	return job, nil
}

// Kick wakes the worker without blocking.
func (d *Dialer) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// QueueLength returns the tenant's pending job count.
func (d *Dialer) QueueLength(ctx context.Context, tenantID string) (int, error) {
	return d.queue.Len(ctx, tenantID)
}

// ActiveCalls returns the tenant's held slot count.
func (d *Dialer) ActiveCalls(ctx context.Context, tenantID string) (int, error) {
	return d.sem.Held(ctx, tenantID)
}

// HandleCallStatus applies a Twilio status callback: the call record is
// updated, and a terminal status releases the dialer slot and wakes the
// worker so the next queued job dispatches.
func (d *Dialer) HandleCallStatus(ctx context.Context, callSID, status string) error {
	if _, err := d.repos.CallRecord().UpdateStatus(ctx, callSID, status); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		// Inbound calls have no record created by the dialer; ignore.
	}

	if !domain.IsTerminalCallStatus(status) {
		return nil
	}

	tenantID, jobID, err := d.lookupSlot(ctx, callSID)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return nil // not a dialer-initiated call
		}
		return err
	}

	released, err := d.sem.Release(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if released {
		logger.Base().Info("dial slot released",
			zap.String("tenant_id", tenantID),
			zap.String("call_sid", callSID),
			zap.String("status", status))
		d.Kick()
	}
	return nil
}

// workerLoop drains queues whenever kicked, with a ticker as backstop for
// missed kicks (e.g. a release processed by another instance).
func (d *Dialer) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
		case <-ticker.C:
		}
		d.drainOnce(ctx)
	}
}

// drainOnce dispatches queued jobs for every pending tenant until each hits
// its slot limit or empties its queue.
func (d *Dialer) drainOnce(ctx context.Context) {
	tenants, err := d.queue.PendingTenants(ctx)
	if err != nil {
		logger.Base().Error("failed to list pending dial tenants", zap.Error(err))
		return
	}

	for _, tenantID := range tenants {
		tenant, err := d.resolver.Tenant(ctx, tenantID)
		if err != nil {
			logger.Base().Warn("skipping dial queue for unknown tenant",
				zap.String("tenant_id", tenantID), zap.Error(err))
			continue
		}

		limit := tenant.DialLimit
		if limit <= 0 {
			limit = d.cfg.DialDefaultLimit
		}

		for {
			// Pop-and-acquire is one atomic script, so a concurrent worker
			// on another instance can never pop a job it has no slot for
			// and push it back out of order.
			job, err := d.queue.DequeueWithSlot(ctx, d.sem, tenantID, limit)
			if err != nil {
				logger.Base().Error("failed to dequeue dial job",
					zap.String("tenant_id", tenantID), zap.Error(err))
				break
			}
			if job == nil {
				break // queue empty or tenant at its limit
			}

			if err := d.placeCall(ctx, tenant, job); err != nil {
				logger.Base().Error("failed to place outbound call",
					zap.String("tenant_id", tenantID),
					zap.String("job_id", job.ID),
					zap.Error(err))
				if _, relErr := d.sem.Release(ctx, tenantID, job.ID); relErr != nil {
					logger.Base().Error("failed to release slot after dial failure", zap.Error(relErr))
				}
			}
		}
	}
}

// placeCall creates the Twilio call and records it. The slot stays held
// until a terminal status callback arrives for the returned call SID.
func (d *Dialer) placeCall(ctx context.Context, tenant *domain.Tenant, job *domain.DialJob) error {
	from := tenant.PhoneNumber
	if from == "" {
		from = d.cfg.TwilioFromNumber
	}

	answerQuery := url.Values{"tenant_id": {tenant.TenantID}}
	answerURL := d.cfg.PublicBaseURL + "/twilio/voice/answer?" + answerQuery.Encode()
	statusURL := d.cfg.PublicBaseURL + "/twilio/voice/status"

	params := &api.CreateCallParams{}
	params.SetTo(job.Phone)
	params.SetFrom(from)
	params.SetUrl(answerURL)
	params.SetStatusCallback(statusURL)
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	params.SetTimeout(30)

	resp, err := d.twilio.Api.CreateCall(params)
	if err != nil {
		return fmt.Errorf("twilio create call: %w", err)
	}
	if resp.Sid == nil {
		return errors.New("twilio create call returned no SID")
	}
	callSID := *resp.Sid

	if err := d.storeSlotMapping(ctx, callSID, tenant.TenantID, job.ID); err != nil {
		return err
	}

	if _, err := d.repos.CallRecord().Create(ctx, &domain.CallRecord{
		TenantID:  tenant.TenantID,
		CallSID:   callSID,
		Phone:     job.Phone,
		Direction: domain.CallDirectionOutbound,
		Status:    domain.CallStatusInitiated,
	}); err != nil {
		logger.Base().Error("failed to persist outbound call record",
			zap.String("call_sid", callSID), zap.Error(err))
	}

	logger.Base().Info("outbound call placed",
		zap.String("tenant_id", tenant.TenantID),
		zap.String("job_id", job.ID),
		zap.String("call_sid", callSID))
	return nil
}

// reapStaleSlots frees slots whose calls never produced a terminal status
// within the max call length.
func (d *Dialer) reapStaleSlots(ctx context.Context) {
	tenants, err := d.repos.Tenant().GetAll(ctx, false)
	if err != nil {
		logger.Base().Error("slot reaper failed to list tenants", zap.Error(err))
		return
	}

	for _, tenant := range tenants {
		freed, err := d.sem.ReapStale(ctx, tenant.TenantID, d.cfg.DialMaxCallLength)
		if err != nil {
			logger.Base().Error("slot reaper failed",
				zap.String("tenant_id", tenant.TenantID), zap.Error(err))
			continue
		}
		if len(freed) > 0 {
			logger.Base().Warn("reaped stale dial slots",
				zap.String("tenant_id", tenant.TenantID),
				zap.Strings("members", freed))
			d.Kick()
		}
	}
}

func (d *Dialer) storeSlotMapping(ctx context.Context, callSID, tenantID, jobID string) error {
	key := d.redisSvc.Key(redis.DialSlotStamp, "sid:"+callSID)
	value := tenantID + "|" + jobID
	ttl := d.cfg.DialMaxCallLength * sidMappingTTLFactor
	if err := d.redisSvc.SetValue(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("failed to store call slot mapping: %w", err)
	}
	return nil
}

func (d *Dialer) lookupSlot(ctx context.Context, callSID string) (tenantID, jobID string, err error) {
	key := d.redisSvc.Key(redis.DialSlotStamp, "sid:"+callSID)
	value, err := d.redisSvc.GetValue(ctx, key)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(value, "|", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed slot mapping for %s: %q", callSID, value)
	}
	return parts[0], parts[1], nil
}
