package campaign

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/marketing-engine/internal/domain"
	"github.com/ignite/marketing-engine/internal/pkg/logger"
	"github.com/ignite/marketing-engine/internal/provider"
	"github.com/ignite/marketing-engine/internal/template"
	"github.com/ignite/marketing-engine/internal/tracking"
)

// AudienceResolver resolves an audience descriptor to concrete recipients.
type AudienceResolver interface {
	Resolve(ctx context.Context, aud domain.Audience) ([]domain.Subscriber, error)
}

// Options control batch dispatch behavior.
type Options struct {
	FromName    string
	FromEmail   string
	BatchSize   int
	MaxInFlight int
	SendTimeout time.Duration
}

// Service implements campaign business logic: lifecycle, preflight, and the
// batch send run. All public methods are safe for concurrent use if the
// underlying repository is concurrency-safe.
type Service struct {
	repo       Repository
	resolver   AudienceResolver
	provider   provider.EmailProvider
	tmpl       *template.Engine
	instrument *tracking.Instrumenter
	opts       Options
	log        *logger.Logger
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, resolver AudienceResolver, p provider.EmailProvider,
	tmpl *template.Engine, instrument *tracking.Instrumenter, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 10
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	return &Service{
		repo:       repo,
		resolver:   resolver,
		provider:   p,
		tmpl:       tmpl,
		instrument: instrument,
		opts:       opts,
		log:        logger.Component("campaign"),
	}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}

	c := &domain.Campaign{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Subject:      input.Subject,
		FromName:     input.FromName,
		FromEmail:    input.FromEmail,
		HTMLContent:  input.HTMLContent,
		PlainContent: input.PlainContent,
		Audience:     input.Audience,
		Status:       domain.CampaignDraft,
	}
	if c.FromName == "" {
		c.FromName = s.opts.FromName
	}
	if c.FromEmail == "" {
		c.FromEmail = s.opts.FromEmail
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// Update modifies mutable campaign fields.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	return s.repo.Update(ctx, id, u)
}

// Delete removes a draft campaign.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Schedule sets a draft campaign to go out at the given time. The
// maintenance runner publishes it once the time passes.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft {
		return ErrInvalidTransition
	}
	return s.repo.Schedule(ctx, id, at)
}

// SendReport summarizes one completed send run.
type SendReport struct {
	CampaignID string                `json:"campaign_id"`
	Recipients int                   `json:"recipients"`
	Delivered  int                   `json:"delivered"`
	Failed     int                   `json:"failed"`
	Status     domain.CampaignStatus `json:"status"`
}

// Send executes a full campaign send: preflight, audience snapshot, batch
// dispatch, finalization. Legal only from draft or scheduled; a second call
// on a sent campaign returns ErrAlreadySent with no state change.
func (s *Service) Send(ctx context.Context, id string) (*SendReport, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Sendable() {
		return nil, ErrAlreadySent
	}

	report := s.Preflight(c)
	if !report.CanSend {
		return nil, fmt.Errorf("%w: %v", ErrPreflightFailed, report.Blockers)
	}

	recipients, err := s.resolver.Resolve(ctx, c.Audience)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	// The conditional transition is the double-send guard: if another call
	// won the race this returns ErrAlreadySent and we stop here.
	if err := s.repo.BeginSending(ctx, id); err != nil {
		return nil, err
	}

	// The campaign is now in sending and must reach sent or failed. A caller
	// hanging up mid-batch cannot be allowed to strand it there, so the
	// dispatch and finalization run detached from the request context.
	ctx = context.WithoutCancel(ctx)

	emails := make([]string, len(recipients))
	for i, r := range recipients {
		emails[i] = r.Email
	}
	if err := s.repo.SaveSnapshot(ctx, id, emails); err != nil {
		s.finalize(ctx, id, domain.CampaignFailed)
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	delivered, failed := s.dispatch(ctx, c, recipients)

	status := domain.CampaignSent
	if delivered == 0 {
		// Provider was unreachable for the whole run.
		status = domain.CampaignFailed
	}
	s.finalize(ctx, id, status)

	s.log.Info("campaign send complete",
		"campaign_id", id, "recipients", len(recipients),
		"delivered", delivered, "failed", failed, "status", string(status))

	return &SendReport{
		CampaignID: id,
		Recipients: len(recipients),
		Delivered:  delivered,
		Failed:     failed,
		Status:     status,
	}, nil
}

// dispatch sends to all recipients in waves of BatchSize, with at most
// MaxInFlight provider calls in the air; each wave is awaited before the
// next starts. A single recipient's failure never aborts the wave.
func (s *Service) dispatch(ctx context.Context, c *domain.Campaign, recipients []domain.Subscriber) (delivered, failed int) {
	var deliveredN, failedN int64

	for start := 0; start < len(recipients); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		wave := recipients[start:end]

		var wg sync.WaitGroup
		sem := make(chan struct{}, s.opts.MaxInFlight)
		for i := range wave {
			sub := wave[i]
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				messageID, err := s.sendOne(ctx, c, sub)
				if err != nil {
					atomic.AddInt64(&failedN, 1)
					s.log.Warn("recipient delivery failed",
						"campaign_id", c.ID, "email", sub.Email, "error", err.Error())
					return
				}
				if err := s.repo.RecordDelivery(ctx, c.ID, sub.Email, messageID); err != nil {
					// Unrecorded deliveries must not inflate the report: no
					// delivered event exists for this recipient.
					atomic.AddInt64(&failedN, 1)
					s.log.Error("record delivery failed",
						"campaign_id", c.ID, "email", sub.Email, "error", err.Error())
					return
				}
				atomic.AddInt64(&deliveredN, 1)
			}()
		}
		wg.Wait()
	}

	return int(deliveredN), int(failedN)
}

// sendOne renders, instruments, and delivers the campaign to one recipient.
// The message ID is minted here so tracking URLs can embed it before the
// provider call.
func (s *Service) sendOne(ctx context.Context, c *domain.Campaign, sub domain.Subscriber) (string, error) {
	bindings := template.RecipientBindings(sub.Email, sub.Name)

	subject, err := s.tmpl.Render(c.Subject, bindings)
	if err != nil {
		return "", fmt.Errorf("render subject: %w", err)
	}
	html, err := s.tmpl.Render(c.HTMLContent, bindings)
	if err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}

	messageID := uuid.New().String()
	if s.instrument != nil {
		html = s.instrument.Instrument(html, messageID, sub.Email)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	if _, err := s.provider.Send(sendCtx, provider.Message{
		FromName:   c.FromName,
		FromEmail:  c.FromEmail,
		To:         sub.Email,
		Subject:    subject,
		HTML:       html,
		Text:       c.PlainContent,
		CampaignID: c.ID,
	}); err != nil {
		return "", err
	}
	return messageID, nil
}

// SendTest delivers the campaign to one address without touching counters or
// events; it only appends to test_sent_to. Provider errors surface to the
// caller, unlike the batch run.
func (s *Service) SendTest(ctx context.Context, id, email string) error {
	if !domain.ValidateEmail(email) {
		return fmt.Errorf("invalid test recipient %q", logger.RedactEmail(email))
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.sendOne(ctx, c, domain.Subscriber{Email: email}); err != nil {
		return fmt.Errorf("test send: %w", err)
	}
	return s.repo.AppendTestRecipient(ctx, id, domain.NormalizeEmail(email))
}

// PublishDue sends every scheduled campaign whose scheduled_at has passed.
// Called by the maintenance runner; per-campaign failures are isolated.
func (s *Service) PublishDue(ctx context.Context) (int, error) {
	due, err := s.repo.ListDueScheduled(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	published := 0
	for _, c := range due {
		if _, err := s.Send(ctx, c.ID); err != nil {
			s.log.Error("scheduled campaign send failed", "campaign_id", c.ID, "error", err.Error())
			continue
		}
		published++
	}
	return published, nil
}

func (s *Service) finalize(ctx context.Context, id string, status domain.CampaignStatus) {
	if err := s.repo.Finalize(ctx, id, status); err != nil {
		s.log.Error("finalize failed", "campaign_id", id, "error", err.Error())
	}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name         string          `json:"name"`
	Subject      string          `json:"subject"`
	FromName     string          `json:"from_name"`
	FromEmail    string          `json:"from_email"`
	HTMLContent  string          `json:"html_content"`
	PlainContent string          `json:"plain_content"`
	Audience     domain.Audience `json:"audience"`
}
