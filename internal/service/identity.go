package service

import (
	"context"
	"sort"
	"time"

	"github.com/emrgen/identity/internal/metrics"
	"github.com/emrgen/identity/internal/model"
	"github.com/emrgen/identity/internal/queue"
	"github.com/emrgen/identity/internal/store"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Locker serialises resolutions that share an identifying value.
type Locker interface {
	// Lock blocks until every key is held and returns the release func.
	Lock(ctx context.Context, keys []string) (func(), error)
}

// NopLocker takes no locks.
type NopLocker struct{}

func (NopLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	return func() {}, nil
}

// IdentifyRequest carries the contact evidence of one request. Nil and
// empty values are both treated as absent.
type IdentifyRequest struct {
	Email       *string
	PhoneNumber *string
}

type Option func(*IdentityService)

// WithRetrier replaces the default retry policy.
func WithRetrier(r *Retrier) Option {
	return func(s *IdentityService) { s.retrier = r }
}

// WithLocker enables the per-identity critical section.
func WithLocker(l Locker) Option {
	return func(s *IdentityService) { s.locker = l }
}

// WithQueue publishes contact events after each committed change.
func WithQueue(q queue.ContactQueue) Option {
	return func(s *IdentityService) { s.queue = q }
}

// WithAttemptTimeout bounds each transaction attempt, connection wait included.
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *IdentityService) { s.attemptTimeout = d }
}

// IdentityService is the entry point for identity resolution.
type IdentityService struct {
	resolver       *Resolver
	retrier        *Retrier
	locker         Locker
	queue          queue.ContactQueue
	attemptTimeout time.Duration
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(store store.Store, opts ...Option) *IdentityService {
	service := &IdentityService{
		resolver: NewResolver(store),
		retrier:  NewRetrier(DefaultRetryAttempts, DefaultRetryDelay),
		locker:   NopLocker{},
		queue:    queue.NewNopQueue(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// Identify validates the request and resolves it to a consolidated view.
func (s *IdentityService) Identify(ctx context.Context, req *IdentifyRequest) (*model.ContactView, error) {
	email := normalize(req.Email)
	phone := normalize(req.PhoneNumber)
	if email == nil && phone == nil {
		return nil, status.Error(codes.InvalidArgument, ErrMissingIdentity.Error())
	}

	res, err := s.resolve(ctx, email, phone)
	if err != nil {
		return nil, err
	}

	return res.View, nil
}

// resolve commits under the identity lock, then reads the view unlocked.
// Each phase retries on its own so a failed read never re-runs a committed
// transaction.
func (s *IdentityService) resolve(ctx context.Context, email, phone *string) (*Resolution, error) {
	start := time.Now()
	defer func() {
		metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	}()

	unlock, err := s.locker.Lock(ctx, lockKeys(email, phone))
	if err != nil {
		return nil, err
	}

	var res *Resolution
	err = s.retry(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.resolver.Commit(ctx, email, phone)
		return err
	})
	unlock()
	if err != nil {
		logrus.Errorf("identity resolution failed: %v", err)
		return nil, err
	}

	metrics.ResolutionsTotal.WithLabelValues(string(res.Outcome)).Inc()

	err = s.retry(ctx, func(ctx context.Context) error {
		return s.resolver.ReadView(ctx, res)
	})
	s.publish(ctx, res)
	if err != nil {
		logrus.WithField("primary", res.primaryID).Errorf("resolution %s committed but view read failed: %v", res.Outcome, err)
		return nil, err
	}

	return res, nil
}

// retry runs fn under the retry policy, each attempt bounded by attemptTimeout.
func (s *IdentityService) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		if s.attemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
			defer cancel()
		}
		return fn(ctx)
	})
}

// publish runs after commit, so a failed publish is only logged.
func (s *IdentityService) publish(ctx context.Context, res *Resolution) {
	var kind queue.EventType
	switch res.Outcome {
	case OutcomeCreated:
		kind = queue.EventContactCreated
	case OutcomeAttached:
		kind = queue.EventContactAttached
	case OutcomeMerged:
		kind = queue.EventContactMerged
	default:
		return
	}

	event := queue.NewContactEvent(kind, res.primaryID, res.View, res.Merged)
	if err := s.queue.Publish(ctx, event); err != nil {
		logrus.WithField("event", event.ID).Errorf("failed to publish contact event: %v", err)
	}
}

func normalize(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

// lockKeys names the identity values of a request in a stable order so two
// requests sharing a value always contend on the same key first.
func lockKeys(email, phone *string) []string {
	keys := make([]string, 0, 2)
	if email != nil {
		keys = append(keys, "identity:email:"+*email)
	}
	if phone != nil {
		keys = append(keys, "identity:phone:"+*phone)
	}
	sort.Strings(keys)

	return keys
}
