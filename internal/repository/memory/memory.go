package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/garnizeh/feedback/pkg/models"
	"github.com/garnizeh/feedback/pkg/repository"
)

// Store keeps feedback and users in process memory. State is lost on restart.
type Store struct {
	mu sync.RWMutex

	feedback      map[int64]models.Feedback
	feedbackOrder []int64
	nextFeedback  int64

	users     map[int64]models.User
	userOrder []int64
	nextUser  int64

	now      func() time.Time
	logger   *slog.Logger
	withSeed bool
}

var _ repository.Storage = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSeed pre-populates the store with a few example feedback rows.
func WithSeed() Option {
	return func(s *Store) { s.withSeed = true }
}

func New(opts ...Option) *Store {
	s := &Store{
		feedback:     make(map[int64]models.Feedback),
		nextFeedback: 1,
		users:        make(map[int64]models.User),
		nextUser:     1,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.withSeed {
		s.seed()
	}
	return s
}

func (s *Store) Kind() string { return "memory" }

// stamp returns the creation time at the precision the SQL store keeps.
func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) Close() error { return nil }

func (s *Store) seed() {
	samples := []struct {
		in  models.FeedbackInput
		age time.Duration
	}{
		{models.FeedbackInput{Name: "John Doe", Email: "john@example.com", Rating: 5, Comment: "Excellent service! Very impressed with the quality."}, 2 * time.Hour},
		{models.FeedbackInput{Name: "Sarah Wilson", Email: "sarah@example.com", Rating: 4, Comment: "Great experience overall. Would recommend to others."}, 9 * time.Hour},
		{models.FeedbackInput{Name: "Mike Johnson", Rating: 3, Comment: "Good but could be improved in some areas."}, 17 * time.Hour},
	}

	ip, ua := "127.0.0.1", "Sample User Agent"
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		s.insertLocked(sample.in, &ip, &ua, s.stamp().Add(-sample.age))
	}
	s.logger.Debug("seeded memory store", slog.Int("count", len(samples)))
}

func (s *Store) GetFeedback(ctx context.Context) ([]models.Feedback, error) {
	s.mu.RLock()
	out := make([]models.Feedback, 0, len(s.feedbackOrder))
	for _, id := range s.feedbackOrder {
		out = append(out, copyFeedback(s.feedback[id]))
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) GetFeedbackByID(ctx context.Context, id int64) (*models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.feedback[id]
	if !ok {
		return nil, nil
	}
	f = copyFeedback(f)
	return &f, nil
}

func (s *Store) CreateFeedback(ctx context.Context, in models.FeedbackInput, ipAddress, userAgent *string) (*models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.insertLocked(in, ipAddress, userAgent, s.stamp())
	f = copyFeedback(f)
	return &f, nil
}

func (s *Store) insertLocked(in models.FeedbackInput, ipAddress, userAgent *string, ts time.Time) models.Feedback {
	id := s.nextFeedback
	s.nextFeedback++

	f := models.Feedback{
		ID:        id,
		Name:      in.Name,
		Email:     in.EmailOrNil(),
		Rating:    in.Rating,
		Comment:   in.Comment,
		Timestamp: ts,
		IPAddress: cloneString(ipAddress),
		UserAgent: cloneString(userAgent),
	}
	s.feedback[id] = f
	s.feedbackOrder = append(s.feedbackOrder, id)
	return f
}

func (s *Store) UpdateFeedback(ctx context.Context, id int64, patch models.FeedbackPatch) (*models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feedback[id]
	if !ok {
		return nil, nil
	}
	f = copyFeedback(f)
	patch.ApplyTo(&f)
	s.feedback[id] = f

	f = copyFeedback(f)
	return &f, nil
}

func (s *Store) DeleteFeedback(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feedback[id]; !ok {
		return false, nil
	}
	delete(s.feedback, id)
	for i, v := range s.feedbackOrder {
		if v == id {
			s.feedbackOrder = append(s.feedbackOrder[:i], s.feedbackOrder[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username }), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email }), nil
}

func (s *Store) findUser(match func(models.User) bool) *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.userOrder {
		if u := s.users[id]; match(u) {
			return &u
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, in models.UserInput) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// same unique constraints as the users table
	for _, u := range s.users {
		if u.Username == in.Username || u.Email == in.Email {
			return nil, repository.ErrDuplicate
		}
	}

	id := s.nextUser
	s.nextUser++
	u := models.User{
		ID:        id,
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		CreatedAt: s.stamp(),
	}
	s.users[id] = u
	s.userOrder = append(s.userOrder, id)
	return &u, nil
}

func copyFeedback(f models.Feedback) models.Feedback {
	f.Email = cloneString(f.Email)
	f.IPAddress = cloneString(f.IPAddress)
	f.UserAgent = cloneString(f.UserAgent)
	return f
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
