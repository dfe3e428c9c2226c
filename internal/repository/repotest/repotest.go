// Package repotest holds the behavioral suite every repository.Storage
// implementation must pass, so the in-memory and SQL stores stay
// interchangeable.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/feedback/pkg/models"
	"github.com/garnizeh/feedback/pkg/repository"
	"github.com/stretchr/testify/require"
)

// Factory builds an empty store stamping records with now.
type Factory func(t *testing.T, now func() time.Time) repository.Storage

// Clock hands out times starting at start, advancing by step on every call.
type Clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{t: start, step: step}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

var epoch = time.Date(2025, 3, 14, 9, 26, 53, 589000, time.UTC)

func ptr[T any](v T) *T { return &v }

// Run executes the storage contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyList", func(t *testing.T) {
		s := newStore(t, NewClock(epoch, time.Second).Now)
		got, err := s.GetFeedback(context.Background())
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	t.Run("CreateThenGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, time.Second).Now)

		in := models.FeedbackInput{Name: "Ann", Email: "ann@example.com", Rating: 5, Comment: "Great!"}
		created, err := s.CreateFeedback(ctx, in, ptr("10.0.0.1"), ptr("curl/8.0"))
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		require.True(t, created.Timestamp.Equal(epoch), "timestamp %v", created.Timestamp)

		got, err := s.GetFeedbackByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, "Ann", got.Name)
		require.Equal(t, ptr("ann@example.com"), got.Email)
		require.Equal(t, 5, got.Rating)
		require.Equal(t, "Great!", got.Comment)
		require.True(t, got.Timestamp.Equal(created.Timestamp))
		require.Equal(t, ptr("10.0.0.1"), got.IPAddress)
		require.Equal(t, ptr("curl/8.0"), got.UserAgent)
	})

	t.Run("NilMetadataStaysNull", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, time.Second).Now)

		created, err := s.CreateFeedback(ctx, models.FeedbackInput{Name: "a", Rating: 1, Comment: "c"}, nil, nil)
		require.NoError(t, err)

		got, err := s.GetFeedbackByID(ctx, created.ID)
		require.NoError(t, err)
		require.Nil(t, got.IPAddress)
		require.Nil(t, got.UserAgent)
		require.Nil(t, got.Email)
	})

	t.Run("IDsStrictlyIncreasing", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, time.Second).Now)

		var last int64
		for range 5 {
			f, err := s.CreateFeedback(ctx, models.FeedbackInput{Name: "n", Rating: 3, Comment: "c"}, nil, nil)
			require.NoError(t, err)
			require.Greater(t, f.ID, last)
			last = f.ID
		}

		// a deleted id is not handed out again
		ok, err := s.DeleteFeedback(ctx, last)
		require.NoError(t, err)
		require.True(t, ok)
		f, err := s.CreateFeedback(ctx, models.FeedbackInput{Name: "n", Rating: 3, Comment: "c"}, nil, nil)
		require.NoError(t, err)
		require.Greater(t, f.ID, last)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, time.Minute).Now)

		var ids []int64
		for _, name := range []string{"first", "second", "third"} {
			f, err := s.CreateFeedback(ctx, models.FeedbackInput{Name: name, Rating: 4, Comment: "c"}, nil, nil)
			require.NoError(t, err)
			ids = append(ids, f.ID)
		}

		got, err := s.GetFeedback(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("ListTiesKeepInsertionOrder", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, 0).Now)

		var ids []int64
		for range 3 {
			f, err := s.CreateFeedback(ctx, models.FeedbackInput{Name: "same", Rating: 2, Comment: "c"}, nil, nil)
			require.NoError(t, err)
			ids = append(ids, f.ID)
		}

		got, err := s.GetFeedback(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, ids, []int64{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t, NewClock(epoch, time.Second).Now)
		got, err := s.GetFeedbackByID(context.Background(), 999999)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, time.Second).Now)

		created, err := s.CreateFeedback(ctx, models.FeedbackInput{Name: "Bob", Email: "bob@example.com", Rating: 2, Comment: "meh"}, ptr("1.1.1.1"), ptr("ua"))
		require.NoError(t, err)

		patch := models.FeedbackPatch{Rating: ptr(4), Comment: ptr("better now")}
		once, err := s.UpdateFeedback(ctx, created.ID, patch)
		require.NoError(t, err)
		require.NotNil(t, once)
		require.Equal(t, 4, once.Rating)
		require.Equal(t, "better now", once.Comment)
		require.Equal(t, "Bob", once.Name)
		require.Equal(t, ptr("bob@example.com"), once.Email)
		require.True(t, once.Timestamp.Equal(created.Timestamp))
		require.Equal(t, ptr("1.1.1.1"), once.IPAddress)

		twice, err := s.UpdateFeedback(ctx, created.ID, patch)
		require.NoError(t, err)
		require.Equal(t, once.Rating, twice.Rating)
		require.Equal(t, once.Comment, twice.Comment)
		require.Equal(t, once.Name, twice.Name)
		require.Equal(t, once.Email, twice.Email)

		cleared, err := s.UpdateFeedback(ctx, created.ID, models.FeedbackPatch{Email: ptr("")})
		require.NoError(t, err)
		require.Nil(t, cleared.Email)

		same, err := s.UpdateFeedback(ctx, created.ID, models.FeedbackPatch{})
		require.NoError(t, err)
		require.NotNil(t, same)
		require.Equal(t, cleared.Rating, same.Rating)
		require.Equal(t, cleared.Comment, same.Comment)

		stored, err := s.GetFeedbackByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, 4, stored.Rating)
		require.Nil(t, stored.Email)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, time.Second).Now)

		got, err := s.UpdateFeedback(ctx, 424242, models.FeedbackPatch{Rating: ptr(3)})
		require.NoError(t, err)
		require.Nil(t, got)

		got, err = s.UpdateFeedback(ctx, 424242, models.FeedbackPatch{})
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, time.Second).Now)

		ok, err := s.DeleteFeedback(ctx, 31337)
		require.NoError(t, err)
		require.False(t, ok)

		f, err := s.CreateFeedback(ctx, models.FeedbackInput{Name: "x", Rating: 1, Comment: "y"}, nil, nil)
		require.NoError(t, err)

		ok, err = s.DeleteFeedback(ctx, f.ID)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := s.GetFeedbackByID(ctx, f.ID)
		require.NoError(t, err)
		require.Nil(t, got)

		ok, err = s.DeleteFeedback(ctx, f.ID)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Users", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, NewClock(epoch, time.Second).Now)

		missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		require.Nil(t, missing)

		u, err := s.CreateUser(ctx, models.UserInput{Username: "alice", Email: "alice@example.com", Password: "opaque"})
		require.NoError(t, err)
		require.NotZero(t, u.ID)
		require.True(t, u.CreatedAt.Equal(epoch))

		byID, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", byID.Username)
		require.Equal(t, "opaque", byID.Password)

		byName, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, u.ID, byName.ID)

		byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, byEmail.ID)

		_, err = s.CreateUser(ctx, models.UserInput{Username: "alice", Email: "other@example.com", Password: "p"})
		require.ErrorIs(t, err, repository.ErrDuplicate)
		_, err = s.CreateUser(ctx, models.UserInput{Username: "bob", Email: "alice@example.com", Password: "p"})
		require.ErrorIs(t, err, repository.ErrDuplicate)

		none, err := s.GetUser(ctx, u.ID+100)
		require.NoError(t, err)
		require.Nil(t, none)
	})
}
