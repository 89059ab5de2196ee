package trophies

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/forum-trophies/internal/clock"
	"github.com/aimd54/forum-trophies/internal/condition"
	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
	"github.com/aimd54/forum-trophies/pkg/logger"
	"github.com/aimd54/forum-trophies/test/mocks"
)

func newMockedService(t *testing.T, trophyRepo *mocks.MockTrophyRepository, userRepo *mocks.MockUserRepository, awardRepo *mocks.MockAwardRepository) *Service {
	t.Helper()

	clk := clock.Fake(testNow)
	reg := condition.NewRegistry()
	require.NoError(t, condition.RegisterDefaults(reg, clk))

	return NewServiceWithInterfaces(condition.NewTrophyCatalog(reg), trophyRepo, userRepo, awardRepo, clk, logger.Nop())
}

func autoTrophy(id uint, conds ...models.TrophyCondition) models.Trophy {
	return models.Trophy{ID: id, Title: "T", AwardAutomatically: true, Conditions: conds}
}

func TestAssignTrophies_ListFailure(t *testing.T) {
	trophyRepo := &mocks.MockTrophyRepository{
		ListAutoAwardableFunc: func(ctx context.Context) ([]models.Trophy, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newMockedService(t, trophyRepo, &mocks.MockUserRepository{}, &mocks.MockAwardRepository{})

	result, err := svc.AssignTrophies(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, result.Awarded)
}

func TestAssignTrophies_FetchFailure(t *testing.T) {
	trophyRepo := &mocks.MockTrophyRepository{
		ListAutoAwardableFunc: func(ctx context.Context) ([]models.Trophy, error) {
			return []models.Trophy{autoTrophy(1, minPosts(1))}, nil
		},
	}
	userRepo := &mocks.MockUserRepository{
		FindMatchingFunc: func(ctx context.Context, b *query.Builder) ([]models.User, error) {
			return nil, errors.New("statement timeout")
		},
	}
	awardRepo := &mocks.MockAwardRepository{}
	svc := newMockedService(t, trophyRepo, userRepo, awardRepo)

	_, err := svc.AssignTrophies(context.Background(), 10)
	require.Error(t, err)
	assert.Empty(t, awardRepo.Awarded)
}

func TestEligibilityQuery_FetchAndCountShareClauses(t *testing.T) {
	var fetched, counted []query.Clause
	userRepo := &mocks.MockUserRepository{
		FindMatchingFunc: func(ctx context.Context, b *query.Builder) ([]models.User, error) {
			fetched = b.Clauses()
			return nil, nil
		},
		CountMatchingFunc: func(ctx context.Context, b *query.Builder) (int64, error) {
			counted = b.Clauses()
			return 0, nil
		},
	}
	svc := newMockedService(t, &mocks.MockTrophyRepository{}, userRepo, &mocks.MockAwardRepository{})

	trophy := autoTrophy(7,
		minPosts(10),
		models.TrophyCondition{ConditionType: condition.TypeState, Data: json.RawMessage(`{"banned":false}`)},
	)

	_, err := svc.EligibleUsers(context.Background(), &trophy)
	require.NoError(t, err)
	_, err = svc.CountEligible(context.Background(), &trophy)
	require.NoError(t, err)

	require.Len(t, fetched, 3)
	assert.Equal(t, fetched, counted)
	assert.Equal(t, "users.post_count >= ?", fetched[0].SQL)
	assert.Equal(t, "users.banned = ?", fetched[1].SQL)
	assert.Equal(t, excludeHoldersSQL, fetched[2].SQL)
	assert.Equal(t, []interface{}{uint(7)}, fetched[2].Args)
}

func TestEligibilityQuery_NoConditionsOnlyExcludesHolders(t *testing.T) {
	var fetched []query.Clause
	userRepo := &mocks.MockUserRepository{
		FindMatchingFunc: func(ctx context.Context, b *query.Builder) ([]models.User, error) {
			fetched = b.Clauses()
			return nil, nil
		},
	}
	svc := newMockedService(t, &mocks.MockTrophyRepository{}, userRepo, &mocks.MockAwardRepository{})

	trophy := autoTrophy(3)
	_, err := svc.EligibleUsers(context.Background(), &trophy)
	require.NoError(t, err)

	require.Len(t, fetched, 1)
	assert.Equal(t, excludeHoldersSQL, fetched[0].SQL)
}

func TestAssignTrophies_AwardOrderAndCap(t *testing.T) {
	trophyRepo := &mocks.MockTrophyRepository{
		ListAutoAwardableFunc: func(ctx context.Context) ([]models.Trophy, error) {
			return []models.Trophy{autoTrophy(1, minPosts(1)), autoTrophy(2, minPosts(1)), autoTrophy(3, minPosts(1))}, nil
		},
	}
	userRepo := &mocks.MockUserRepository{
		FindMatchingFunc: func(ctx context.Context, b *query.Builder) ([]models.User, error) {
			return []models.User{{ID: 10}, {ID: 11}, {ID: 12}}, nil
		},
	}
	awardRepo := &mocks.MockAwardRepository{}
	svc := newMockedService(t, trophyRepo, userRepo, awardRepo)

	result, err := svc.AssignTrophies(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, result.CapReached)
	assert.Equal(t, 2, result.TrophiesProcessed)

	type pair struct{ trophy, user uint }
	var got []pair
	for _, a := range awardRepo.Awarded {
		got = append(got, pair{a.TrophyID, a.UserID})
		assert.Equal(t, testNow, a.Time)
	}
	assert.Equal(t, []pair{{1, 10}, {1, 11}, {1, 12}, {2, 10}}, got)
}

func TestAwardTrophy_UnknownUser(t *testing.T) {
	trophyRepo := &mocks.MockTrophyRepository{
		GetByIDFunc: func(ctx context.Context, id uint) (*models.Trophy, error) {
			return &models.Trophy{ID: id, Title: "Manual"}, nil
		},
	}
	awardRepo := &mocks.MockAwardRepository{}
	svc := newMockedService(t, trophyRepo, &mocks.MockUserRepository{}, awardRepo)

	_, err := svc.AwardTrophy(context.Background(), 5, 1)
	require.Error(t, err)
	assert.Empty(t, awardRepo.Awarded)
}

func TestOutstandingAssignmentCount_CallerCancelDoesNotFailOthers(t *testing.T) {
	trophyRepo := &mocks.MockTrophyRepository{
		ListAutoAwardableFunc: func(ctx context.Context) ([]models.Trophy, error) {
			return []models.Trophy{autoTrophy(1, minPosts(1))}, nil
		},
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var enterOnce sync.Once
	userRepo := &mocks.MockUserRepository{
		CountMatchingFunc: func(ctx context.Context, b *query.Builder) (int64, error) {
			enterOnce.Do(func() { close(entered) })
			<-release
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return 3, nil
		},
	}
	svc := newMockedService(t, trophyRepo, userRepo, &mocks.MockAwardRepository{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.OutstandingAssignmentCount(ctxA)
		errA <- err
	}()
	<-entered

	type outcome struct {
		n   int64
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		n, err := svc.OutstandingAssignmentCount(context.Background())
		resB <- outcome{n, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared count")
	}

	close(release)
	select {
	case got := <-resB:
		require.NoError(t, got.err)
		assert.Equal(t, int64(3), got.n)
	case <-time.After(time.Second):
		t.Fatal("second caller never received the count")
	}
}
