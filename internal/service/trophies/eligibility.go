package trophies

import (
	"context"
	"fmt"

	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
)

// excludeHoldersSQL keeps users who already hold the trophy out of the
// eligible set. This is the only guard against duplicate awards.
const excludeHoldersSQL = "users.id NOT IN (SELECT user_id FROM user_trophies WHERE trophy_id = ?)"

// buildPredicates asks each condition's handler to add its user filter,
// in the trophy's condition order.
func (s *Service) buildPredicates(trophy *models.Trophy) (*query.Builder, error) {
	b := query.NewBuilder()

	for i := range trophy.Conditions {
		cond := &trophy.Conditions[i]

		handler, err := s.catalog.Handler(cond.ConditionType)
		if err != nil {
			return nil, fmt.Errorf("trophy %d condition %d: %w", trophy.ID, cond.ID, err)
		}
		if err := handler.AddUserCondition(cond, b); err != nil {
			return nil, fmt.Errorf("trophy %d condition %d (%s): %w", trophy.ID, cond.ID, cond.ConditionType, err)
		}
	}

	return b, nil
}

// eligibilityQuery is the single source of the predicate composition used
// by both EligibleUsers and CountEligible.
func (s *Service) eligibilityQuery(trophy *models.Trophy) (*query.Builder, error) {
	b, err := s.buildPredicates(trophy)
	if err != nil {
		return nil, err
	}
	b.Add(excludeHoldersSQL, trophy.ID)
	return b, nil
}

// EligibleUsers returns the users who satisfy every condition of the
// trophy and do not hold it yet, ordered by user ID.
func (s *Service) EligibleUsers(ctx context.Context, trophy *models.Trophy) ([]models.User, error) {
	b, err := s.eligibilityQuery(trophy)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Uint("trophy_id", trophy.ID).
		Str("predicates", b.String()).
		Msg("Fetching eligible users")

	users, err := s.userRepo.FindMatching(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("trophy %d: %w", trophy.ID, err)
	}
	return users, nil
}

// CountEligible returns how many users EligibleUsers would return.
func (s *Service) CountEligible(ctx context.Context, trophy *models.Trophy) (int64, error) {
	b, err := s.eligibilityQuery(trophy)
	if err != nil {
		return 0, err
	}

	count, err := s.userRepo.CountMatching(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("trophy %d: %w", trophy.ID, err)
	}
	return count, nil
}
