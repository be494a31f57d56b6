package reward

import (
	"context"
	"fmt"
	"strconv"

	"survey_wallet/internal/domain"
	"survey_wallet/internal/ledger"
)

// ListSurveys returns every survey with its questions, oldest first
func (s *Service) ListSurveys(ctx context.Context) ([]domain.Survey, error) {
	var surveys []domain.Survey
	if err := s.store.Read(ctx).Preload("Questions").Order("created_at asc").Order("id asc").Find(&surveys).Error; err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return surveys, nil
}

// AvailableSurveys returns surveys the user has not completed, at most as many
// as the user may still take today, and that remaining allowance.
// An expired window is reset and persisted on the way.
func (s *Service) AvailableSurveys(ctx context.Context, userID uint) ([]domain.Survey, int, error) {
	var user *domain.User
	err := s.store.RunAtomically(ctx, func(tx *ledger.Tx) error {
		u, err := tx.LockUser(userID)
		if err != nil {
			return err
		}
		if rollWindow(&u.SurveyCount, &u.LastSurveyCountReset, s.now()) {
			if err := tx.DB().Model(&domain.User{}).Where("id = ?", u.ID).Updates(map[string]any{
				"survey_count":            0,
				"last_survey_count_reset": u.LastSurveyCountReset,
			}).Error; err != nil {
				return err
			}
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if user.SurveyCount >= s.policy.SurveyLimit {
		return nil, 0, &LimitError{Activity: "survey", NextReset: user.LastSurveyCountReset.Add(Window)}
	}

	left := s.policy.SurveyLimit - user.SurveyCount
	var claimed []string
	if err := s.store.Read(ctx).Model(&domain.RewardClaim{}).
		Where("user_id = ? AND kind = ?", user.ID, domain.RewardSurvey).
		Pluck("subject_key", &claimed).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	query := s.store.Read(ctx).Preload("Questions").Order("created_at asc").Order("id asc").Limit(left)
	ids := make([]uint, 0, len(claimed))
	for _, c := range claimed {
		if id, err := strconv.ParseUint(c, 10, 64); err == nil {
			ids = append(ids, uint(id))
		}
	}
	if len(ids) > 0 {
		query = query.Where("id NOT IN ?", ids)
	}
	var surveys []domain.Survey
	if err := query.Find(&surveys).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return surveys, left, nil
}

// ActivityLimits reports the survey and video allowance of a user
func (s *Service) ActivityLimits(ctx context.Context, userID uint) (*domain.ActivityLimits, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	survey := domain.ActivityWindow{
		CurrentCount: user.SurveyCount,
		TotalCount:   user.SurveyCountTotal,
		Limit:        s.policy.SurveyLimit,
		ResetsAt:     user.LastSurveyCountReset.Add(Window),
	}
	if rollWindow(&survey.CurrentCount, &user.LastSurveyCountReset, now) {
		survey.ResetsAt = now.Add(Window)
	}
	video := domain.ActivityWindow{
		CurrentCount: user.VideoCount,
		TotalCount:   user.VideoCountTotal,
		Limit:        s.policy.VideoLimit,
		ResetsAt:     user.LastVideoCountReset.Add(Window),
	}
	if rollWindow(&video.CurrentCount, &user.LastVideoCountReset, now) {
		video.ResetsAt = now.Add(Window)
	}
	return &domain.ActivityLimits{Survey: survey, Video: video}, nil
}
