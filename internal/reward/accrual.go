// Package reward credits wallets for completed surveys and watched videos.
// Rewards bypass the payment gateway but follow the same atomic discipline as
// callback reconciliation: the credit, its reward transaction and the
// completion record commit together.
package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"survey_wallet/internal/domain"
	"survey_wallet/internal/ledger"
	"survey_wallet/internal/payment"
	"survey_wallet/internal/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Window is the length of the rolling activity day
const Window = 24 * time.Hour

// Policy holds the daily limits and reward units
type Policy struct {
	SurveyLimit int
	VideoLimit  int
	SurveyUnit  decimal.Decimal
	VideoUnit   decimal.Decimal
}

// AnswerInput is one answer in a survey submission
type AnswerInput struct {
	QuestionID uint            `json:"questionId" binding:"required"`
	Answer     json.RawMessage `json:"answer"`
}

// Receipt is the result of a rewarded activity
type Receipt struct {
	ResponseID        uint            `json:"responseId,omitempty"`
	RewardAmount      decimal.Decimal `json:"rewardAmount"`
	NewBalance        decimal.Decimal `json:"newBalance"`
	CheckoutRequestID string          `json:"checkoutRequestId"`
}

// LimitError is returned when a daily allowance is used up
type LimitError struct {
	Activity  string
	NextReset time.Time
}

func (e *LimitError) Error() string {
	return e.Activity + " limit reached for today"
}

// Unwrap lets errors.Is match domain.ErrLimitReached
func (e *LimitError) Unwrap() error { return domain.ErrLimitReached }

// Service accrues rewards
type Service struct {
	store  *ledger.Store
	guard  *ledger.Guard
	rdb    *redis.Client
	policy Policy
	now    func() time.Time
}

// NewService creates a reward service. rdb may be nil.
func NewService(store *ledger.Store, guard *ledger.Guard, rdb *redis.Client, policy Policy) *Service {
	return &Service{store: store, guard: guard, rdb: rdb, policy: policy, now: time.Now}
}

// Reward is the level-scaled payout for one activity
func Reward(level int, unit decimal.Decimal) decimal.Decimal {
	if level < 1 {
		level = 1
	}
	return unit.Mul(decimal.NewFromInt(int64(level)))
}

// rollWindow resets a daily counter whose window has elapsed. It reports whether it reset.
func rollWindow(count *int, lastReset *time.Time, now time.Time) bool {
	if lastReset.IsZero() || now.Sub(*lastReset) >= Window {
		*count = 0
		*lastReset = now
		return true
	}
	return false
}

// SubmitSurveyResponse stores a survey response and pays its reward. A user is
// rewarded at most once per survey; a second submission is a conflict.
func (s *Service) SubmitSurveyResponse(ctx context.Context, userID, surveyID uint, answers []AnswerInput) (*Receipt, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: at least one answer is required", domain.ErrValidation)
	}
	now := s.now()
	var receipt Receipt
	err := s.store.RunAtomically(ctx, func(tx *ledger.Tx) error {
		user, err := tx.LockUser(userID)
		if err != nil {
			return err
		}
		var survey domain.Survey
		if err := tx.DB().Preload("Questions").First(&survey, surveyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: survey %d", domain.ErrNotFound, surveyID)
			}
			return err
		}
		subject := strconv.FormatUint(uint64(survey.ID), 10)
		if err := s.guard.ClaimReward(tx, user.ID, domain.RewardSurvey, subject); err != nil {
			return err
		}
		rollWindow(&user.SurveyCount, &user.LastSurveyCountReset, now)
		if user.SurveyCount >= s.policy.SurveyLimit {
			return &LimitError{Activity: "survey", NextReset: user.LastSurveyCountReset.Add(Window)}
		}

		known := make(map[uint]bool, len(survey.Questions))
		for _, q := range survey.Questions {
			known[q.ID] = true
		}
		response := domain.Response{SurveyID: survey.ID, UserID: user.ID}
		for _, a := range answers {
			if !known[a.QuestionID] {
				return fmt.Errorf("%w: invalid questionId provided: %d", domain.ErrValidation, a.QuestionID)
			}
			value := datatypes.JSON("null")
			if len(a.Answer) > 0 {
				value = datatypes.JSON(a.Answer)
			}
			response.Answers = append(response.Answers, domain.Answer{QuestionID: a.QuestionID, Value: value})
		}

		if err := tx.DB().Create(&response).Error; err != nil {
			return err
		}

		amount := Reward(user.Level, s.policy.SurveyUnit)
		orderID := strconv.FormatUint(uint64(response.ID), 10)
		txn, balance, err := s.pay(tx, user, amount, now, &domain.Transaction{
			OrderID:           orderID,
			MerchantRequestID: "SURVEY_" + subject,
			CheckoutRequestID: "RESP_" + orderID,
			ResultDesc:        "Survey response reward",
		})
		if err != nil {
			return err
		}
		if err := s.guard.RecordReward(tx, &domain.RewardClaim{
			UserID:        user.ID,
			Kind:          domain.RewardSurvey,
			SubjectKey:    subject,
			TransactionID: txn.ID,
		}); err != nil {
			return err
		}
		if err := tx.DB().Model(&domain.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"survey_count":            user.SurveyCount + 1,
			"survey_count_total":      gorm.Expr("survey_count_total + 1"),
			"last_survey_count_reset": user.LastSurveyCountReset,
		}).Error; err != nil {
			return err
		}

		receipt = Receipt{
			ResponseID:        response.ID,
			RewardAmount:      amount,
			NewBalance:        balance,
			CheckoutRequestID: txn.CheckoutRequestID,
		}
		return nil
	})
	if err != nil {
		s.logFailure(userID, domain.RewardSurvey, strconv.FormatUint(uint64(surveyID), 10), err)
		return nil, err
	}
	s.afterCommit(ctx, userID, domain.RewardSurvey, &receipt)
	return &receipt, nil
}

// RecordVideoWatch pays the reward for a watched video, once per user and video
func (s *Service) RecordVideoWatch(ctx context.Context, userID uint, videoID string) (*Receipt, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" || len(videoID) > 48 {
		return nil, fmt.Errorf("%w: video id is required and at most 48 characters", domain.ErrValidation)
	}
	now := s.now()
	var receipt Receipt
	err := s.store.RunAtomically(ctx, func(tx *ledger.Tx) error {
		user, err := tx.LockUser(userID)
		if err != nil {
			return err
		}
		if err := s.guard.ClaimReward(tx, user.ID, domain.RewardVideo, videoID); err != nil {
			return err
		}
		rollWindow(&user.VideoCount, &user.LastVideoCountReset, now)
		if user.VideoCount >= s.policy.VideoLimit {
			return &LimitError{Activity: "video", NextReset: user.LastVideoCountReset.Add(Window)}
		}

		amount := Reward(user.Level, s.policy.VideoUnit)
		userKey := strconv.FormatUint(uint64(user.ID), 10)
		txn, balance, err := s.pay(tx, user, amount, now, &domain.Transaction{
			OrderID:           "video:" + videoID,
			MerchantRequestID: "VIDEO_" + videoID,
			CheckoutRequestID: "VID_" + userKey + "_" + videoID,
			ResultDesc:        "Video watch reward",
		})
		if err != nil {
			return err
		}
		if err := s.guard.RecordReward(tx, &domain.RewardClaim{
			UserID:        user.ID,
			Kind:          domain.RewardVideo,
			SubjectKey:    videoID,
			TransactionID: txn.ID,
		}); err != nil {
			return err
		}
		if err := tx.DB().Model(&domain.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"video_count":            user.VideoCount + 1,
			"video_count_total":      gorm.Expr("video_count_total + 1"),
			"last_video_count_reset": user.LastVideoCountReset,
		}).Error; err != nil {
			return err
		}

		receipt = Receipt{RewardAmount: amount, NewBalance: balance, CheckoutRequestID: txn.CheckoutRequestID}
		return nil
	})
	if err != nil {
		s.logFailure(userID, domain.RewardVideo, videoID, err)
		return nil, err
	}
	s.afterCommit(ctx, userID, domain.RewardVideo, &receipt)
	return &receipt, nil
}

// pay credits the wallet and writes the settled reward transaction
func (s *Service) pay(tx *ledger.Tx, user *domain.User, amount decimal.Decimal, now time.Time, txn *domain.Transaction) (*domain.Transaction, decimal.Decimal, error) {
	balance, err := tx.Credit(user.ID, amount)
	if err != nil {
		return nil, decimal.Zero, err
	}
	receipt := syntheticReceipt()
	txn.Type = domain.TypeReward
	txn.Status = domain.StatusSuccess
	txn.ResultCode = 0
	txn.RequestedAmount = amount
	txn.Amount = decimal.NewNullDecimal(amount)
	txn.ReceiptNumber = &receipt
	txn.PhoneNumber = user.Phone
	txn.TransactionDate = payment.Timestamp(now)
	txn.UserID = &user.ID
	if err := tx.CreateTransaction(txn); err != nil {
		return nil, decimal.Zero, err
	}
	return txn, balance, nil
}

// syntheticReceipt mimics a gateway receipt for rewards that never touch the gateway
func syntheticReceipt() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "SR" + strings.ToUpper(id[:8])
}

func (s *Service) afterCommit(ctx context.Context, userID uint, kind string, receipt *Receipt) {
	if err := utils.InvalidateUser(ctx, s.rdb, userID); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate wallet cache")
	}
	logrus.WithFields(logrus.Fields{
		"user_id":             userID,
		"kind":                kind,
		"amount":              receipt.RewardAmount.String(),
		"new_balance":         receipt.NewBalance.String(),
		"checkout_request_id": receipt.CheckoutRequestID,
		"type":                domain.TypeReward,
	}).Info("Reward transaction")
}

func (s *Service) logFailure(userID uint, kind, subject string, err error) {
	entry := logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"kind":    kind,
		"subject": subject,
		"error":   err.Error(),
	})
	if errors.Is(err, domain.ErrStore) {
		entry.Error("Reward failed")
		return
	}
	entry.Info("Reward rejected")
}
