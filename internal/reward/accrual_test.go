package reward

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"survey_wallet/internal/domain"
	"survey_wallet/internal/ledger"
	"survey_wallet/internal/testutil"
	"survey_wallet/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	conn  *gorm.DB
	svc   *Service
	clock *clock
	mr    *miniredis.Miniredis
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	store := ledger.NewStore(conn)
	svc := NewService(store, ledger.NewGuard(rdb, time.Hour), rdb, Policy{
		SurveyLimit: 3,
		VideoLimit:  3,
		SurveyUnit:  decimal.NewFromInt(5),
		VideoUnit:   decimal.NewFromInt(2),
	})
	c := &clock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc.now = c.Now
	return &env{conn: conn, svc: svc, clock: c, mr: mr}
}

func answersFor(s *domain.Survey) []AnswerInput {
	out := make([]AnswerInput, len(s.Questions))
	for i, q := range s.Questions {
		out[i] = AnswerInput{QuestionID: q.ID, Answer: json.RawMessage(`"yes"`)}
	}
	return out
}

func Test_Reward(t *testing.T) {
	require.True(t, Reward(2, decimal.NewFromInt(5)).Equal(decimal.NewFromInt(10)))
	require.True(t, Reward(0, decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)))
	require.True(t, Reward(3, decimal.NewFromInt(2)).Equal(decimal.NewFromInt(6)))
}

func Test_SubmitSurveyResponse(t *testing.T) {
	t.Run("ok, level two earns ten", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 2, "0")
		survey := testutil.CreateSurvey(t, e.conn, "Shopping habits", "Where do you shop?", "How often?")
		e.mr.Set(utils.WalletKey(user.ID), "{}")

		receipt, err := e.svc.SubmitSurveyResponse(t.Context(), user.ID, survey.ID, answersFor(survey))
		require.NoError(t, err)
		require.True(t, receipt.RewardAmount.Equal(decimal.NewFromInt(10)))
		require.True(t, receipt.NewBalance.Equal(decimal.NewFromInt(10)))
		require.True(t, testutil.Balance(t, e.conn, user.ID).Equal(decimal.NewFromInt(10)))
		require.False(t, e.mr.Exists(utils.WalletKey(user.ID)))

		var txn domain.Transaction
		require.NoError(t, e.conn.Where("checkout_request_id = ?", receipt.CheckoutRequestID).First(&txn).Error)
		require.Equal(t, domain.TypeReward, txn.Type)
		require.Equal(t, domain.StatusSuccess, txn.Status)
		require.Equal(t, "SURVEY_"+itoa(survey.ID), txn.MerchantRequestID)
		require.Equal(t, "RESP_"+itoa(receipt.ResponseID), txn.CheckoutRequestID)
		require.Regexp(t, `^SR[0-9A-F]{8}$`, *txn.ReceiptNumber)
		require.Equal(t, "20260501120000", txn.TransactionDate)

		var response domain.Response
		require.NoError(t, e.conn.Preload("Answers").First(&response, receipt.ResponseID).Error)
		require.Len(t, response.Answers, 2)

		var stored domain.User
		require.NoError(t, e.conn.First(&stored, user.ID).Error)
		require.Equal(t, 1, stored.SurveyCount)
		require.Equal(t, 1, stored.SurveyCountTotal)
	})

	t.Run("fail, second submission for the same survey", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 1, "0")
		survey := testutil.CreateSurvey(t, e.conn, "S", "Q")

		_, err := e.svc.SubmitSurveyResponse(t.Context(), user.ID, survey.ID, answersFor(survey))
		require.NoError(t, err)
		_, err = e.svc.SubmitSurveyResponse(t.Context(), user.ID, survey.ID, answersFor(survey))
		require.ErrorIs(t, err, domain.ErrConflict)
		require.True(t, testutil.Balance(t, e.conn, user.ID).Equal(decimal.NewFromInt(5)))

		var responses int64
		require.NoError(t, e.conn.Model(&domain.Response{}).Count(&responses).Error)
		require.EqualValues(t, 1, responses)
	})

	t.Run("fail, unknown question rolls everything back", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 1, "0")
		survey := testutil.CreateSurvey(t, e.conn, "S", "Q")
		answers := append(answersFor(survey), AnswerInput{QuestionID: 9999})

		_, err := e.svc.SubmitSurveyResponse(t.Context(), user.ID, survey.ID, answers)
		require.ErrorIs(t, err, domain.ErrValidation)
		require.True(t, testutil.Balance(t, e.conn, user.ID).IsZero())

		for _, model := range []any{&domain.Response{}, &domain.Answer{}, &domain.Transaction{}, &domain.RewardClaim{}} {
			var count int64
			require.NoError(t, e.conn.Model(model).Count(&count).Error)
			require.Zero(t, count)
		}
	})

	t.Run("fail, missing user survey or answers", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 1, "0")
		survey := testutil.CreateSurvey(t, e.conn, "S", "Q")

		_, err := e.svc.SubmitSurveyResponse(t.Context(), 999, survey.ID, answersFor(survey))
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = e.svc.SubmitSurveyResponse(t.Context(), user.ID, 999, answersFor(survey))
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = e.svc.SubmitSurveyResponse(t.Context(), user.ID, survey.ID, nil)
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("fail, daily limit then reset after the window", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 1, "0")
		var surveys []*domain.Survey
		for range 5 {
			surveys = append(surveys, testutil.CreateSurvey(t, e.conn, "S", "Q"))
		}
		for _, s := range surveys[:3] {
			_, err := e.svc.SubmitSurveyResponse(t.Context(), user.ID, s.ID, answersFor(s))
			require.NoError(t, err)
		}

		_, err := e.svc.SubmitSurveyResponse(t.Context(), user.ID, surveys[3].ID, answersFor(surveys[3]))
		require.ErrorIs(t, err, domain.ErrLimitReached)
		var limit *LimitError
		require.ErrorAs(t, err, &limit)
		require.True(t, e.clock.Now().Add(Window).Equal(limit.NextReset))

		e.clock.Advance(Window)
		_, err = e.svc.SubmitSurveyResponse(t.Context(), user.ID, surveys[3].ID, answersFor(surveys[3]))
		require.NoError(t, err)

		var stored domain.User
		require.NoError(t, e.conn.First(&stored, user.ID).Error)
		require.Equal(t, 1, stored.SurveyCount)
		require.Equal(t, 4, stored.SurveyCountTotal)
	})

	t.Run("fail, at the limit duplicates and unknown surveys keep their own errors", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 1, "0")
		var surveys []*domain.Survey
		for range 3 {
			s := testutil.CreateSurvey(t, e.conn, "S", "Q")
			surveys = append(surveys, s)
			_, err := e.svc.SubmitSurveyResponse(t.Context(), user.ID, s.ID, answersFor(s))
			require.NoError(t, err)
		}

		_, err := e.svc.SubmitSurveyResponse(t.Context(), user.ID, surveys[0].ID, answersFor(surveys[0]))
		require.ErrorIs(t, err, domain.ErrConflict)
		require.NotErrorIs(t, err, domain.ErrLimitReached)

		_, err = e.svc.SubmitSurveyResponse(t.Context(), user.ID, 9999, []AnswerInput{{QuestionID: 1}})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ok, concurrent submissions pay once", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 1, "0")
		survey := testutil.CreateSurvey(t, e.conn, "S", "Q")

		var wg sync.WaitGroup
		errs := make([]error, 6)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = e.svc.SubmitSurveyResponse(t.Context(), user.ID, survey.ID, answersFor(survey))
			}()
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
			} else {
				require.ErrorIs(t, err, domain.ErrConflict)
			}
		}
		require.Equal(t, 1, ok)
		require.True(t, testutil.Balance(t, e.conn, user.ID).Equal(decimal.NewFromInt(5)))
	})
}

func Test_RecordVideoWatch(t *testing.T) {
	t.Run("ok, pays level scaled reward once per video", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 3, "1")

		receipt, err := e.svc.RecordVideoWatch(t.Context(), user.ID, "intro-01")
		require.NoError(t, err)
		require.True(t, receipt.RewardAmount.Equal(decimal.NewFromInt(6)))
		require.True(t, receipt.NewBalance.Equal(decimal.NewFromInt(7)))
		require.Equal(t, "VID_"+itoa(user.ID)+"_intro-01", receipt.CheckoutRequestID)

		_, err = e.svc.RecordVideoWatch(t.Context(), user.ID, "intro-01")
		require.ErrorIs(t, err, domain.ErrConflict)
		require.True(t, testutil.Balance(t, e.conn, user.ID).Equal(decimal.NewFromInt(7)))
	})

	t.Run("fail, limit", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 1, "0")
		for _, v := range []string{"a", "b", "c"} {
			_, err := e.svc.RecordVideoWatch(t.Context(), user.ID, v)
			require.NoError(t, err)
		}
		_, err := e.svc.RecordVideoWatch(t.Context(), user.ID, "d")
		require.ErrorIs(t, err, domain.ErrLimitReached)

		_, err = e.svc.RecordVideoWatch(t.Context(), user.ID, "a")
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("fail, bad video id", func(t *testing.T) {
		e := newEnv(t)
		user := testutil.CreateUser(t, e.conn, 1, "0")
		for _, v := range []string{"", "   ", string(make([]byte, 49))} {
			_, err := e.svc.RecordVideoWatch(t.Context(), user.ID, v)
			require.ErrorIs(t, err, domain.ErrValidation)
		}
	})
}
