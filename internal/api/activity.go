package api

import (
	"net/http"                      // HTTP status codes
	"strconv"                       // String conversion
	"survey_wallet/internal/reward" // Reward accrual

	"github.com/gin-gonic/gin" // Gin web framework
)

// SurveyResponseRequest is the body of POST /api/activity/response/:userId
type SurveyResponseRequest struct {
	SurveyID uint                 `json:"surveyId" binding:"required"` // Survey answered
	Answers  []reward.AnswerInput `json:"answers" binding:"required"`  // One answer per question
}

// VideoWatchRequest is the body of POST /api/activity/video/:userId
type VideoWatchRequest struct {
	VideoID string `json:"videoId" binding:"required"` // Video watched
}

// ListSurveysHandler returns every survey with its questions
func ListSurveysHandler(svc *reward.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		surveys, err := svc.ListSurveys(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": surveys})
	}
}

// AvailableSurveysHandler returns the surveys a user can still be rewarded for today
func AvailableSurveysHandler(svc *reward.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathUserID(c)
		if !ok {
			return
		}
		surveys, left, err := svc.AvailableSurveys(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": surveys, "surveysLeft": left})
	}
}

// SubmitResponseHandler stores a survey response and pays its reward
func SubmitResponseHandler(svc *reward.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathUserID(c)
		if !ok {
			return
		}
		var req SurveyResponseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		receipt, err := svc.SubmitSurveyResponse(c.Request.Context(), userID, req.SurveyID, req.Answers)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"status":  "success",
			"message": "Survey response submitted",
			"data": gin.H{
				"responseId":   receipt.ResponseID,
				"rewardAmount": receipt.RewardAmount,
				"newBalance":   receipt.NewBalance,
			},
		})
	}
}

// VideoWatchHandler pays the reward for a watched video
func VideoWatchHandler(svc *reward.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathUserID(c)
		if !ok {
			return
		}
		var req VideoWatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		receipt, err := svc.RecordVideoWatch(c.Request.Context(), userID, req.VideoID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"status":  "success",
			"message": "Video reward credited",
			"data": gin.H{
				"rewardAmount": receipt.RewardAmount,
				"newBalance":   receipt.NewBalance,
			},
		})
	}
}

// ActivityLimitsHandler returns a user's daily allowances
func ActivityLimitsHandler(svc *reward.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathUserID(c)
		if !ok {
			return
		}
		limits, err := svc.ActivityLimits(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": limits, "userId": strconv.FormatUint(uint64(userID), 10)})
	}
}
