package api

import (
	"errors"                         // Error inspection
	"net/http"                       // HTTP status codes
	"net/mail"                       // Email address parsing
	"strings"                        // String manipulation
	"survey_wallet/internal/domain"  // Importing domain models
	"survey_wallet/internal/payment" // Phone normalization
	"survey_wallet/internal/utils"   // Utility functions
	"time"                           // Timestamps

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// SignupRequest is the body of POST /api/auth/signup
type SignupRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Name     string `json:"name" binding:"required"`     // Display name must be provided
	Phone    string `json:"phone"`                       // Optional M-Pesa phone number
	Password string `json:"password" binding:"required"` // Password must be provided
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// AuthResponse is returned after signup or login
type AuthResponse struct {
	UID   uint   `json:"uid"`   // User ID
	Email string `json:"email"` // Email
	Name  string `json:"name"`  // Display name
	Role  string `json:"role"`  // User role
	Level int    `json:"level"` // Reward level
	Token string `json:"token"` // JWT token
}

// isValidEmail checks the address parses and has no display name
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// isValidPassword checks if the password length is between 8 and 64 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 64 // Return true if length is valid
}

// SignupHandler registers a new user
func SignupHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email)) // Emails are case-insensitive
		if !isValidEmail(email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-64 characters"})
			return
		}
		phone := ""
		if req.Phone != "" {
			p, err := payment.NormalizePhone(req.Phone)
			if err != nil {
				respondError(c, err)
				return
			}
			phone = p
		}
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		now := time.Now()
		user := domain.User{
			Email:                email,
			Name:                 strings.TrimSpace(req.Name),
			Phone:                phone,
			Password:             string(hash),
			Role:                 domain.RoleUser,
			Active:               true,
			Level:                1,
			LastSurveyCountReset: now, // Windows start at signup
			LastVideoCountReset:  now,
		}
		if err := db.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
				return
			}
			logrus.WithError(err).Error("Failed to create user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Role, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		logrus.WithField("user_id", user.ID).Info("User registered")
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "data": authResponse(&user, token)})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if !user.Active {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account disabled"})
			return
		}
		now := time.Now()
		if err := db.Model(&user).UpdateColumn("last_login", now).Error; err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to record last login")
		}
		token, err := utils.GenerateJWT(user.ID, user.Role, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Login successful", "data": authResponse(&user, token)})
	}
}

func authResponse(user *domain.User, token string) AuthResponse {
	return AuthResponse{UID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role, Level: user.Level, Token: token}
}
