package utils_test

import (
	"testing"
	"time"

	"survey_wallet/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func Test_JWT(t *testing.T) {
	t.Run("ok, round trip", func(t *testing.T) {
		token, err := utils.GenerateJWT(42, "admin", "secret")
		require.NoError(t, err)

		claims, err := utils.ParseJWT(token, "secret")
		require.NoError(t, err)
		require.EqualValues(t, 42, claims.UserID)
		require.Equal(t, "admin", claims.Role)
		require.WithinDuration(t, time.Now().Add(utils.TokenTTL), claims.ExpiresAt.Time, time.Minute)
	})

	t.Run("fail, wrong secret", func(t *testing.T) {
		token, err := utils.GenerateJWT(42, "user", "secret")
		require.NoError(t, err)
		_, err = utils.ParseJWT(token, "other")
		require.Error(t, err)
	})

	t.Run("fail, expired", func(t *testing.T) {
		claims := utils.Claims{
			UserID: 1,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = utils.ParseJWT(token, "secret")
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("fail, other signing method", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, utils.Claims{UserID: 1}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = utils.ParseJWT(token, "secret")
		require.Error(t, err)
	})
}
