package utils

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
)

type claims struct {
	UserId string `json:"user_id"`
	jwt.StandardClaims
}

type Token struct {
	Value     string
	ExpiresAt time.Time
}

type JWT struct {
	Key []byte
}

func (j JWT) GenerateJWTForUser(userId int64) (*Token, error) {
	expTime := time.Now().Add(7 * 24 * time.Hour)

	claims := &claims{
		UserId: strconv.FormatInt(userId, 10),
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expTime.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(j.Key)
	if err != nil {
		return nil, err
	}

	return &Token{Value: tokenString, ExpiresAt: expTime}, nil
}

func (j JWT) GetUserIdFromToken(tokenString string) (*int64, error) {
	claims := &claims{}

	tkn, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return j.Key, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			slog.Error("invalid token signature")
		}
		return nil, err
	}

	if !tkn.Valid {
		return nil, errors.New("token is invalid")
	}

	userId, err := strconv.ParseInt(claims.UserId, 10, 64)
	if err != nil {
		slog.Error("cannot convert user id claim to int")
		return nil, err
	}
	return &userId, nil
}
