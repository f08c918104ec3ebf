package myjwt

import (
	"errors"
	"strconv"
	"time"

	"AgentPedia/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("unexpected token type")

// CustomClaims sub 存放用户 ID
type CustomClaims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// UserID 从 sub 解析用户 ID
func (c *CustomClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenPair 登录返回
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func GenerateAccessToken(userID int64, username, role string) (string, error) {
	conf := config.GetConfig()
	minutes := conf.JwtConfig.AccessExpireMinute
	if minutes <= 0 {
		minutes = 30
	}
	return generate(userID, username, role, TokenTypeAccess, time.Duration(minutes)*time.Minute)
}

func GenerateRefreshToken(userID int64, username, role string) (string, error) {
	conf := config.GetConfig()
	days := conf.JwtConfig.RefreshExpireDays
	if days <= 0 {
		days = 7
	}
	return generate(userID, username, role, TokenTypeRefresh, time.Duration(days)*24*time.Hour)
}

// GenerateTokenPair 同时签发 access/refresh
func GenerateTokenPair(userID int64, username, role string) (*TokenPair, error) {
	access, err := GenerateAccessToken(userID, username, role)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateRefreshToken(userID, username, role)
	if err != nil {
		return nil, err
	}
	minutes := config.GetConfig().JwtConfig.AccessExpireMinute
	if minutes <= 0 {
		minutes = 30
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(minutes) * 60,
	}, nil
}

func generate(userID int64, username, role, tokenType string, ttl time.Duration) (string, error) {
	conf := config.GetConfig()
	key := conf.JwtConfig.Key
	if key == "" {
		return "", errors.New("jwt key is empty")
	}

	issuer := conf.JwtConfig.Issuer
	if issuer == "" {
		issuer = conf.MainConfig.AppName
	}

	now := time.Now()
	claims := CustomClaims{
		Username:  username,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(key))
}

func ParseToken(tokenString string) (*CustomClaims, error) {
	conf := config.GetConfig()
	key := conf.JwtConfig.Key
	if key == "" {
		return nil, errors.New("jwt key is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ParseTyped 校验 token 类型
func ParseTyped(tokenString, tokenType string) (*CustomClaims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
