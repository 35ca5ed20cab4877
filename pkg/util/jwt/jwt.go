package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer             = "studyhub"
	SubjectAccessToken = "access_token"
)

// ErrNotInitialized Init 之前调用签发/解析
var ErrNotInitialized = errors.New("jwt: secret not initialized")

type settings struct {
	secret    []byte
	accessTTL time.Duration
}

var current *settings

// Init 初始化签名密钥和 Access Token 有效期
func Init(secret string, accessExpiryMinutes int) {
	current = &settings{
		secret:    []byte(secret),
		accessTTL: time.Duration(accessExpiryMinutes) * time.Minute,
	}
}

// Claims 自定义 JWT 声明，UserID 即 UserInfo.Uuid
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateAccessToken 签发 Access Token
// 登录接口不在本服务内，这里主要供运维脚本和测试使用
func GenerateAccessToken(userID string) (string, error) {
	if current == nil {
		return "", ErrNotInitialized
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(current.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   SubjectAccessToken,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(current.secret)
}

// ParseToken 解析并验证 Token，只接受 HS256
func ParseToken(tokenString string) (*Claims, error) {
	if current == nil {
		return nil, ErrNotInitialized
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return current.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
