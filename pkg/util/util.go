package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成一个标准的 UUID (v4)
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateShortUUID 生成一个不带中划线的短 UUID
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// RandomURLToken n 字节随机数的 base64url 编码
func RandomURLToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return GenerateShortUUID() + GenerateShortUUID()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// SHA256Hex 计算 sha256 十六进制摘要
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SplitCSV 逗号分隔参数，去掉空白项
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// LikeContains 以 ! 转义通配符后包成 %s% 子串匹配，SQL 需配合 ESCAPE '!'
func LikeContains(s string) string {
	return "%" + likeReplacer.Replace(s) + "%"
}
