package random

import (
	"crypto/rand"
	"math/big"
	"time"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GetNowAndLenRandomString 生成带日期前缀的随机字符串（用于业务 ID）
// 格式: YYMMDD + 字母数字混合，示例: 241230AbCdE12345
func GetNowAndLenRandomString(length int) string {
	return time.Now().Format("060102") + GetRandomString(length)
}

// GetRandomString 生成指定长度的字母数字随机串
func GetRandomString(length int) string {
	result := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))
	for i := range result {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			result[i] = 'x'
			continue
		}
		result[i] = charset[n.Int64()]
	}
	return string(result)
}
