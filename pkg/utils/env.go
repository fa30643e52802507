package utils

import (
	"math/rand"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv 加载 .env 以及 .env.<env>，后者覆盖前者
func LoadEnv(env string) error {
	files := []string{}
	if env != "" {
		if _, err := os.Stat(".env." + env); err == nil {
			files = append(files, ".env."+env)
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		files = append(files, ".env")
	}
	if len(files) == 0 {
		return os.ErrNotExist
	}
	// godotenv.Load 不会覆盖已有变量，所以先加载更具体的文件
	return godotenv.Load(files...)
}

// GetEnv 读取环境变量并去除首尾空白
func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetIntEnv 读取整数环境变量，无法解析时返回 0
func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

// GetBoolEnv 读取布尔环境变量
func GetBoolEnv(key string) bool {
	v := strings.ToLower(GetEnv(key))
	switch v {
	case "yes", "on", "y":
		return true
	}
	return cast.ToBool(v)
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandText 生成随机字符串
func RandText(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
