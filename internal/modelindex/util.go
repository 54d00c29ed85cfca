package modelindex

import (
	"os"
	"time"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
