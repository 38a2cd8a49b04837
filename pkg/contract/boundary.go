package contract

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

// BoundaryPrefix: multipart 分隔符前缀；解码时作为遗留形式接受。
const BoundaryPrefix = "---CATPORT-BOUNDARY"

// NewBoundary 为一次编码生成分隔符：BoundaryPrefix + "-" + 小写 base36 随机串。
func NewBoundary() string {
	// 2^64 的 base36 约 13 位
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return BoundaryPrefix + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return BoundaryPrefix + "-" + n.Text(36)
}
