package fingerprint // 内容指纹: 缓存身份与变更检测的唯一键

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// NormalizeText 在哈希前消除无意义的空白差异:
// 统一换行为 \n, 每行内连续空白折叠为单个空格并去掉首尾空白,
// 丢弃空行。这样同一份文档的简单重存不会使缓存失效。
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	first := true
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(fields, " "))
		first = false
	}
	return b.String()
}

// Fingerprint 返回规范化文本的128位内容指纹（32位十六进制MD5）。
// 纯函数: 相同的规范化字节序列永远得到相同指纹, 与来源无关。
// 指纹是缓存的唯一键, 碰撞按同一内容处理, 不做进一步比对。
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}
