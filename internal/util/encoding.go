package util

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyEncodings 设备回显常见的历史编码，按命中概率排序
// 国产设备（华为/华三）多为 GB 系，Cisco 老镜像偶见 Latin-1 输出
var legacyEncodings = []encoding.Encoding{
	simplifiedchinese.GB18030,
	simplifiedchinese.GBK,
	simplifiedchinese.HZGB2312,
	traditionalchinese.Big5,
	charmap.Windows1252,
	charmap.ISO8859_1,
	charmap.Macintosh,
}

// EnsureUTF8Bytes 将设备回显字节规整为 UTF-8 字符串
// 合法 UTF-8 原样返回（去掉前导 BOM）；否则依次尝试历史编码解码，
// 全部失败时按原始字节直转，保证不丢数据
func EnsureUTF8Bytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b)
	}
	for _, enc := range legacyEncodings {
		if s, ok := decodeAs(enc, b); ok {
			return s
		}
	}
	return string(b)
}

// EnsureUTF8 字符串版本，处理可能乱码的回显文本
func EnsureUTF8(s string) string {
	return EnsureUTF8Bytes([]byte(s))
}

func decodeAs(enc encoding.Encoding, b []byte) (string, bool) {
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(b), enc.NewDecoder()))
	if err != nil || !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}
