package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureUTF8PassesValidInput(t *testing.T) {
	assert.Equal(t, "", EnsureUTF8(""))
	assert.Equal(t, "hello", EnsureUTF8("hello"))
	assert.Equal(t, "接口已启用", EnsureUTF8("接口已启用"))
}

func TestEnsureUTF8StripsBOM(t *testing.T) {
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte("display version")...)
	assert.Equal(t, "display version", EnsureUTF8Bytes(in))
}

func TestEnsureUTF8DecodesGBK(t *testing.T) {
	// "华为" 的 GBK 编码
	gbk := []byte{0xBB, 0xAA, 0xCE, 0xAA}
	assert.Equal(t, "华为", EnsureUTF8Bytes(gbk))
}
