package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPlugin struct{ name string }

func (p *stubPlugin) Name() string             { return p.name }
func (p *stubPlugin) SystemCommands() []string { return nil }
func (p *stubPlugin) Parse(ctx ParseContext, raw string) (ParseOutput, error) {
	return ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw}, nil
}

func TestGetFallsBackByVendorFamily(t *testing.T) {
	Register("huawei_s", &stubPlugin{name: "huawei_s"})
	Register("cisco_ios", &stubPlugin{name: "cisco_ios"})

	// 精确命中
	assert.Equal(t, "huawei_s", Get("huawei_s").Name())
	// 未注册的同族型号回退到家族插件
	assert.Equal(t, "huawei_s", Get("huawei_ar").Name())
	assert.Equal(t, "cisco_ios", Get("CISCO_NEXUS").Name())
	// 完全未知回退 default
	assert.Equal(t, "default", Get("juniper_mx").Name())
	assert.Equal(t, "default", Get("").Name())
}

func TestDefaultPluginParsePassthrough(t *testing.T) {
	p := &DefaultPlugin{}
	assert.Nil(t, p.SystemCommands())

	out, err := p.Parse(ParseContext{Platform: "unknown", Command: "show clock"}, "raw text")
	assert.NoError(t, err)
	assert.Equal(t, "raw text", out.Raw)
	assert.Empty(t, out.Rows)
}

func TestRawStorePathsMarshal(t *testing.T) {
	var empty RawStorePaths
	assert.Equal(t, "{}", empty.Marshal())

	paths := RawStorePaths{"show version": "raw/t1/show_version.txt"}
	assert.Contains(t, paths.Marshal(), "show_version.txt")
}
