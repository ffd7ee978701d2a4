package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
)

func TestGetTimeoutAllResolution(t *testing.T) {
	cfg := &config.Config{}
	cfg.Collector.DeviceDefaults = map[string]config.PlatformDefaultsConfig{
		"huawei_s": {
			Timeout: config.PlatformTimeoutConfig{TimeoutAll: 45 * time.Second},
		},
		"cisco_ios": {
			// 裸数字写法：viper 将 90 解析为 90ns，应按秒处理
			Timeout: config.PlatformTimeoutConfig{TimeoutAll: 90},
		},
	}
	cfg.Telnet.Timeout = 30 * time.Second

	// 平台级 timeout_all 优先
	assert.Equal(t, 45, cfg.GetTimeoutAll("huawei_s"))
	// 裸数字兼容路径
	assert.Equal(t, 90, cfg.GetTimeoutAll("cisco_ios"))
	// 未配置平台回退到全局 telnet.timeout
	assert.Equal(t, 30, cfg.GetTimeoutAll("h3c_s"))

	// 两者都未配置时的兜底值
	bare := &config.Config{}
	assert.Equal(t, 60, bare.GetTimeoutAll("unknown"))
}
