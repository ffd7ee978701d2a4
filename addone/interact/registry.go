package interact

import (
	"strings"
	"sync"
)

// 注册中心，按平台名称获取交互插件
var (
	registryMu sync.RWMutex
	registry   = map[string]InteractPlugin{
		"default": &DefaultPlugin{},
	}
)

// Register 注册一个交互插件
func Register(name string, plugin InteractPlugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = plugin
}

// Get 获取指定平台的交互插件。未命中时按厂商家族回退
// （huawei_* -> huawei_s、h3c_* -> h3c_s、cisco_* -> cisco_ios），仍未命中返回 default。
func Get(name string) InteractPlugin {
	registryMu.RLock()
	defer registryMu.RUnlock()
	key := strings.TrimSpace(strings.ToLower(name))
	if p, ok := registry[key]; ok {
		return p
	}
	switch {
	case strings.HasPrefix(key, "huawei"):
		if p, ok := registry["huawei_s"]; ok {
			return p
		}
	case strings.HasPrefix(key, "h3c"):
		if p, ok := registry["h3c_s"]; ok {
			return p
		}
	case strings.HasPrefix(key, "cisco"):
		if p, ok := registry["cisco_ios"]; ok {
			return p
		}
	}
	return registry["default"]
}
