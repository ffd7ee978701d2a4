package collect

import (
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]CollectPlugin{
		"default": &DefaultPlugin{},
	}
)

// Register 注册采集插件
func Register(name string, plugin CollectPlugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = plugin
}

// Get 获取指定平台的采集插件，未命中时按厂商族回退
func Get(name string) CollectPlugin {
	registryMu.RLock()
	defer registryMu.RUnlock()
	key := strings.ToLower(strings.TrimSpace(name))
	if p, ok := registry[key]; ok {
		return p
	}
	if fb := familyFallback(key); fb != "" {
		if p, ok := registry[fb]; ok {
			return p
		}
	}
	return registry["default"]
}

func familyFallback(key string) string {
	switch {
	case strings.HasPrefix(key, "huawei"):
		return "huawei_s"
	case strings.HasPrefix(key, "h3c"):
		return "h3c_s"
	case strings.HasPrefix(key, "cisco"):
		return "cisco_ios"
	}
	return ""
}
