package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
)

func newFilterService(of config.OutputFilterConfig) *CollectorService {
	cfg := &config.Config{}
	cfg.Collector.OutputFilter = of
	return &CollectorService{config: cfg}
}

func defaultPagerFilter() config.OutputFilterConfig {
	return config.OutputFilterConfig{
		Prefixes:        []string{"---- More ----", "--More--"},
		CaseInsensitive: true,
		TrimSpace:       true,
	}
}

func TestStripPagerPromptsRemovesPagerLines(t *testing.T) {
	s := newFilterService(defaultPagerFilter())
	in := "interface GE1/0/1\n  ---- More ---- CTRL+C ESC Quit\ndescription uplink"
	assert.Equal(t, "interface GE1/0/1\ndescription uplink", s.stripPagerPrompts(in))
}

func TestStripPagerPromptsKeepsLegitimateMoreLines(t *testing.T) {
	// "More ..." 开头的正文行不属于分页提示，不能被前缀匹配误删
	s := newFilterService(defaultPagerFilter())
	in := "More information: see release notes\nmore than 3 sessions active"
	assert.Equal(t, in, s.stripPagerPrompts(in))
}

func TestStripPagerPromptsContainsMatch(t *testing.T) {
	s := newFilterService(config.OutputFilterConfig{
		Contains:        []string{"--more--"},
		CaseInsensitive: true,
		TrimSpace:       true,
	})
	in := "line one\n --More-- \nline two"
	assert.Equal(t, "line one\nline two", s.stripPagerPrompts(in))
}
