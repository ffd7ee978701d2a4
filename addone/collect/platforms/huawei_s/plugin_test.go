package huawei_s

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

const displayVersionSample = `Huawei Versatile Routing Platform Software
VRP (R) software, Version 5.170 (S5720 V200R019C00SPC500)
Copyright (C) 2000-2019 HUAWEI TECH Co., Ltd.
HUAWEI S5720-28X-SI-AC uptime is 12 weeks, 3 days, 6 hours, 42 minutes
`

const displayCurrentSample = `!Software Version V200R019C00SPC500
sysname SW1
vlan batch 10 20 30
#
interface GigabitEthernet0/0/1
 port link-type access
#
interface Vlanif10
 ip address 10.0.10.1 255.255.255.0
#
return
`

func TestParseDisplayVersion(t *testing.T) {
	p := &Plugin{}
	out, err := p.Parse(collect.ParseContext{Platform: "huawei_s", Command: "display version", TaskID: "t1"}, displayVersionSample)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)

	row := out.Rows[0]
	assert.Equal(t, "version_info", row.Table)
	assert.Equal(t, "5.170 (S5720 V200R019C00SPC500)", row.Data["version"])
	assert.Equal(t, "S5720-28X-SI-AC", row.Data["model"])
	assert.Equal(t, "12 weeks, 3 days, 6 hours, 42 minutes", row.Data["uptime"])
}

func TestParseDisplayCurrentConfiguration(t *testing.T) {
	p := &Plugin{}
	out, err := p.Parse(collect.ParseContext{Platform: "huawei_s", Command: "display current-configuration"}, displayCurrentSample)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)

	row := out.Rows[0]
	assert.Equal(t, "device_config", row.Table)
	assert.Equal(t, "SW1", row.Data["sysname"])
	assert.Equal(t, 2, row.Data["interface_count"])
	assert.Equal(t, 3, row.Data["vlan_count"])
}
