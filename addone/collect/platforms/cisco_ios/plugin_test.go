package cisco_ios

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

const showVersionSample = `Cisco IOS Software, C2900 Software (C2900-UNIVERSALK9-M), Version 15.7(3)M2, RELEASE SOFTWARE (fc2)
R1 uptime is 5 weeks, 1 day, 11 hours, 8 minutes
System returned to ROM by power-on
Processor board ID FTX1840ABCD
cisco CISCO2911/K9 (revision 1.0) processor with 483328K/40960K bytes of memory.
`

const interfaceBriefSample = `Interface                  IP-Address      OK? Method Status                Protocol
GigabitEthernet0/0         10.0.0.1        YES manual up                    up
GigabitEthernet0/1         unassigned      YES unset  administratively down down
Vlan1                      192.168.1.1     YES NVRAM  up                    up
`

func TestParseShowVersion(t *testing.T) {
	p := &Plugin{}
	ctx := collect.ParseContext{Platform: "cisco_ios", Command: "show version", TaskID: "t1", Status: collect.TaskStatusSuccess}

	out, err := p.Parse(ctx, showVersionSample)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)

	row := out.Rows[0]
	assert.Equal(t, "version_info", row.Table)
	assert.Equal(t, "t1", row.Base.TaskID)
	assert.Equal(t, "15.7(3)M2", row.Data["version"])
	assert.Equal(t, "CISCO2911/K9", row.Data["model"])
	assert.Equal(t, "FTX1840ABCD", row.Data["serial_no"])
	assert.Equal(t, "5 weeks, 1 day, 11 hours, 8 minutes", row.Data["uptime"])
}

func TestParseInterfaceBrief(t *testing.T) {
	p := &Plugin{}
	ctx := collect.ParseContext{Platform: "cisco_ios", Command: "show ip interface brief"}

	out, err := p.Parse(ctx, interfaceBriefSample)
	require.NoError(t, err)
	require.Len(t, out.Rows, 3)

	assert.Equal(t, "GigabitEthernet0/0", out.Rows[0].Data["int_name"])
	assert.Equal(t, "10.0.0.1", out.Rows[0].Data["int_ip"])
	assert.Equal(t, "up", out.Rows[0].Data["int_status"])

	// unassigned 地址置空，管理关闭状态合并为两词
	assert.Equal(t, "", out.Rows[1].Data["int_ip"])
	assert.Equal(t, "administratively down", out.Rows[1].Data["int_status"])
	assert.Equal(t, "down", out.Rows[1].Data["int_protocol"])
}

func TestParseUnknownCommandPassthrough(t *testing.T) {
	p := &Plugin{}
	out, err := p.Parse(collect.ParseContext{Platform: "cisco_ios", Command: "show clock"}, "raw")
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
	assert.Equal(t, "raw", out.Raw)
}
