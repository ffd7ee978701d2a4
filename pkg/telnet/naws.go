package telnet

// TELNET 控制字节（RFC 854 / RFC 1073）
const (
	telnetIAC = 0xFF // Interpret As Command
	telnetSB  = 0xFA // 子协商开始
	telnetSE  = 0xF0 // 子协商结束
	optNAWS   = 0x1F // Negotiate About Window Size

	charBell      = 0x07 // BEL，分页器停顿信号
	charInterrupt = 0x03 // CTRL+C，分页中断
)

// 默认终端几何基线，连接建立后立即声明
const (
	defaultWidth  = 80
	defaultHeight = 24
)

// negotiateWindowSize 发送 9 字节 NAWS 子协商声明终端宽高
// 不等待对端确认；发送失败仅记录调试信息，设备会退回自身默认几何
func (s *Session) negotiateWindowSize(width, height int) {
	seq := []byte{
		telnetIAC, telnetSB, optNAWS,
		byte(width >> 8), byte(width),
		byte(height >> 8), byte(height),
		telnetIAC, telnetSE,
	}
	if err := s.write(seq); err != nil {
		s.debugf("NAWS %dx%d not sent: %v", width, height, err)
	} else {
		s.debugf("NAWS %dx%d sent", width, height)
	}
}
