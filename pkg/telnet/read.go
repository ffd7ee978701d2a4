package telnet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"
)

// interruptGrace 发送分页中断后留给设备回到空闲提示符的宽限期
const interruptGrace = 1 * time.Second

// 横幅型分页提示：缓冲区同时包含这三个子串时判定为分页停顿
var pagerBannerTokens = [][]byte{
	[]byte("CTRL+C"),
	[]byte("ESC"),
	[]byte("Quit"),
}

// readUntil 核心读取原语：累积到达的数据块并测试完成模式
// 四种退出路径，每次读取恰好解析一次：
//  1. 累积缓冲匹配完成模式（每个数据块到达后测试），正常出口
//  2. 数据块内出现 BEL：发送一个中断字节，经过宽限期后以现有累积解析
//  3. 累积缓冲同时包含 CTRL+C、ESC、Quit 三个子串：发送中断字节但继续读取，
//     该横幅出现在正文之前而非结尾
//  4. 截止时间到：以现有累积解析，本路径不算错误，由调用方判定部分结果
// 每次读取至多发送一个中断字节；缓冲区为本次读取私有，
// 开始时丢弃上一次读取之后滞留的数据
func (s *Session) readUntil(pattern *regexp.Regexp, timeout time.Duration) (string, bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	chunks := s.chunks
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || chunks == nil {
		return "", false, fmt.Errorf("%w: connection not established", ErrTransport)
	}

	// 本次读取从空缓冲开始
drain:
	for {
		select {
		case _, ok := <-chunks:
			if !ok {
				return "", false, s.readClosedErr()
			}
		default:
			break drain
		}
	}

	var (
		buf           bytes.Buffer
		interruptSent bool
		grace         <-chan time.Time
	)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return buf.String(), false, s.readClosedErr()
			}
			buf.Write(chunk)
			if pattern != nil && pattern.Match(buf.Bytes()) {
				return buf.String(), true, nil
			}
			if !interruptSent && bytes.IndexByte(chunk, charBell) >= 0 {
				interruptSent = true
				_ = s.write([]byte{charInterrupt})
				grace = time.After(interruptGrace)
				s.debugf("pager bell detected, interrupt sent")
				continue
			}
			if !interruptSent && containsPagerBanner(buf.Bytes()) {
				interruptSent = true
				_ = s.write([]byte{charInterrupt})
				s.debugf("pager banner detected, interrupt sent")
			}
		case <-grace:
			return buf.String(), false, nil
		case <-deadline.C:
			return buf.String(), false, nil
		}
	}
}

// readClosedErr 传输中断后的错误包装，EOF 统一表述为对端关闭
func (s *Session) readClosedErr() error {
	s.mu.Lock()
	err := s.readErr
	s.mu.Unlock()
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: connection closed by remote", ErrTransport)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func containsPagerBanner(buf []byte) bool {
	for _, tok := range pagerBannerTokens {
		if !bytes.Contains(buf, tok) {
			return false
		}
	}
	return true
}
