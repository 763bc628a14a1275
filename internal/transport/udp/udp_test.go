// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeBars is a BarsProvider returning a fixed frame.
type fakeBars struct {
	mu   sync.Mutex
	bars []float32
	err  error
}

func (f *fakeBars) BarCount() int { return len(f.bars) }

func (f *fakeBars) GetBarsInto(dst []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	copy(dst, f.bars)
	return nil
}

// captureSender records packets in memory.
type captureSender struct {
	mu      sync.Mutex
	packets [][]byte
}

func (c *captureSender) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, append([]byte(nil), b...))
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

func TestPacketLayout(t *testing.T) {
	b := AppendPacket(nil, 0x01020304, 0x0A0B0C0D0E0F1011, []float32{1, 0.5})
	if len(b) != HeaderSize+8 {
		t.Fatalf("len = %d, want %d", len(b), HeaderSize+8)
	}
	// Big-endian: most significant byte first.
	if b[0] != 0x01 || b[3] != 0x04 {
		t.Errorf("sequence bytes = % x", b[0:4])
	}
	if b[4] != 0x0A || b[11] != 0x11 {
		t.Errorf("timestamp bytes = % x", b[4:12])
	}
	if b[12] != 0 || b[13] != 2 {
		t.Errorf("count bytes = % x", b[12:14])
	}
	// 1.0 is 0x3F800000.
	if b[14] != 0x3F || b[15] != 0x80 {
		t.Errorf("first bar bytes = % x", b[14:18])
	}

	p, err := ParsePacket(b)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if p.Sequence != 0x01020304 || p.Timestamp != 0x0A0B0C0D0E0F1011 {
		t.Errorf("header = %+v", p)
	}
	if len(p.Bars) != 2 || p.Bars[0] != 1 || p.Bars[1] != 0.5 {
		t.Errorf("bars = %v", p.Bars)
	}
}

func TestParsePacketErrors(t *testing.T) {
	if _, err := ParsePacket(make([]byte, HeaderSize-1)); err == nil {
		t.Error("expected error for short packet")
	}
	b := AppendPacket(nil, 1, 1, []float32{1, 2, 3})
	if _, err := ParsePacket(b[:len(b)-1]); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestAppendPacketNoAlloc(t *testing.T) {
	bars := make([]float32, 24)
	buf := make([]byte, 0, HeaderSize+4*len(bars))
	allocs := testing.AllocsPerRun(100, func() {
		buf = AppendPacket(buf[:0], 7, 42, bars)
	})
	if allocs != 0 {
		t.Errorf("AppendPacket allocated %.0f times, want 0", allocs)
	}
}

func TestNewPublisherValidation(t *testing.T) {
	src := &fakeBars{bars: make([]float32, 4)}
	if _, err := NewPublisher(time.Millisecond, nil, src); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewPublisher(time.Millisecond, &captureSender{}, nil); err == nil {
		t.Error("expected error for nil source")
	}
	p, err := NewPublisher(0, &captureSender{}, src)
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultInterval)
	}
}

func TestPublisherBuildsSequentialPackets(t *testing.T) {
	src := &fakeBars{bars: []float32{0.1, 0.2, 0.3}}
	sink := &captureSender{}
	p, err := NewPublisher(time.Hour, sink, src)
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Unix(0, 12345)
	p.now = func() time.Time { return fixed }

	p.buildAndSendPacket()
	p.buildAndSendPacket()

	if sink.count() != 2 {
		t.Fatalf("sent %d packets, want 2", sink.count())
	}
	for i, raw := range sink.packets {
		pkt, err := ParsePacket(raw)
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if pkt.Sequence != uint32(i+1) {
			t.Errorf("packet %d sequence = %d", i, pkt.Sequence)
		}
		if pkt.Timestamp != 12345 {
			t.Errorf("packet %d timestamp = %d", i, pkt.Timestamp)
		}
		if len(pkt.Bars) != 3 || pkt.Bars[2] != 0.3 {
			t.Errorf("packet %d bars = %v", i, pkt.Bars)
		}
	}

	// A failing source skips the packet without consuming a sequence number.
	src.mu.Lock()
	src.err = errors.New("not ready")
	src.mu.Unlock()
	p.buildAndSendPacket()
	if sink.count() != 2 || p.Sequence() != 2 {
		t.Errorf("failing source: packets=%d seq=%d", sink.count(), p.Sequence())
	}
}

func TestPublisherOverLoopback(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	defer sender.Close()

	src := &fakeBars{bars: []float32{0.25, 0.75}}
	p, err := NewPublisher(5*time.Millisecond, sender, src)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	p.Start() // no-op while running
	defer p.Close()

	buf := make([]byte, 1500)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	pkt, err := ParsePacket(buf[:n])
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if len(pkt.Bars) != 2 || pkt.Bars[0] != 0.25 || pkt.Bars[1] != 0.75 {
		t.Errorf("bars = %v", pkt.Bars)
	}
	if pkt.Sequence == 0 {
		t.Error("sequence should start at 1")
	}

	if err := p.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestSenderClose(t *testing.T) {
	s, err := NewSender("127.0.0.1:9")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := s.Send([]byte{1}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send after Close = %v, want ErrSenderClosed", err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not an address"); err == nil {
		t.Error("expected resolve error")
	}
}
