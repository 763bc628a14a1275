// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"sync"
	"time"

	"visbridge/internal/analysis"
)

// DefaultInterval is used when a non-positive interval is configured (~60Hz).
const DefaultInterval = 16 * time.Millisecond

// PacketSender transmits one encoded packet. *Sender implements it.
type PacketSender interface {
	Send(packet []byte) error
}

// Publisher periodically snapshots the latest bars from an analyzer, packs
// them into the binary packet format and sends them with a PacketSender.
// It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	sender   PacketSender
	source   analysis.BarsProvider
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Pre-allocated so buildAndSendPacket does not allocate.
	bars   []float32
	packet []byte
}

// NewPublisher creates a Publisher. If the provided interval is invalid
// (<= 0), it defaults to DefaultInterval.
func NewPublisher(interval time.Duration, sender PacketSender, source analysis.BarsProvider) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("udp publisher: bars source cannot be nil")
	}
	n := source.BarCount()
	if n > MaxBars {
		return nil, errors.New("udp publisher: bar count does not fit the packet header")
	}

	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("Invalid interval provided, defaulting to %s", interval)
	}

	logger.Infof("Initializing publisher (Interval: %s, Bars: %d)", interval, n)

	return &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		now:      time.Now,
		bars:     make([]float32, n),
		packet:   make([]byte, 0, HeaderSize+4*n),
	}, nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Local copies so the goroutine never reads the fields Stop resets.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Debugf("Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. It is safe to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("Publisher stopped after %d packets", p.Sequence())
	return nil
}

// Sequence returns the number of the last packet built.
func (p *Publisher) Sequence() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequenceNum
}

// buildAndSendPacket runs on each tick:
// 1. Snapshot the latest bars.
// 2. Pack sequence, timestamp, count and bars.
// 3. Send the packet.
func (p *Publisher) buildAndSendPacket() {
	if err := p.source.GetBarsInto(p.bars); err != nil {
		logger.Errorf("Error getting bars: %v", err)
		return
	}

	p.mu.Lock()
	p.sequenceNum++
	seq := p.sequenceNum
	p.mu.Unlock()

	p.packet = AppendPacket(p.packet[:0], seq, p.now().UnixNano(), p.bars)

	// Send failures are transient (no listener yet); the next tick retries.
	if err := p.sender.Send(p.packet); err == nil {
		logger.Debugf("Sent packet %d (%d bytes)", seq, len(p.packet))
	}
}

// Close implements io.Closer. It stops the publisher goroutine.
func (p *Publisher) Close() error {
	return p.Stop()
}

// Ensure Publisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Publisher)(nil)
