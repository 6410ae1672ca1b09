// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"time"

	"audioviz/internal/log"
	"audioviz/internal/transport"
	"audioviz/internal/visual"
)

// DefaultInterval paces packets at roughly 60 Hz.
const DefaultInterval = 16 * time.Millisecond

// Publisher keeps the most recent visual frame handed to Send and, on its
// own ticker, packs it into the binary format and sends it with a Sender.
// A frame is sent at most once; ticks with nothing new send nothing.
type Publisher struct {
	sender   *Sender
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	frameMu sync.Mutex
	pending *visual.Frame

	// Owned by the publisher goroutine.
	sequenceNum uint32
	packet      []byte
}

// NewPublisher creates a publisher. Intervals <= 0 use DefaultInterval.
func NewPublisher(interval time.Duration, sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		log.Debugf("UDPPublisher: defaulting interval to %s", interval)
	}
	return &Publisher{
		sender:   sender,
		interval: interval,
		packet:   make([]byte, 0, headerSize+4*512),
	}, nil
}

// Dial connects to target and starts publishing.
func Dial(target string, interval time.Duration) (*Publisher, error) {
	sender, err := NewSender(target)
	if err != nil {
		return nil, err
	}
	p, err := NewPublisher(interval, sender)
	if err != nil {
		sender.Close()
		return nil, err
	}
	p.Start()
	return p, nil
}

// Send stores frame for the next tick. Payloads other than visual.Frame or
// *visual.Frame are rejected.
func (p *Publisher) Send(data any) error {
	var frame visual.Frame
	switch v := data.(type) {
	case visual.Frame:
		frame = v
	case *visual.Frame:
		if v == nil {
			return fmt.Errorf("UDPPublisher: nil frame")
		}
		frame = *v
	default:
		return fmt.Errorf("UDPPublisher: unsupported payload %T", data)
	}

	p.frameMu.Lock()
	p.pending = &frame
	p.frameMu.Unlock()
	return nil
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warn("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("UDPPublisher: started (interval %s, target %s)", p.interval, p.sender.Target())
		for {
			select {
			case <-ticker.C:
				p.publishPending()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine to exit and waits for it. Safe to call more
// than once.
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
	log.Debug("UDPPublisher: stopped")
	return nil
}

// publishPending sends the stored frame, if any.
func (p *Publisher) publishPending() {
	p.frameMu.Lock()
	frame := p.pending
	p.pending = nil
	p.frameMu.Unlock()

	if frame == nil {
		return
	}

	p.sequenceNum++
	p.packet = appendPacket(p.packet[:0], p.sequenceNum, frame)
	if err := p.sender.Send(p.packet); err != nil {
		return
	}
	log.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(p.packet))
}

// Close stops publishing and closes the sender.
func (p *Publisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ transport.Transport = (*Publisher)(nil)
