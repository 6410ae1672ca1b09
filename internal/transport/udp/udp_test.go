// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"io"
	"math"
	"net"
	"testing"
	"time"

	"audioviz/internal/log"
	"audioviz/internal/visual"
)

func init() {
	log.SetOutput(io.Discard)
}

func listen(t *testing.T) net.PacketConn {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("UDP loopback unavailable: %v", err)
	}
	t.Cleanup(func() { pc.Close() })
	return pc
}

func readPacket(t *testing.T, pc net.PacketConn) Packet {
	t.Helper()
	buf := make([]byte, 65535)
	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	p, err := DecodePacket(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func TestPacketLayout(t *testing.T) {
	stamp := time.Unix(1700000000, 123)
	f := visual.Frame{Timestamp: stamp, RMS: 0.5, Beat: true, Bars: []float64{0.25, 1}}

	b := appendPacket(nil, 7, &f)
	if len(b) != headerSize+8 {
		t.Fatalf("packet length = %d, want %d", len(b), headerSize+8)
	}
	// Sequence number is big endian in the first four bytes.
	if b[0] != 0 || b[3] != 7 || b[16] != 1 || b[18] != 2 {
		t.Errorf("unexpected header bytes: % x", b[:headerSize])
	}

	p, err := DecodePacket(b)
	if err != nil {
		t.Fatal(err)
	}
	if p.Seq != 7 || !p.Timestamp.Equal(stamp) || p.RMS != 0.5 || !p.Beat {
		t.Errorf("decoded header = %+v", p)
	}
	if len(p.Values) != 2 || p.Values[0] != 0.25 || p.Values[1] != 1 {
		t.Errorf("values = %v", p.Values)
	}
}

func TestPacket_WaveformFrame(t *testing.T) {
	f := visual.Frame{Waveform: []float64{-1, 0, 1}}
	p, err := DecodePacket(appendPacket(nil, 1, &f))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Values) != 3 || p.Values[0] != -1 || p.Beat {
		t.Errorf("decoded = %+v", p)
	}
}

func TestPacket_TooManyValues(t *testing.T) {
	f := visual.Frame{Bars: make([]float64, MaxValues+10)}
	b := appendPacket(nil, 1, &f)
	if len(b) > 65507 {
		t.Errorf("packet of %d bytes does not fit a datagram", len(b))
	}
}

func TestDecodePacket_Short(t *testing.T) {
	if _, err := DecodePacket(make([]byte, 5)); !errors.Is(err, ErrShortPacket) {
		t.Errorf("short header: %v", err)
	}

	f := visual.Frame{Bars: []float64{1, 2, 3}}
	b := appendPacket(nil, 1, &f)
	if _, err := DecodePacket(b[:len(b)-1]); !errors.Is(err, ErrShortPacket) {
		t.Errorf("truncated payload: %v", err)
	}
}

func TestPublisher_SendsLatestFrame(t *testing.T) {
	pc := listen(t)

	p, err := Dial(pc.LocalAddr().String(), 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer p.Close()

	if err := p.Send(visual.Frame{RMS: 0.1, Bars: []float64{0.5}}); err != nil {
		t.Fatal(err)
	}
	got := readPacket(t, pc)
	if got.Seq != 1 || math.Abs(float64(got.RMS)-0.1) > 1e-6 || len(got.Values) != 1 {
		t.Errorf("first packet = %+v", got)
	}

	if err := p.Send(&visual.Frame{Beat: true}); err != nil {
		t.Fatal(err)
	}
	got = readPacket(t, pc)
	if got.Seq != 2 || !got.Beat {
		t.Errorf("second packet = %+v", got)
	}
}

func TestPublisher_RejectsOtherPayloads(t *testing.T) {
	pc := listen(t)
	sender, err := NewSender(pc.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPublisher(0, sender)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.interval != DefaultInterval {
		t.Errorf("interval = %s, want default", p.interval)
	}
	if err := p.Send("hello"); err == nil {
		t.Error("string payload accepted")
	}
	if err := p.Send((*visual.Frame)(nil)); err == nil {
		t.Error("nil frame accepted")
	}
}

func TestPublisher_StartStop(t *testing.T) {
	pc := listen(t)
	sender, err := NewSender(pc.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPublisher(time.Millisecond, sender)
	if err != nil {
		t.Fatal(err)
	}

	p.Start()
	p.Start()
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sender.Send([]byte{1}); err == nil {
		t.Error("sender still open after Close")
	}
}

func TestNewPublisher_NilSender(t *testing.T) {
	if _, err := NewPublisher(time.Millisecond, nil); err == nil {
		t.Error("nil sender accepted")
	}
}

func TestNewSender_BadAddress(t *testing.T) {
	if _, err := NewSender("not an address"); err == nil {
		t.Error("bad address accepted")
	}
}
