package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PN532 command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInListPassiveTarget = 0x4A
)

const (
	samNormalMode     = 0x01
	cfgItemMaxRetries = 0x05
	brTy106kbpsTypeA  = 0x00
	brTy212kbpsFeliCa = 0x01
	feliCaPollingCmd  = 0x00
	feliCaRespCode    = 0x01
)

// ErrLinkClosed is returned once the serial link has gone away.
var ErrLinkClosed = errors.New("pn532: link closed")

// PN532 implements Transport for a PN532 on an HSU (UART) link.
type PN532 struct {
	port    io.ReadWriteCloser
	reset   *ResetLine
	retries byte
	log     zerolog.Logger

	ackTimeout time.Duration
	cmdTimeout time.Duration

	rx        chan []byte
	done      chan struct{}
	pending   []byte
	awake     bool
	closeOnce sync.Once
}

// NewPN532 wraps an open serial link. reset may be nil.
func NewPN532(port io.ReadWriteCloser, reset *ResetLine, retries byte, log zerolog.Logger) *PN532 {
	p := &PN532{
		port:       port,
		reset:      reset,
		retries:    retries,
		log:        log,
		ackTimeout: 50 * time.Millisecond,
		cmdTimeout: time.Second,
		rx:         make(chan []byte, 16),
		done:       make(chan struct{}),
	}
	go p.pump()
	return p
}

// Initialize implements Transport.Initialize.
func (p *PN532) Initialize() (Firmware, error) {
	if p.reset != nil {
		if err := p.reset.Pulse(); err != nil {
			return Firmware{}, fmt.Errorf("reset: %w", err)
		}
	}
	p.awake = false

	resp, err := p.call(cmdGetFirmwareVersion, nil, p.cmdTimeout)
	if err != nil {
		return Firmware{}, fmt.Errorf("get firmware version: %w", err)
	}
	if len(resp) < 4 {
		return Firmware{}, fmt.Errorf("get firmware version: %w", ErrBadFrame)
	}
	fw := Firmware{IC: resp[0], Version: resp[1], Revision: resp[2], Support: resp[3]}

	// Bound the chip's own activation retries; the host-side timeout aborts
	// anything longer.
	if _, err := p.call(cmdRFConfiguration, []byte{cfgItemMaxRetries, 0xFF, 0x01, p.retries}, p.cmdTimeout); err != nil {
		return fw, fmt.Errorf("set passive activation retries: %w", err)
	}
	if _, err := p.call(cmdSAMConfiguration, []byte{samNormalMode, 0x14, 0x01}, p.cmdTimeout); err != nil {
		return fw, fmt.Errorf("sam config: %w", err)
	}
	return fw, nil
}

// PollFeliCa implements Transport.PollFeliCa. It polls for any system code.
func (p *PN532) PollFeliCa(timeout time.Duration) (FeliCaTarget, bool, error) {
	params := []byte{0x01, brTy212kbpsFeliCa, feliCaPollingCmd, 0xFF, 0xFF, 0x00, 0x00}
	resp, err := p.call(cmdInListPassiveTarget, params, timeout)
	if errors.Is(err, ErrNoResponse) {
		return FeliCaTarget{}, false, nil
	}
	if err != nil {
		return FeliCaTarget{}, false, fmt.Errorf("felica polling: %w", err)
	}
	return parseFeliCa(resp)
}

// PollISO14443A implements Transport.PollISO14443A.
func (p *PN532) PollISO14443A(timeout time.Duration) (ISO14443ATarget, bool, error) {
	resp, err := p.call(cmdInListPassiveTarget, []byte{0x01, brTy106kbpsTypeA}, timeout)
	if errors.Is(err, ErrNoResponse) {
		return ISO14443ATarget{}, false, nil
	}
	if err != nil {
		return ISO14443ATarget{}, false, fmt.Errorf("iso14443a polling: %w", err)
	}
	return parseISO14443A(resp)
}

// Close implements Transport.Close.
func (p *PN532) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.port.Close()
		if p.reset != nil {
			p.reset.Close()
		}
	})
	return err
}

// call sends cmd, waits for the ACK and then up to timeout for the response.
// A command that times out is aborted so the chip is ready for the next one.
func (p *PN532) call(cmd byte, params []byte, timeout time.Duration) ([]byte, error) {
	p.drain()

	out := encodeFrame(cmd, params)
	if !p.awake {
		out = append(append([]byte(nil), wakeUp...), out...)
	}
	if _, err := p.port.Write(out); err != nil {
		return nil, fmt.Errorf("write command %#02x: %w", cmd, err)
	}

	if err := p.waitAck(time.Now().Add(p.ackTimeout)); err != nil {
		return nil, err
	}
	p.awake = true

	f, err := p.readFrame(time.Now().Add(timeout))
	if err != nil {
		if errors.Is(err, ErrNoResponse) {
			p.abort()
		}
		return nil, err
	}
	if f.ack || len(f.body) == 0 || f.body[0] != cmd+1 {
		return nil, errUnsupported
	}
	return f.body[1:], nil
}

func (p *PN532) waitAck(deadline time.Time) error {
	for {
		f, err := p.readFrame(deadline)
		switch {
		case errors.Is(err, ErrNoResponse):
			return ErrNoAck
		case errors.Is(err, ErrBadFrame):
			continue
		case err != nil:
			return err
		case f.ack:
			return nil
		}
		// A late response to an aborted command; skip it.
	}
}

// abort cancels the command in progress. An ACK from the host is the
// PN532's abort signal.
func (p *PN532) abort() {
	if _, err := p.port.Write(ackFrame); err != nil {
		p.log.Debug().Err(err).Msg("abort command")
	}
}

func (p *PN532) readFrame(deadline time.Time) (frame, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		if len(p.pending) > 0 {
			f, n, err := decodeFrame(p.pending)
			p.pending = p.pending[n:]
			if err == nil {
				return f, nil
			}
			if err != errIncomplete {
				return frame{}, err
			}
		}

		select {
		case chunk, ok := <-p.rx:
			if !ok {
				return frame{}, ErrLinkClosed
			}
			p.pending = append(p.pending, chunk...)
		case <-timer.C:
			return frame{}, ErrNoResponse
		}
	}
}

// drain discards anything received since the last command.
func (p *PN532) drain() {
	p.pending = p.pending[:0]
	for {
		select {
		case _, ok := <-p.rx:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// pump copies bytes from the serial port to rx so reads can honour
// sub-decisecond deadlines.
func (p *PN532) pump() {
	defer close(p.rx)

	buf := make([]byte, 64)
	for {
		n, err := p.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.rx <- chunk:
			case <-p.done:
				return
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			select {
			case <-p.done:
			default:
				p.log.Error().Err(err).Msg("serial read")
			}
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
	}
}

func parseFeliCa(resp []byte) (FeliCaTarget, bool, error) {
	if len(resp) < 1 || resp[0] == 0 {
		return FeliCaTarget{}, false, nil
	}
	// NbTg, Tg, POL_RES length, response code, IDm, PMm, [system code]
	if len(resp) < 20 || resp[3] != feliCaRespCode {
		return FeliCaTarget{}, false, fmt.Errorf("felica response: %w", ErrBadFrame)
	}

	var t FeliCaTarget
	copy(t.IDm[:], resp[4:12])
	copy(t.PMm[:], resp[12:20])
	if resp[2] >= 0x14 && len(resp) >= 22 {
		t.SystemCode = binary.BigEndian.Uint16(resp[20:22])
	}
	return t, true, nil
}

func parseISO14443A(resp []byte) (ISO14443ATarget, bool, error) {
	if len(resp) < 1 || resp[0] == 0 {
		return ISO14443ATarget{}, false, nil
	}
	// NbTg, Tg, SENS_RES(2), SEL_RES, NFCID length, NFCID
	if len(resp) < 6 {
		return ISO14443ATarget{}, false, fmt.Errorf("iso14443a response: %w", ErrBadFrame)
	}
	n := int(resp[5])
	if n == 0 || len(resp) < 6+n {
		return ISO14443ATarget{}, false, fmt.Errorf("iso14443a uid length %d: %w", n, ErrBadFrame)
	}

	t := ISO14443ATarget{
		UID:     make([]byte, n),
		SensRes: binary.BigEndian.Uint16(resp[2:4]),
		SelRes:  resp[4],
	}
	copy(t.UID, resp[6:6+n])
	return t, true, nil
}
