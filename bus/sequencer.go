package bus

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	RequestWrite = iota + 1
	RequestRead
	RequestWriteRead
)

var ErrSequencerStopped = errors.New("I2C sequencer is stopped")

type Request struct {
	Type      int
	Addr      byte
	DataWrite []byte
	DataRead  []byte
	Error     error

	done bool
	wait *sync.Cond
}

func (r *Request) init() {
	r.wait = &sync.Cond{L: new(sync.Mutex)}
}

func (r *Request) Wait() {
	r.wait.L.Lock()
	defer r.wait.L.Unlock()
	for !r.done {
		r.wait.Wait()
	}
}

func (r *Request) notifyDone() {
	r.wait.L.Lock()
	defer r.wait.L.Unlock()
	r.done = true
	r.wait.Broadcast()
}

// Sequencer executes all requests on a single goroutine, in the order they were queued.
// This is required for transports that must not be used concurrently, like the FT260 USB HID bridge.
type Sequencer struct {
	Transport Transport
	QueueSize int

	queue   chan *Request
	lock    sync.RWMutex
	stopped bool
}

func NewSequencer(t Transport, queueSize int) *Sequencer {
	return &Sequencer{
		Transport: t,
		QueueSize: queueSize,
	}
}

func (s *Sequencer) Start() {
	s.queue = make(chan *Request, s.QueueSize)
	go s.handleRequests()
}

// Stop makes all further requests fail with ErrSequencerStopped. Requests that are
// already queued are still executed.
func (s *Sequencer) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.stopped && s.queue != nil {
		close(s.queue)
	}
	s.stopped = true
}

func (s *Sequencer) handleRequests() {
	for req := range s.queue {
		switch req.Type {
		case RequestWrite:
			req.Error = s.Transport.I2cWrite(req.Addr, req.DataWrite...)
		case RequestRead:
			req.Error = s.Transport.I2cRead(req.Addr, req.DataRead)
		case RequestWriteRead:
			req.Error = s.Transport.I2cWriteRead(req.Addr, req.DataWrite, req.DataRead)
		default:
			log.Errorln("Ignoring invalid I2C request with type", req.Type)
			req.Error = errors.New("invalid I2C request type")
		}
		req.notifyDone()
	}
}

func (s *Sequencer) QueueRequest(req *Request) error {
	req.init()
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.stopped || s.queue == nil {
		return ErrSequencerStopped
	}
	s.queue <- req
	return nil
}

func (s *Sequencer) Request(req *Request) error {
	if err := s.QueueRequest(req); err != nil {
		return err
	}
	req.Wait()
	return req.Error
}

func (s *Sequencer) I2cWrite(addr byte, data ...byte) error {
	return s.Request(&Request{
		Type:      RequestWrite,
		Addr:      addr,
		DataWrite: data,
	})
}

func (s *Sequencer) I2cRead(addr byte, data []byte) error {
	return s.Request(&Request{
		Type:     RequestRead,
		Addr:     addr,
		DataRead: data,
	})
}

func (s *Sequencer) I2cWriteRead(addr byte, out, in []byte) error {
	return s.Request(&Request{
		Type:      RequestWriteRead,
		Addr:      addr,
		DataWrite: out,
		DataRead:  in,
	})
}
