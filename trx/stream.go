package trx

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

const rxStreamBufferSize = 2 * InternalRate

// NewRXAudioStream returns a stream that buffers the engine's receive audio
// for a modem that pulls samples at its own pace. Register it on the engine
// with Notify.
func NewRXAudioStream() *RXAudioStream {
	return &RXAudioStream{
		closed:   make(chan struct{}),
		rxBuffer: newSampleBuffer(rxStreamBufferSize),
		rxWait:   make(chan bool, 1),
	}
}

// RXAudioStream adapts the engine's push-style receive audio to a blocking
// Read. The samples are float PCM at InternalRate. When the consumer falls
// behind for more than the buffer capacity, the oldest samples are dropped.
type RXAudioStream struct {
	closed   chan struct{}
	rxBuffer *sampleBuffer
	rxWait   chan bool
}

// RXAudio implements RXAudioListener, it is called on the engine's poll
// goroutine.
func (s *RXAudioStream) RXAudio(samples []float32) {
	select {
	case <-s.closed:
		return
	default:
	}

	s.rxBuffer.Write(samples)
	select {
	case s.rxWait <- true:
	default:
	}
}

// Read fills to with buffered samples, blocking until at least one sample is
// available or the stream is closed.
func (s *RXAudioStream) Read(to []float32) (int, error) {
	if !s.rxBuffer.HasNext() {
		select {
		case <-s.rxWait:
		case <-s.closed:
			return 0, ErrLinkClosed
		}
	} else {
		select {
		case <-s.rxWait:
		default:
		}
	}
	return s.rxBuffer.Read(to)
}

// SampleRate of this stream, always InternalRate.
func (s *RXAudioStream) SampleRate() int {
	return InternalRate
}

func (s *RXAudioStream) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
		return nil
	}
}

/*
	SampleBuffer
*/

func newSampleBuffer(capacity int) *sampleBuffer {
	if capacity < 1 {
		panic("sampleBuffer must have a capacity > 0")
	}
	return &sampleBuffer{samples: make([]float32, capacity+1)}
}

type sampleBuffer struct {
	mutex   sync.Mutex
	read    int
	write   int
	samples []float32
}

func (b *sampleBuffer) String() string {
	return fmt.Sprintf("buffer: read %04d write %04d", b.read, b.write)
}

func (b *sampleBuffer) Length() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.length()
}

func (b *sampleBuffer) length() int {
	switch {
	case b.write == b.read:
		return 0
	case b.write < b.read:
		return len(b.samples) - (b.read - b.write)
	default:
		return b.write - b.read
	}
}

func (b *sampleBuffer) Read(to []float32) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	capacity := len(b.samples)
	count := len(to)
	if count > b.length() {
		count = b.length()
	}

	if b.read+count < capacity {
		copy(to, b.samples[b.read:b.read+count])
		b.read += count
		return count, nil
	}

	pivot := capacity - b.read
	remainder := count - pivot
	copy(to, b.samples[b.read:capacity])
	copy(to[pivot:], b.samples[0:remainder])
	b.read = remainder

	return count, nil
}

func (b *sampleBuffer) HasNext() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.read != b.write
}

func (b *sampleBuffer) Write(from []float32) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	capacity := len(b.samples)
	count := len(from)
	newWrite := (b.write + count) % capacity

	if count > capacity {
		pivot := count - newWrite
		copy(b.samples[0:newWrite], from[pivot:count])
		copy(b.samples[newWrite:], from[pivot-(capacity-newWrite):pivot])

		log.Printf("buffer overflow, dropping %d samples (0)", newWrite-b.read)
		b.read = (newWrite + 1) % capacity
		b.write = newWrite
		return count, nil
	}

	if b.write+count >= capacity {
		pivot := capacity - b.write
		copy(b.samples[b.write:], from[0:pivot])
		copy(b.samples, from[pivot:])

		if newWrite >= b.read {
			log.Printf("buffer overflow, dropping %d samples (1)", newWrite-b.read)
			b.read = (newWrite + 1) % capacity
		}
		b.write = newWrite
		return count, nil
	}

	copy(b.samples[b.write:], from)

	if b.write < b.read && newWrite >= b.read {
		log.Printf("buffer overflow, dropping %d samples (2)", newWrite-b.read)
		b.read = (newWrite + 1) % capacity
	}
	b.write = newWrite
	return count, nil
}
