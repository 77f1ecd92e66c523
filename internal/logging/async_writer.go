package logging

import (
	"os"
	"sync"
	"sync/atomic"
)

// AsyncWriter buffers log lines on a channel and writes them from a single
// goroutine. Lines are dropped rather than blocking when the buffer is full.
type AsyncWriter struct {
	buffer  chan []byte
	file    *os.File
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

func NewAsyncWriter(path string, bufferSize int) (*AsyncWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	aw := &AsyncWriter{
		buffer: make(chan []byte, bufferSize),
		file:   file,
		done:   make(chan struct{}),
	}

	aw.wg.Add(1)
	go aw.writeLoop()

	return aw, nil
}

// Write copies p since zerolog reuses its event buffers.
func (aw *AsyncWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)

	select {
	case aw.buffer <- line:
	default:
		aw.dropped.Add(1)
	}
	return len(p), nil
}

func (aw *AsyncWriter) Dropped() uint64 {
	return aw.dropped.Load()
}

func (aw *AsyncWriter) writeLoop() {
	defer aw.wg.Done()
	for {
		select {
		case data := <-aw.buffer:
			_, _ = aw.file.Write(data)
		case <-aw.done:
			for {
				select {
				case data := <-aw.buffer:
					_, _ = aw.file.Write(data)
				default:
					return
				}
			}
		}
	}
}

func (aw *AsyncWriter) Close() error {
	var err error
	aw.once.Do(func() {
		close(aw.done)
		aw.wg.Wait()
		err = aw.file.Close()
	})
	return err
}
