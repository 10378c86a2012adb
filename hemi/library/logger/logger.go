// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Logger writes log lines to a file asynchronously. Lines are appended to one of two
// queues while a saver runner flushes the other one to disk.

package logger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Logger
type Logger struct {
	// States
	filePath string   // file prefix indeed
	rotate   string   // "", "day", "hour"
	cantOpen bool     // failed to open/create the file?
	absPath  string   // absolute file path (with suffix)
	osFile   *os.File // opened file cache for absPath
	// Queues
	mutex    sync.Mutex // protects following queues
	queueOne *logQueue
	queueTwo *logQueue
	qCurrent *logQueue // nil after close
	final    *logQueue // the final queue on close
	// Clock
	nowLock sync.RWMutex
	now     []byte
	// Runners
	stop chan struct{} // closed on Close()
	done chan struct{} // closed after final save
}

const (
	timeFormat    = "[2006-01-02 15:04:05.000] "
	clockInterval = 47 * time.Millisecond
	saveInterval  = 97 * time.Millisecond
)

// New creates a logger which appends to filePath. If rotate is "day" or "hour", a date
// suffix is appended to filePath and a new file is used when the suffix changes.
func New(filePath string, rotate string) *Logger {
	l := new(Logger)
	l.filePath = filePath
	l.rotate = rotate
	l.queueOne = newLogQueue(8)
	l.queueTwo = newLogQueue(8)
	l.qCurrent = l.queueOne
	l.now = make([]byte, 0, len(timeFormat))
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.setTime()
	go l.clock()
	go l.saver()
	return l
}

func (l *Logger) setTime() {
	l.nowLock.Lock()
	l.now = time.Now().AppendFormat(l.now[:0], timeFormat)
	l.nowLock.Unlock()
}
func (l *Logger) clock() { // runner
	ticker := time.NewTicker(clockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.setTime()
		}
	}
}

func (l *Logger) Log(v ...any)            { l.write(fmt.Sprint(v...)) }
func (l *Logger) Logln(v ...any)          { l.write(fmt.Sprintln(v...)) }
func (l *Logger) Logf(f string, v ...any) { l.write(fmt.Sprintf(f, v...)) }

func (l *Logger) write(s string) {
	l.mutex.Lock()
	if l.qCurrent != nil {
		l.nowLock.RLock()
		l.qCurrent.log(string(l.now))
		l.nowLock.RUnlock()
		l.qCurrent.log(s)
	}
	l.mutex.Unlock()
}

// Close stops accepting logs and blocks until queued logs are saved.
func (l *Logger) Close() {
	l.mutex.Lock()
	if l.qCurrent == nil { // already closed
		l.mutex.Unlock()
		return
	}
	l.final = l.qCurrent
	l.qCurrent = nil
	l.mutex.Unlock()
	close(l.stop)
	<-l.done
}

func (l *Logger) saver() { // runner
	defer close(l.done)
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			l.save(l.final, true)
			return
		case <-ticker.C:
		}

		// Switch current queue between queue one and queue two.
		var dirty *logQueue
		l.mutex.Lock()
		if l.qCurrent == l.queueOne {
			l.qCurrent = l.queueTwo
			dirty = l.queueOne
		} else if l.qCurrent == l.queueTwo {
			l.qCurrent = l.queueOne
			dirty = l.queueTwo
		}
		l.mutex.Unlock()

		if dirty != nil && !dirty.isEmpty {
			l.save(dirty, false)
		}
	}
}

func (l *Logger) save(queue *logQueue, forceClose bool) {
	if l.cantOpen {
		return
	}

	absPath := l.filePath
	switch l.rotate {
	case "day":
		absPath += "." + time.Now().Format("2006-01-02")
	case "hour":
		absPath += "." + time.Now().Format("2006-01-02.15")
	}

	if l.absPath != absPath {
		if l.osFile != nil {
			l.osFile.Close()
			l.osFile = nil
		}
		file, err := os.OpenFile(absPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			l.cantOpen = true
			fmt.Fprintf(os.Stderr, "logger: cannot open %s: %s\n", absPath, err.Error())
			return
		}
		l.absPath = absPath
		l.osFile = file
	}

	queue.saveTo(l.osFile)

	if forceClose {
		l.osFile.Close()
		l.osFile = nil
		l.absPath = ""
	}
}

// logQueue is a linked list of fixed size blocks.
type logQueue struct {
	nBlocks int
	isEmpty bool
	head    *logBlock
	tail    *logBlock
	free    *logBlock // first block that has free space
}

func newLogQueue(nBlocks int) *logQueue {
	if nBlocks < 1 {
		nBlocks = 1
	}
	q := new(logQueue)
	q.nBlocks = nBlocks
	q.isEmpty = true
	q.head = new(logBlock)
	block := q.head
	for i := 1; i < nBlocks; i++ {
		block.next = new(logBlock)
		block = block.next
	}
	q.tail = block
	q.free = q.head
	return q
}

func (q *logQueue) log(s string) {
	q.isEmpty = false
	for logged := 0; logged != len(s); {
		if q.free == nil {
			if !q.grow(len(s) - logged) { // no room left, drop the rest
				return
			}
		}
		logged += q.free.write(s[logged:])
		if q.free.isFull() {
			q.free = q.free.next
		}
	}
}

func (q *logQueue) grow(need int) bool {
	const maxBlocks = 4096 // max 4096 * 16KiB = 64MiB per queue
	if q.nBlocks == maxBlocks || (maxBlocks-q.nBlocks)*logBlockSize < need {
		return false
	}
	nMore := q.nBlocks
	if nMore > maxBlocks/8 {
		nMore = maxBlocks / 8
	}
	if q.nBlocks+nMore > maxBlocks {
		nMore = maxBlocks - q.nBlocks
	}
	head := new(logBlock)
	q.tail.next = head
	q.free = head
	block := head
	for i := 1; i < nMore; i++ {
		block.next = new(logBlock)
		block = block.next
	}
	q.tail = block
	q.nBlocks += nMore
	return true
}

func (q *logQueue) saveTo(file *os.File) {
	saved := 0
	for block := q.head; block != nil && !block.isFree(); block = block.next {
		file.Write(block.take())
		saved++
	}
	if saved > 0 {
		file.Sync()
	}
	q.free = q.head
	q.isEmpty = true
}

const logBlockSize = 16368

// logBlock
type logBlock struct {
	next *logBlock
	used int
	logs [logBlockSize]byte
}

func (b *logBlock) write(s string) int {
	n := copy(b.logs[b.used:], s)
	b.used += n
	return n
}

func (b *logBlock) isFull() bool { return b.used == len(b.logs) }
func (b *logBlock) isFree() bool { return b.used == 0 }

func (b *logBlock) take() []byte {
	logs := b.logs[:b.used]
	b.used = 0
	return logs
}
