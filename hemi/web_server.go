// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// The static server. One dispatcher goroutine owns all connection state and handles framed
// requests one at a time. Runners only accept connections and frame requests.

package hemi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hexinfra/minirox/hemi/library/system"
)

const maxRequestSize = 1 << 20

// Server
type Server struct {
	// Assocs
	policy *Policy
	tables *Tables
	logger Logger
	gate   *serverGate
	// States
	accepted chan net.Conn
	framed   chan *serverConn
	quit     chan struct{} // closed on shutdown
	subs     sync.WaitGroup
	serving  atomic.Bool
	// Owned by the dispatcher
	conns  map[*serverConn]struct{}
	nextID int64
}

// NewServer creates a server. Open or Serve starts listening.
func NewServer(policy *Policy, tables *Tables, logger Logger) *Server {
	s := new(Server)
	s.policy = policy
	s.tables = tables
	s.logger = logger
	s.accepted = make(chan net.Conn)
	s.framed = make(chan *serverConn)
	s.quit = make(chan struct{})
	s.conns = make(map[*serverConn]struct{})
	return s
}

// Open opens the listener.
func (s *Server) Open() error {
	if s.gate != nil {
		return nil
	}
	gate := new(serverGate)
	gate.init(s)
	if err := gate.Open(); err != nil {
		return err
	}
	s.gate = gate
	return nil
}

// Addr returns the listening address. It is nil before Open.
func (s *Server) Addr() net.Addr {
	if s.gate == nil {
		return nil
	}
	return s.gate.listener.Addr()
}

// Serve runs the dispatcher until ctx is done. Open is called if it was not.
func (s *Server) Serve(ctx context.Context) error {
	if !s.serving.CompareAndSwap(false, true) {
		return errors.New("server is already serving")
	}
	if err := s.Open(); err != nil {
		return err
	}
	s.logger.Logf("server listening at %s\n", s.Addr())

	s.subs.Add(1)
	go s.gate.serveTCP()
	for {
		select {
		case <-ctx.Done():
			s.shut()
			s.logger.Logln("server shut")
			return nil
		case netConn := <-s.accepted:
			conn := &serverConn{server: s, netConn: netConn}
			s.conns[conn] = struct{}{}
			s.subs.Add(1)
			go conn.frame(s.policy.ReadTimeout())
		case conn := <-s.framed:
			s.dispatch(conn)
		}
	}
}

func (s *Server) shut() {
	close(s.quit)
	s.gate.Shut()
	for conn := range s.conns {
		s.closeConn(conn)
	}
	s.subs.Wait()
}

func (s *Server) closeConn(conn *serverConn) {
	if _, ok := s.conns[conn]; !ok {
		return
	}
	delete(s.conns, conn)
	conn.netConn.Close()
}

// dispatch handles one framed connection and closes it.
func (s *Server) dispatch(conn *serverConn) {
	defer s.closeConn(conn)
	if conn.err != nil && conn.nRead == 0 { // nothing received
		if DebugLevel() >= 1 {
			Printf("conn from %s closed without a request: %v\n", conn.netConn.RemoteAddr(), conn.err)
		}
		return
	}
	id := s.nextID
	s.nextID++
	wire, head := s.handle(conn, id)
	s.logger.Logf("response id=%d\n%s", id, head)
	conn.netConn.SetWriteDeadline(time.Now().Add(s.policy.ReadTimeout()))
	if _, err := conn.netConn.Write(wire); err != nil {
		s.logger.Logf("response id=%d write error: %v\n", id, err)
	}
}

// handle runs parse, build, prepare and format for a framed request. It never fails.
func (s *Server) handle(conn *serverConn, id int64) (wire []byte, head string) {
	defer func() {
		if x := recover(); x != nil {
			s.logger.Logf("request id=%d panic: %v\n", id, x)
			resp := NewErrorResponse(errImTeapot(fmt.Sprint(x)), s.policy, s.tables, id)
			wire, head = resp.Format(), resp.Head()
		}
	}()
	var resp Formatter
	if err := s.build(conn, id, &resp); err != nil {
		httpErr := AsHTTPError(err)
		s.logger.Logf("request id=%d failed: %s\n", id, httpErr.Error())
		resp = NewErrorResponse(httpErr, s.policy, s.tables, id)
	}
	return resp.Format(), resp.Head()
}

func (s *Server) build(conn *serverConn, id int64, resp *Formatter) error {
	if conn.err != nil {
		return errBadRequest("incomplete request", conn.err.Error())
	}
	req, err := ParseRequest(conn.startLine, conn.headerBlock, conn.body, s.policy, id)
	if err != nil {
		return err
	}
	s.logger.Logf("request id=%d %s %s %s\n", id, req.Method, req.Resource, req.Version)
	response, err := NewResponse(req, s.tables)
	if err != nil {
		return err
	}
	if err := response.Prepare(s.policy); err != nil {
		return err
	}
	*resp = response
	return nil
}

// serverGate is the listener of a server.
type serverGate struct {
	// Assocs
	server *Server
	// States
	listener *net.TCPListener // set after open
	shut     atomic.Bool
}

func (g *serverGate) init(server *Server) {
	g.server = server
}

func (g *serverGate) Open() error {
	policy := g.server.policy
	listenConfig := new(net.ListenConfig)
	listenConfig.Control = func(network string, address string, rawConn syscall.RawConn) error {
		if policy.ReusePort() {
			if err := system.SetReusePort(rawConn); err != nil {
				return err
			}
		}
		if policy.DeferAccept() {
			return system.SetDeferAccept(rawConn)
		}
		return nil
	}
	listener, err := listenConfig.Listen(context.Background(), "tcp4", policy.Address())
	if err != nil {
		return err
	}
	g.listener = listener.(*net.TCPListener)
	if DebugLevel() >= 1 {
		Printf("serverGate address=%s opened!\n", g.listener.Addr())
	}
	return nil
}

func (g *serverGate) Shut() error {
	g.MarkShut()
	return g.listener.Close()
}

func (g *serverGate) MarkShut()    { g.shut.Store(true) }
func (g *serverGate) IsShut() bool { return g.shut.Load() }

func (g *serverGate) serveTCP() { // runner
	server := g.server
	defer server.subs.Done()
	for {
		tcpConn, err := g.listener.AcceptTCP()
		if err != nil {
			if g.IsShut() {
				break
			}
			server.logger.Logf("accept error: %v\n", err)
			continue
		}
		select {
		case server.accepted <- tcpConn:
		case <-server.quit:
			g.justClose(tcpConn)
		}
	}
	if DebugLevel() >= 2 {
		Println("serverGate done")
	}
}

func (g *serverGate) justClose(netConn net.Conn) {
	netConn.Close()
}

// serverConn is an accepted connection and the request framed off it.
type serverConn struct {
	// Assocs
	server  *Server
	netConn net.Conn
	// States
	nRead       int     // bytes read
	startLine   string  // without CRLF
	headerBlock string  // header lines joined by "\n"
	body        *string // nil if the method has no body
	err         error   // framing error
}

// frame reads a request off the connection and hands it to the dispatcher.
func (c *serverConn) frame(timeout time.Duration) { // runner
	server := c.server
	defer server.subs.Done()
	c.netConn.SetReadDeadline(time.Now().Add(timeout))
	c.err = c.readRequest(bufio.NewReader(io.LimitReader(c.netConn, maxRequestSize)))
	select {
	case server.framed <- c:
	case <-server.quit: // the dispatcher closes it
	}
}

// readRequest frames a request. One blank line ends the headers. Methods with a body need a second blank line.
func (c *serverConn) readRequest(reader *bufio.Reader) error {
	startLine, err := c.readLine(reader)
	if err != nil {
		return err
	}
	c.startLine = startLine
	var lines []string
	for {
		line, err := c.readLine(reader)
		if err != nil {
			return err
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	c.headerBlock = strings.Join(lines, "\n")

	if fields := strings.Fields(startLine); len(fields) == 0 || !webBodyMethods[fields[0]] {
		return nil
	}
	lines = lines[:0]
	for {
		line, err := c.readLine(reader)
		if err != nil {
			return err
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	body := strings.Join(lines, "\n")
	c.body = &body
	return nil
}

func (c *serverConn) readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	c.nRead += len(line)
	if err != nil {
		if err == io.EOF && line != "" {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
