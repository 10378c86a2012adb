// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Unit tests for the server.

package hemi

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// testServe starts a server on a random port and stops it when the test ends.
func testServe(t *testing.T, policy *Policy) *Server {
	t.Helper()
	server := NewServer(policy.WithPort(0), testTables(t), noopLogger{})
	if err := server.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return")
		}
	})
	return server
}

// testRoundTrip sends raw and reads the response.
func testRoundTrip(t *testing.T, server *Server, raw string, method string) (*http.Response, string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", server.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatal(err)
	}
	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, &http.Request{Method: method})
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if rest, _ := io.ReadAll(reader); strings.TrimSpace(string(rest)) != "" { // only the trailing CRLF may follow
		t.Errorf("unexpected bytes after response: %q", rest)
	}
	return resp, string(body)
}

func TestServerScenarios(t *testing.T) {
	root := testRoot(t)
	server := testServe(t, testPolicy(t, root, ""))
	tests := []struct {
		raw     string
		method  string
		status  int
		contain string // part of the body
	}{
		{"GET / HTTP/1.1\r\nHost: localhost\r\n\r\n", "GET", 200, "home"},
		{"GET /blog/ HTTP/1.1\r\n\r\n", "GET", 200, "blog index"},
		{"GET /secret/../etc HTTP/1.1\r\n\r\n", "GET", 403, "forbidden path"},
		{"HEAD /secret/../etc HTTP/1.1\r\n\r\n", "GET", 403, ""},
		{"POST /x HTTP/1.1\r\nContent-Type: text/plain\r\n\r\nhello\r\n\r\n", "POST", 501, "POST"},
		{"OPTIONS /index.html HTTP/1.1\r\n\r\n", "OPTIONS", 200, `{"accepted_methods": ["GET","HEAD","OPTIONS"]}`},
		{"GET / HTTP/2.0\r\n\r\n", "GET", 505, "HTTP/2.0"},
		{"GET /missing.html HTTP/1.1\r\n\r\n", "GET", 403, ""},
		{"BROKEN\r\n\r\n", "GET", 400, "malformed start line"},
		{"GET / HTTP/1.1\nHost: unix-style\n\n", "GET", 200, "home"},
	}
	for idx, test := range tests {
		resp, body := testRoundTrip(t, server, test.raw, test.method)
		if resp.StatusCode != test.status {
			t.Errorf("#%d: status=%d, expect=%d", idx, resp.StatusCode, test.status)
		}
		if !strings.Contains(body, test.contain) {
			t.Errorf("#%d: body=%q, expect to contain %q", idx, body, test.contain)
		}
		if !resp.Close { // ReadResponse moves "Connection: close" into Close
			t.Errorf("#%d: response does not close the connection", idx)
		}
	}
}

func TestServerNotFound(t *testing.T) {
	root := testRoot(t)
	server := testServe(t, testPolicy(t, root, ".hideMissing = false"))
	resp, body := testRoundTrip(t, server, "GET /missing.html HTTP/1.1\r\n\r\n", "GET")
	if resp.StatusCode != StatusNotFound || body != testPage404 {
		t.Errorf("status=%d body=%q", resp.StatusCode, body)
	}
}

func TestServerDirectoryHidesForbiddenFiles(t *testing.T) {
	root := testRoot(t)
	if err := os.MkdirAll(root+"/secret", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(root+"/secret/creds.txt", []byte("password=hunter2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	server := testServe(t, testPolicy(t, root, `.forbidden = [ "paths": (), "files": (".txt") ]`))
	tests := []struct {
		resource string
		status   int
	}{
		{"/secret/creds.txt", StatusForbidden},
		{"/secret/", StatusNotFound},
		{"/secret", StatusNotFound},
	}
	for idx, test := range tests {
		resp, body := testRoundTrip(t, server, "GET "+test.resource+" HTTP/1.1\r\n\r\n", "GET")
		if resp.StatusCode != test.status {
			t.Errorf("#%d: status=%d, expect=%d", idx, resp.StatusCode, test.status)
		}
		if strings.Contains(body, "hunter2") {
			t.Errorf("#%d: forbidden file served", idx)
		}
	}
}

func TestServerHeadHasNoBody(t *testing.T) {
	root := testRoot(t)
	server := testServe(t, testPolicy(t, root, ""))
	resp, body := testRoundTrip(t, server, "HEAD /img/logo.png HTTP/1.1\r\n\r\n", "HEAD")
	if resp.StatusCode != StatusOK || body != "" || resp.ContentLength <= 0 {
		t.Errorf("status=%d body=%q length=%d", resp.StatusCode, body, resp.ContentLength)
	}
}

func TestServerIncompleteRequest(t *testing.T) {
	root := testRoot(t)
	server := testServe(t, testPolicy(t, root, ".readTimeout = 1s"))

	// Some bytes but no blank line: 400 after the read timeout.
	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	io.WriteString(conn, "GET / HTTP/1.1\r\nHost: localhost\r\n")
	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: "GET"})
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != StatusBadRequest {
		t.Errorf("status=%d", resp.StatusCode)
	}

	// Nothing at all: closed without a response.
	silent, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()
	silent.SetDeadline(time.Now().Add(5 * time.Second))
	if n, err := silent.Read(make([]byte, 16)); err != io.EOF || n != 0 {
		t.Errorf("n=%d err=%v, expect EOF", n, err)
	}
}

func TestServerShutClosesConns(t *testing.T) {
	root := testRoot(t)
	policy := testPolicy(t, root, "").WithPort(0)
	server := NewServer(policy, testTables(t), noopLogger{})
	if err := server.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	addr := server.Addr()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	io.WriteString(conn, "GET / HTTP/1.1\r\n") // never finished
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 16)); err == nil {
		t.Error("conn should be closed by shutdown")
	}
	if err := server.Serve(context.Background()); err == nil {
		t.Error("Serve twice should fail")
	}
}
