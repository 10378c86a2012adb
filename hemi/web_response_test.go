// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Unit tests for responses.

package hemi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

// testPrepare parses and prepares a response, failing the test on any error.
func testPrepare(t *testing.T, policy *Policy, tables *Tables, startLine string) Response {
	t.Helper()
	resp, err := testBuild(policy, tables, startLine)
	if err != nil {
		t.Fatalf("%s: %v", startLine, err)
	}
	return resp
}

func testBuild(policy *Policy, tables *Tables, startLine string) (Response, error) {
	req, err := ParseRequest(startLine, "Host: localhost", nil, policy, 1)
	if err != nil {
		return nil, err
	}
	resp, err := NewResponse(req, tables)
	if err != nil {
		return nil, err
	}
	if err := resp.Prepare(policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// testRead parses wire bytes with a conforming client parser.
func testRead(t *testing.T, wire []byte, method string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(wire)), &http.Request{Method: method})
	if err != nil {
		t.Fatalf("ReadResponse: %v\n%s", err, wire)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestGetIndex(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ""), testTables(t)
	resp := testPrepare(t, policy, tables, "GET / HTTP/1.1")
	wire := resp.Format()
	if !bytes.Contains(wire, []byte("\r\nConnection: close\r\n")) {
		t.Errorf("wire=%q, expect Connection: close", wire)
	}
	httpResp, body := testRead(t, wire, "GET")
	if httpResp.StatusCode != StatusOK || httpResp.Status != "200 OK" {
		t.Errorf("status=%s", httpResp.Status)
	}
	if string(body) != testIndexHTML {
		t.Errorf("body=%q", body)
	}
	if recv := httpResp.Header.Get("Content-Type"); recv != "text/html; charset=utf-8" {
		t.Errorf("Content-Type=%s", recv)
	}
	if recv := httpResp.Header.Get("Content-Length"); recv != strconv.Itoa(len(testIndexHTML)) {
		t.Errorf("Content-Length=%s", recv)
	}
	if httpResp.Header.Get("Server") != "Minirox/test" || !httpResp.Close {
		t.Errorf("headers=%v", httpResp.Header)
	}
	if _, err := time.Parse(http.TimeFormat, httpResp.Header.Get("Date")); err != nil {
		t.Errorf("Date: %v", err)
	}
	if resp.ID() != 1 {
		t.Errorf("id=%d", resp.ID())
	}
}

func TestGetIndexPrecedence(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ""), testTables(t)
	resp := testPrepare(t, policy, tables, "GET /blog/ HTTP/1.1")
	if _, body := testRead(t, resp.Format(), "GET"); string(body) != testBlogIndex {
		t.Errorf("body=%q", body)
	}
}

func TestGetIsIdempotent(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ""), testTables(t)
	for _, path := range []string{"/blog/a.html", "/img/logo.png"} {
		_, body1 := testRead(t, testPrepare(t, policy, tables, "GET "+path+" HTTP/1.1").Format(), "GET")
		_, body2 := testRead(t, testPrepare(t, policy, tables, "GET "+path+" HTTP/1.1").Format(), "GET")
		if !bytes.Equal(body1, body2) {
			t.Errorf("%s: bodies differ", path)
		}
	}
}

func TestGetBinary(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ""), testTables(t)
	resp := testPrepare(t, policy, tables, "GET /img/logo.png HTTP/1.1")
	httpResp, body := testRead(t, resp.Format(), "GET")
	if recv := httpResp.Header.Get("Content-Type"); recv != "image/png" {
		t.Errorf("Content-Type=%s", recv)
	}
	if recv := httpResp.Header.Get("Content-Encoding"); recv != "gzip" {
		t.Errorf("Content-Encoding=%s", recv)
	}
	if recv := httpResp.Header.Get("Content-Length"); recv != strconv.Itoa(len(body)) {
		t.Errorf("Content-Length=%s, body=%d", recv, len(body))
	}
}

func TestHeadMatchesGet(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ""), testTables(t)
	for _, path := range []string{"/", "/blog/", "/blog/a.html", "/img/logo.png", "/docs/readme.txt"} {
		getResp, _ := testRead(t, testPrepare(t, policy, tables, "GET "+path+" HTTP/1.1").Format(), "GET")
		headWire := testPrepare(t, policy, tables, "HEAD "+path+" HTTP/1.1").Format()
		if !bytes.HasSuffix(headWire, []byte("\r\n\r\n")) {
			t.Errorf("%s: HEAD must end after the blank line", path)
		}
		headResp, body := testRead(t, headWire, "HEAD")
		if len(body) != 0 {
			t.Errorf("%s: HEAD has body %q", path, body)
		}
		for _, name := range []string{"Content-Length", "Content-Type", "Content-Encoding"} {
			if recv, expect := headResp.Header.Get(name), getResp.Header.Get(name); recv != expect {
				t.Errorf("%s: %s recv=%v, expect=%v", path, name, recv, expect)
			}
		}
	}
}

func TestOptions(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ".hideMissing = false"), testTables(t)
	resp := testPrepare(t, policy, tables, "OPTIONS /anything HTTP/1.1")
	wire := resp.Format()
	if !bytes.HasSuffix(wire, []byte("\r\n\r\n"+`{"accepted_methods": ["GET","HEAD","OPTIONS"]}`+"\r\n")) {
		t.Errorf("wire=%q", wire)
	}
	httpResp, body := testRead(t, wire, "OPTIONS")
	if httpResp.StatusCode != StatusOK || httpResp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("status=%d headers=%v", httpResp.StatusCode, httpResp.Header)
	}
	var accepted struct {
		Methods []string `json:"accepted_methods"`
	}
	if err := json.Unmarshal(body, &accepted); err != nil {
		t.Fatal(err)
	}
	if strings.Join(accepted.Methods, ",") != "GET,HEAD,OPTIONS" {
		t.Errorf("methods=%v", accepted.Methods)
	}
}

func TestResponseErrors(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ".hideMissing = false"), testTables(t)
	tests := []struct {
		startLine string
		expect    ErrorKind
	}{
		{"GET /missing.html HTTP/1.1", KindNotFound},
		{"HEAD /missing.html HTTP/1.1", KindNotFound},
		{"GET /nowhere/ HTTP/1.1", KindNotFound},
		{"GET /misc/data.unknown HTTP/1.1", KindInternalError}, // no mime type
		{"GET /notes/bad.txt HTTP/1.1", KindImTeapot},
		{"HEAD /notes/bad.txt HTTP/1.1", KindImTeapot}, // same as GET
	}
	for idx, test := range tests {
		_, err := testBuild(policy, tables, test.startLine)
		if err == nil {
			t.Errorf("#%d: expect error", idx)
			continue
		}
		if recv := AsHTTPError(err).Kind; recv != test.expect {
			t.Errorf("#%d: recv=%v, expect=%v", idx, recv, test.expect)
		}
	}
}

func TestNewResponseUnknownMethod(t *testing.T) {
	req := &Request{ID: 3, Method: "DELETE", Resource: "/", Version: "HTTP/1.1"}
	if _, err := NewResponse(req, testTables(t)); AsHTTPError(err).Kind != KindInternalError {
		t.Errorf("recv=%v", err)
	}
}

func TestFormatBeforePrepare(t *testing.T) {
	req := &Request{ID: 4, Method: "GET", Resource: "/", Version: "HTTP/1.1"}
	resp, err := NewResponse(req, testTables(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("Format before Prepare should panic")
		}
	}()
	resp.Format()
}

func TestMissingStatusMessage(t *testing.T) {
	root := testRoot(t)
	policy := testPolicy(t, root, "")
	tables, err := NewTables([]byte(`{"404": {"message": "Not Found"}}`), []byte(testMimeTypes))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := testBuild(policy, tables, "GET / HTTP/1.1"); AsHTTPError(err).Kind != KindInternalError {
		t.Errorf("recv=%v", err)
	}
}

func TestErrorResponsePage(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ""), testTables(t)
	resp := NewErrorResponse(errNotFound("/missing.html"), policy, tables, 9)
	httpResp, body := testRead(t, resp.Format(), "GET")
	if httpResp.StatusCode != StatusNotFound || httpResp.Status != "404 Not Found" {
		t.Errorf("status=%s", httpResp.Status)
	}
	if string(body) != testPage404 {
		t.Errorf("body=%q", body)
	}
	if recv := httpResp.Header.Get("Content-Type"); recv != "text/html; charset=utf-8" {
		t.Errorf("Content-Type=%s", recv)
	}
	if resp.ID() != 9 || resp.Err().Kind != KindNotFound {
		t.Errorf("id=%d err=%v", resp.ID(), resp.Err())
	}
}

func TestErrorResponseJSON(t *testing.T) {
	root := testRoot(t)
	policy, tables := testPolicy(t, root, ""), testTables(t)
	tests := []struct {
		err    *HTTPError
		status string
	}{
		{errMethodNotImplemented("POST"), "501 Not Implemented"},
		{errVersionNotSupported("HTTP/2"), "505 HTTP Version Not Supported"},
		{errBadRequest("malformed start line", "GET"), "400 Bad Request"},
		{errForbidden("forbidden path", "/.."), "403 Forbidden"}, // no 403 page in root
	}
	for idx, test := range tests {
		resp := NewErrorResponse(test.err, policy, tables, int64(idx))
		httpResp, body := testRead(t, resp.Format(), "GET")
		if httpResp.Status != test.status {
			t.Errorf("#%d: status=%s, expect=%s", idx, httpResp.Status, test.status)
		}
		if recv := httpResp.Header.Get("Content-Type"); recv != "application/json" {
			t.Errorf("#%d: Content-Type=%s", idx, recv)
		}
		var object struct {
			Error   int    `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &object); err != nil {
			t.Errorf("#%d: body %q is not one json object: %v", idx, body, err)
			continue
		}
		if object.Error != test.err.Code() || object.Message != test.err.Problem {
			t.Errorf("#%d: recv=%+v", idx, object)
		}
	}
}

func TestErrorResponseUnknownCode(t *testing.T) {
	root := testRoot(t)
	policy := testPolicy(t, root, "")
	tables, err := NewTables([]byte(`{}`), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp := NewErrorResponse(errImTeapot("boom"), policy, tables, 1)
	httpResp, _ := testRead(t, resp.Format(), "GET")
	if httpResp.Status != "418 I'm a teapot" {
		t.Errorf("status=%s", httpResp.Status)
	}
	if recv := httpResp.Header.Get("Content-Type"); recv != "application/json" { // no 418 page in root
		t.Errorf("Content-Type=%s", recv)
	}
}
