// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Responses to GET, HEAD and OPTIONS requests, and their wire format.

package hemi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// Formatter is something that can be written to the wire.
type Formatter interface {
	ID() int64
	Format() []byte
	Head() string // status line and headers, for logs
}

// Response is a response to a valid request.
type Response interface {
	Formatter
	Prepare(policy *Policy) error // Initial -> BodyPrepared
}

// NewResponse creates the response variant for the method of req.
func NewResponse(req *Request, tables *Tables) (Response, error) {
	switch req.Method {
	case MethodGET:
		r := new(getResponse)
		r.onCreate(req, tables)
		return r, nil
	case MethodHEAD:
		r := new(headResponse)
		r.onCreate(req, tables)
		return r, nil
	case MethodOPTIONS:
		r := new(optionsResponse)
		r.onCreate(req, tables)
		return r, nil
	default:
		return nil, errInternal("no response for method "+req.Method, req.Method)
	}
}

const ( // response states
	stateInitial = iota
	stateHeadersPrepared
	stateBodyPrepared
	stateSerialized
)

// response_ is the parent for all responses.
type response_ struct {
	// Assocs
	request *Request
	tables  *Tables
	// States
	id       int64
	state    int8
	status   int
	message  string
	version  string
	headers  Headers
	body     []byte
	hasBody  bool // false for HEAD
	isBinary bool
}

func (r *response_) onCreate(req *Request, tables *Tables) {
	r.request = req
	r.tables = tables
	r.id = req.ID
	r.state = stateInitial
}

func (r *response_) ID() int64 { return r.id }

// prepareHeaders sets the status line and the base headers.
func (r *response_) prepareHeaders(policy *Policy, status int, contentType string, contentLength int64) error {
	message, ok := r.tables.StatusMessage(status)
	if !ok {
		return errInternal("no message for status "+strconv.Itoa(status), strconv.Itoa(status))
	}
	r.status, r.message, r.version = status, message, policy.HTTPVersion()
	r.headers = Headers{}
	r.headers.Set("Server", policy.ServerName())
	r.headers.Set("Date", httpDate(webClock()))
	r.headers.Set("Connection", "close")
	r.headers.Set("Content-Type", contentType)
	r.headers.Set("Content-Length", strconv.FormatInt(contentLength, 10))
	r.state = stateHeadersPrepared
	return nil
}

// contentType returns the Content-Type for a resolved file.
func (r *response_) contentType(file string, isBinary bool) (string, error) {
	ext := fileExt(file)
	mimeType, ok := r.tables.MimeType(ext)
	if !ok {
		return "", errInternal("no mime type for ."+ext, file)
	}
	if !isBinary {
		mimeType += "; charset=utf-8"
	}
	return mimeType, nil
}

func (r *response_) Format() []byte {
	if r.state != stateBodyPrepared && r.state != stateSerialized {
		panic(fmt.Errorf("response %d: format before body is prepared", r.id))
	}
	wire := []byte(r.Head())
	wire = append(wire, "\r\n"...)
	if r.hasBody {
		wire = append(wire, r.body...)
		wire = append(wire, "\r\n"...)
	}
	r.state = stateSerialized
	return wire
}

// Head returns the status line and headers, each ending with CRLF.
func (r *response_) Head() string {
	var head strings.Builder
	head.WriteString(r.version + " " + strconv.Itoa(r.status) + " " + r.message + "\r\n")
	for _, header := range r.headers {
		head.WriteString(header.Name + ": " + header.Value + "\r\n")
	}
	return head.String()
}

// resolveError translates a content resolution error.
func resolveError(err error, resource string) *HTTPError {
	var httpErr *HTTPError
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, fs.ErrNotExist):
		return errNotFound(resource)
	case errors.As(err, &pathErr):
		return errInternal("cannot read resource", resource+": "+err.Error())
	default:
		return errImTeapot(resource + ": " + err.Error())
	}
}

// getResponse
type getResponse struct {
	// Mixins
	response_
}

func (r *getResponse) Prepare(policy *Policy) error {
	content, isBinary, file, err := Resolve(policy.ContentRoot()+r.request.Resource, policy)
	if err != nil {
		return resolveError(err, r.request.Resource)
	}
	contentType, err := r.contentType(file, isBinary)
	if err != nil {
		return err
	}
	if err := r.prepareHeaders(policy, StatusOK, contentType, int64(len(content))); err != nil {
		return err
	}
	if isBinary {
		r.headers.Set("Content-Encoding", "gzip")
	}
	r.body, r.hasBody, r.isBinary = content, true, isBinary
	r.state = stateBodyPrepared
	return nil
}

// headResponse
type headResponse struct {
	// Mixins
	response_
}

func (r *headResponse) Prepare(policy *Policy) error {
	size, isBinary, file, err := Sizeof(policy.ContentRoot()+r.request.Resource, policy)
	if err != nil {
		return resolveError(err, r.request.Resource)
	}
	contentType, err := r.contentType(file, isBinary)
	if err != nil {
		return err
	}
	if err := r.prepareHeaders(policy, StatusOK, contentType, size); err != nil {
		return err
	}
	if isBinary {
		r.headers.Set("Content-Encoding", "gzip")
	}
	r.hasBody, r.isBinary = false, isBinary
	r.state = stateBodyPrepared
	return nil
}

// optionsResponse
type optionsResponse struct {
	// Mixins
	response_
}

func (r *optionsResponse) Prepare(policy *Policy) error {
	methods, err := json.Marshal(policy.ImplementedMethods())
	if err != nil {
		return errInternal("cannot encode methods", err.Error())
	}
	body := append([]byte(`{"accepted_methods": `), methods...)
	body = append(body, '}')
	if err := r.prepareHeaders(policy, StatusOK, "application/json", int64(len(body))); err != nil {
		return err
	}
	r.body, r.hasBody = body, true
	r.state = stateBodyPrepared
	return nil
}
