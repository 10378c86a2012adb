// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Request parsing and validation.

package hemi

import (
	"os"
	"strings"
)

// Request is a parsed and policy-valid request.
type Request struct {
	ID       int64
	Method   string
	Resource string // starts with '/'
	Version  string
	Headers  Headers
	Body     *string // nil if the request has no body
}

// ParseRequest builds a request from its framed parts. It fails with an *HTTPError and never returns a partial request.
func ParseRequest(startLine string, headerBlock string, body *string, policy *Policy, id int64) (*Request, error) {
	fields := strings.Fields(startLine)
	if len(fields) != 3 {
		return nil, errBadRequest("malformed start line", startLine)
	}
	req := &Request{
		ID:       id,
		Method:   fields[0],
		Resource: fields[1],
		Version:  fields[2],
		Body:     body,
	}
	if !policy.IsImplemented(req.Method) {
		return nil, errMethodNotImplemented(req.Method)
	}
	if err := checkResource(req.Resource, policy); err != nil {
		return nil, err
	}
	if req.Version != policy.HTTPVersion() {
		return nil, errVersionNotSupported(req.Version)
	}
	headers, err := parseHeaders(headerBlock)
	if err != nil {
		return nil, err
	}
	req.Headers = headers
	if DebugLevel() >= 2 {
		Printf("request id=%d method=%s resource=%s headers=%d\n", id, req.Method, req.Resource, len(headers))
	}
	return req, nil
}

// checkResource applies the path and file rules of policy to resource. First failing rule wins.
func checkResource(resource string, policy *Policy) *HTTPError {
	if resource == "" || resource[0] != '/' {
		return errBadRequest("resource must start with '/'", resource)
	}
	for _, token := range policy.ForbiddenPaths() {
		if strings.Contains(resource, token) {
			return errForbidden("forbidden path", resource)
		}
	}
	fullPath := policy.ContentRoot() + resource
	for _, token := range policy.AllowedPaths() { // every allowed token must be present
		if !strings.Contains(fullPath, token) {
			return errForbidden("path not allowed", resource)
		}
	}
	for _, ext := range policy.ForbiddenFiles() {
		if strings.HasSuffix(resource, ext) {
			return errForbidden("forbidden file type", resource)
		}
	}
	if allowed := policy.AllowedFiles(); len(allowed) > 0 && !strings.HasSuffix(resource, "/") {
		if !hasAnySuffix(resource, allowed) {
			return errForbidden("file type not allowed", resource)
		}
	}
	if policy.HideMissing() {
		if _, err := os.Stat(fullPath); err != nil {
			return errForbidden("resource not available", resource)
		}
	}
	return nil
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// parseHeaders splits a header block into fields. Blank lines are skipped.
func parseHeaders(headerBlock string) (Headers, error) {
	headers := Headers{}
	for _, line := range strings.Split(headerBlock, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errBadRequest("malformed header", line)
		}
		headers.Set(name, strings.TrimSpace(value))
	}
	return headers, nil
}
