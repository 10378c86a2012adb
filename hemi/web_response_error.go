// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Error responses. They are built from an HTTP error and never fail.

package hemi

import (
	"encoding/json"
	"os"
	"strconv"
	"unicode/utf8"
)

// errorPageCodes have an html page under the error path.
var errorPageCodes = map[int]bool{
	StatusForbidden:           true,
	StatusNotFound:            true,
	StatusImATeapot:           true,
	StatusInternalServerError: true,
}

// ErrorResponse
type ErrorResponse struct {
	// Mixins
	response_
	// States
	err *HTTPError
}

// NewErrorResponse builds a complete response for err. id is the id of the failed request.
func NewErrorResponse(err *HTTPError, policy *Policy, tables *Tables, id int64) *ErrorResponse {
	r := new(ErrorResponse)
	r.tables = tables
	r.id = id
	r.err = err

	code := err.Code()
	r.status, r.message, r.version = code, tables.reason(code), policy.HTTPVersion()
	contentType := ""
	if errorPageCodes[code] {
		if page, ok := r.loadPage(policy, code); ok {
			r.body = page
			contentType = "text/html"
			if mimeType, ok := tables.MimeType("html"); ok {
				contentType = mimeType
			}
			contentType += "; charset=utf-8"
		}
	}
	if contentType == "" {
		r.body = errorJSON(code, err.Problem)
		contentType = "application/json"
	}

	r.headers = Headers{}
	r.headers.Set("Server", policy.ServerName())
	r.headers.Set("Date", httpDate(webClock()))
	r.headers.Set("Connection", "close")
	r.headers.Set("Content-Type", contentType)
	r.headers.Set("Content-Length", strconv.Itoa(len(r.body)))
	r.hasBody = true
	r.state = stateBodyPrepared
	return r
}

func (r *ErrorResponse) loadPage(policy *Policy, code int) ([]byte, bool) {
	file := policy.ContentRoot() + policy.ErrorPath() + strconv.Itoa(code) + ".html"
	page, err := os.ReadFile(file)
	if err != nil || !utf8.Valid(page) {
		if DebugLevel() >= 1 {
			Printf("error page %s is not available\n", file)
		}
		return nil, false
	}
	return page, true
}

// Err returns the error this response is built from.
func (r *ErrorResponse) Err() *HTTPError { return r.err }

func errorJSON(code int, problem string) []byte {
	body, _ := json.Marshal(struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
	}{code, problem})
	return body
}
