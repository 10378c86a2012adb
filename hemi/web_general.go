// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// General web elements shared by requests and responses.

package hemi

import (
	"strings"
	"time"
)

const ( // status codes
	StatusOK                      = 200
	StatusBadRequest              = 400
	StatusForbidden               = 403
	StatusNotFound                = 404
	StatusImATeapot               = 418
	StatusInternalServerError     = 500
	StatusNotImplemented          = 501
	StatusHTTPVersionNotSupported = 505
)

// webReasons are used when the response codes table has no entry for a status.
var webReasons = map[int]string{
	StatusOK:                      "OK",
	StatusBadRequest:              "Bad Request",
	StatusForbidden:               "Forbidden",
	StatusNotFound:                "Not Found",
	StatusImATeapot:               "I'm a teapot",
	StatusInternalServerError:     "Internal Server Error",
	StatusNotImplemented:          "Not Implemented",
	StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

const ( // method names the response builder knows
	MethodGET     = "GET"
	MethodHEAD    = "HEAD"
	MethodOPTIONS = "OPTIONS"
)

// webBodyMethods need a second blank line to frame their bodies.
var webBodyMethods = map[string]bool{
	"POST":  true,
	"PUT":   true,
	"PATCH": true,
}

// webTextExts are served as utf-8 text. Other files are gzipped.
var webTextExts = map[string]bool{
	"html": true,
	"css":  true,
	"scss": true,
	"js":   true,
	"txt":  true,
	"json": true,
	"csv":  true,
	"xml":  true,
}

// fileExt returns the extension of path without the dot, or "" if it has none.
func fileExt(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 && strings.IndexByte(path[i:], '/') == -1 {
		return path[i+1:]
	}
	return ""
}

// Header is a name/value pair. Names are kept as received.
type Header struct {
	Name  string
	Value string
}

// Headers keeps fields in insertion order.
type Headers []Header

// Set replaces the value of an exactly equal name in place, or appends a new field.
func (h *Headers) Set(name string, value string) {
	for i := range *h {
		if (*h)[i].Name == name {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Header{name, value})
}

// Get returns the value of an exactly equal name.
func (h Headers) Get(name string) (value string, ok bool) {
	for _, header := range h {
		if header.Name == name {
			return header.Value, true
		}
	}
	return "", false
}

const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// httpDate formats t as an IMF-fixdate.
func httpDate(t time.Time) string { return t.UTC().Format(httpDateFormat) }

// webClock is replaced in tests.
var webClock = time.Now
