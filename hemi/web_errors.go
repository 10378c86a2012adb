// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// HTTP errors raised while serving a request.

package hemi

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of request-scoped failures.
type ErrorKind uint8

const ( // error kinds
	KindBadRequest           ErrorKind = iota + 1 // 400
	KindForbidden                                 // 403
	KindNotFound                                  // 404
	KindImTeapot                                  // 418
	KindInternalError                             // 500
	KindMethodNotImplemented                      // 501
	KindVersionNotSupported                       // 505
)

var errorKindCodes = [...]int{
	KindBadRequest:           StatusBadRequest,
	KindForbidden:            StatusForbidden,
	KindNotFound:             StatusNotFound,
	KindImTeapot:             StatusImATeapot,
	KindInternalError:        StatusInternalServerError,
	KindMethodNotImplemented: StatusNotImplemented,
	KindVersionNotSupported:  StatusHTTPVersionNotSupported,
}

var errorKindNames = [...]string{
	KindBadRequest:           "BadRequest",
	KindForbidden:            "Forbidden",
	KindNotFound:             "NotFound",
	KindImTeapot:             "ImTeapot",
	KindInternalError:        "InternalError",
	KindMethodNotImplemented: "MethodNotImplemented",
	KindVersionNotSupported:  "VersionNotSupported",
}

func (k ErrorKind) Code() int {
	if k == 0 || int(k) >= len(errorKindCodes) {
		return StatusInternalServerError
	}
	return errorKindCodes[k]
}
func (k ErrorKind) String() string {
	if k == 0 || int(k) >= len(errorKindNames) {
		return "Unknown"
	}
	return errorKindNames[k]
}

// HTTPError
type HTTPError struct {
	Kind    ErrorKind
	Problem string // human readable, sent to the client
	Detail  string // offending input, for logs
}

func newHTTPError(kind ErrorKind, problem string, detail string) *HTTPError {
	return &HTTPError{Kind: kind, Problem: problem, Detail: detail}
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%d %s: %s", e.Code(), e.Kind, e.Problem)
	}
	return fmt.Sprintf("%d %s: %s (%q)", e.Code(), e.Kind, e.Problem, e.Detail)
}

// Code returns the status code of the error.
func (e *HTTPError) Code() int { return e.Kind.Code() }

func errBadRequest(problem string, detail string) *HTTPError {
	return newHTTPError(KindBadRequest, problem, detail)
}
func errForbidden(problem string, detail string) *HTTPError {
	return newHTTPError(KindForbidden, problem, detail)
}
func errNotFound(detail string) *HTTPError {
	return newHTTPError(KindNotFound, "resource not found", detail)
}
func errImTeapot(detail string) *HTTPError {
	return newHTTPError(KindImTeapot, "unexpected failure", detail)
}
func errInternal(problem string, detail string) *HTTPError {
	return newHTTPError(KindInternalError, problem, detail)
}
func errMethodNotImplemented(method string) *HTTPError {
	return newHTTPError(KindMethodNotImplemented, "method "+method+" is not implemented", method)
}
func errVersionNotSupported(version string) *HTTPError {
	return newHTTPError(KindVersionNotSupported, "version "+version+" is not supported", version)
}

// AsHTTPError classifies err. A nil error gives nil. Errors that are not HTTP errors become ImTeapot.
func AsHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return errImTeapot(err.Error())
}
