// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Policy is the resolved, read-only server configuration.

package hemi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Policy
type Policy struct {
	// Critical
	host               string   // "127.0.0.1", ...
	port               uint16   // 9999, ...
	httpVersion        string   // "HTTP/1.1"
	implementedMethods []string // in configured order
	serverName         string   // value of the Server header
	contentRoot        string   // without trailing '/'
	// Non-critical
	errorPath      string   // "/errors/", always with leading and trailing '/'
	forbiddenPaths []string // tokens that must not appear in a resource
	allowedPaths   []string // tokens that must all appear in contentRoot+resource
	forbiddenFiles []string // extensions, with dot
	allowedFiles   []string // extensions, with dot
	hideMissing    bool     // reject missing resources with 403 instead of 404
	readTimeout    time.Duration
	reusePort      bool
	deferAccept    bool
	responseCodes  string // path of the response codes table
	mimeTypes      string // path of the mime types table
	loggerSign     string // "noop", "stderr", "file"
	logFile        string
	logRotate      string // "", "day", "hour"
	// States
	warnings []string // non-critical fields that fell back to defaults
}

func (p *Policy) onConfigure(c *configComp) error {
	// host
	if !configureProp(c, "host", &p.host, (*Value).String, _checkNonEmpty, "") {
		return errors.New("host is required for server")
	}
	// port
	if !configureProp(c, "port", &p.port, (*Value).Uint16, func(value uint16) error {
		if value > 0 {
			return nil
		}
		return errors.New("an invalid port")
	}, 0) {
		return errors.New("port is required for server")
	}
	// httpVersion
	if !configureProp(c, "httpVersion", &p.httpVersion, (*Value).String, _checkNonEmpty, "") {
		return errors.New("httpVersion is required for server")
	}
	// implementedMethods
	if !configureProp(c, "implementedMethods", &p.implementedMethods, (*Value).StringList, func(value []string) error {
		if len(value) == 0 {
			return errors.New("no methods")
		}
		for _, method := range value {
			if method == "" || strings.ContainsAny(method, " \t") {
				return fmt.Errorf("bad method '%s'", method)
			}
		}
		return nil
	}, nil) {
		return errors.New("implementedMethods is required for server")
	}
	// serverName
	if !configureProp(c, "serverName", &p.serverName, (*Value).String, _checkNonEmpty, "") {
		return errors.New("serverName is required for server")
	}
	// contentRoot
	if !configureProp(c, "contentRoot", &p.contentRoot, (*Value).String, _checkNonEmpty, "") {
		return errors.New("contentRoot is required for server")
	}
	if root := strings.TrimRight(p.contentRoot, "/"); root != "" {
		p.contentRoot = root
	}

	// errorPath
	p.configureWarn(c, "errorPath", &p.errorPath, (*Value).String, "/errors/")
	if !strings.HasPrefix(p.errorPath, "/") {
		p.errorPath = "/" + p.errorPath
	}
	if !strings.HasSuffix(p.errorPath, "/") {
		p.errorPath += "/"
	}

	// forbidden
	p.forbiddenPaths, p.forbiddenFiles = p.configurePair(c, "forbidden")
	// allowed
	p.allowedPaths, p.allowedFiles = p.configurePair(c, "allowed")

	// hideMissing
	configureProp(c, "hideMissing", &p.hideMissing, (*Value).Bool, nil, true)
	// readTimeout
	configureProp(c, "readTimeout", &p.readTimeout, (*Value).Duration, func(value time.Duration) error {
		if value > 0 {
			return nil
		}
		return errors.New("must be positive")
	}, 30*time.Second)
	// reusePort
	configureProp(c, "reusePort", &p.reusePort, (*Value).Bool, nil, false)
	// deferAccept
	configureProp(c, "deferAccept", &p.deferAccept, (*Value).Bool, nil, false)

	// responseCodes
	configureProp(c, "responseCodes", &p.responseCodes, (*Value).String, _checkNonEmpty, _topFile("conf/response.json"))
	// mimeTypes
	configureProp(c, "mimeTypes", &p.mimeTypes, (*Value).String, _checkNonEmpty, _topFile("conf/mime.json"))

	// logger
	configureProp(c, "logger", &p.loggerSign, (*Value).String, func(value string) error {
		if loggerRegistered(value) {
			return nil
		}
		return fmt.Errorf("unknown logger '%s'", value)
	}, "file")
	// logFile
	configureProp(c, "logFile", &p.logFile, (*Value).String, _checkNonEmpty, _logFile("minirox.log"))
	// logRotate
	configureProp(c, "logRotate", &p.logRotate, (*Value).String, func(value string) error {
		if value == "" || value == "day" || value == "hour" {
			return nil
		}
		return errors.New("must be \"\", \"day\" or \"hour\"")
	}, "")

	return nil
}

// configureWarn is configureProp for non-critical properties. An absent property is recorded as a warning.
func (p *Policy) configureWarn(c *configComp, name string, prop *string, conv func(*Value) (string, bool), defaultValue string) {
	if !configureProp(c, name, prop, conv, nil, defaultValue) {
		p.warn("%s is not set, using %q", name, defaultValue)
	}
}

// configurePair reads a [ "paths": (...), "files": (...) ] dict.
func (p *Policy) configurePair(c *configComp, name string) (paths []string, files []string) {
	v, ok := c.Find(name)
	if !ok {
		p.warn("%s is not set, using empty paths and files", name)
		return []string{}, []string{}
	}
	dict, ok := v.Dict()
	if !ok {
		panic(fmt.Errorf("invalid .%s in %s, must be a dict", name, c.name))
	}
	pick := func(key string) []string {
		elem, ok := dict[key]
		if !ok {
			p.warn("%s[%q] is not set, using empty list", name, key)
			return []string{}
		}
		list, ok := elem.StringList()
		if !ok {
			panic(fmt.Errorf("invalid .%s[%q] in %s, must be a list of strings", name, key, c.name))
		}
		return list
	}
	return pick("paths"), pick("files")
}

func (p *Policy) warn(f string, v ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(f, v...))
}

func _checkNonEmpty(value string) error {
	if value == "" {
		return errors.New("must not be empty")
	}
	return nil
}
func _topFile(name string) string {
	if dir := TopDir(); dir != "" {
		return dir + "/" + name
	}
	return name
}
func _logFile(name string) string {
	if dir := LogDir(); dir != "" {
		return dir + "/" + name
	}
	return name
}

func (p *Policy) Host() string                 { return p.host }
func (p *Policy) Port() uint16                 { return p.port }
func (p *Policy) Address() string              { return p.host + ":" + strconv.Itoa(int(p.port)) }
func (p *Policy) HTTPVersion() string          { return p.httpVersion }
func (p *Policy) ImplementedMethods() []string { return p.implementedMethods }
func (p *Policy) ServerName() string           { return p.serverName }
func (p *Policy) ContentRoot() string          { return p.contentRoot }
func (p *Policy) ErrorPath() string            { return p.errorPath }
func (p *Policy) ForbiddenPaths() []string     { return p.forbiddenPaths }
func (p *Policy) AllowedPaths() []string       { return p.allowedPaths }
func (p *Policy) ForbiddenFiles() []string     { return p.forbiddenFiles }
func (p *Policy) AllowedFiles() []string       { return p.allowedFiles }
func (p *Policy) HideMissing() bool            { return p.hideMissing }
func (p *Policy) ReadTimeout() time.Duration   { return p.readTimeout }
func (p *Policy) ReusePort() bool              { return p.reusePort }
func (p *Policy) DeferAccept() bool            { return p.deferAccept }
func (p *Policy) ResponseCodesFile() string    { return p.responseCodes }
func (p *Policy) MimeTypesFile() string        { return p.mimeTypes }
func (p *Policy) LoggerSign() string           { return p.loggerSign }
func (p *Policy) LogConfig() *LogConfig {
	return &LogConfig{Target: p.logFile, Rotate: p.logRotate}
}

// Warnings returns the non-critical properties that fell back to their defaults.
func (p *Policy) Warnings() []string { return p.warnings }

func (p *Policy) IsImplemented(method string) bool {
	for _, implemented := range p.implementedMethods {
		if method == implemented {
			return true
		}
	}
	return false
}

// WithPort returns a copy of the policy listening on another port.
func (p *Policy) WithPort(port uint16) *Policy {
	policy := *p
	policy.port = port
	return &policy
}
