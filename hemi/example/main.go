// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// An example that embeds the Hemi engine into a program of its own.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	. "github.com/hexinfra/minirox/hemi"
	"github.com/hexinfra/minirox/hemi/library/system"
)

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func main() {
	// Begin
	RegisterLogger("myLogger", func(config *LogConfig) Logger {
		return new(myLogger)
	})

	SetTopDir(system.ExeDir)
	SetLogDir(system.ExeDir + "/log")
	SetTmpDir(system.ExeDir + "/tmp")
	SetVarDir(system.ExeDir + "/var")

	policy, err := PolicyFromText(config)
	must(err)
	tables, err := NewTables([]byte(responseCodes), []byte(mimeTypes))
	must(err)
	logger, err := NewLogger(policy.LoggerSign(), policy.LogConfig())
	must(err)
	defer logger.Close()

	server := NewServer(policy, tables, logger)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	must(server.Serve(ctx))
	// End
}

var config = `
server {
    .host               = "127.0.0.1"
    .port               = 3080
    .httpVersion        = "HTTP/1.1"
    .implementedMethods = ("GET", "HEAD", "OPTIONS")
    .serverName         = "Example"
    .contentRoot        = %topDir + "/web"
    .errorPath          = "/errors/"
    .forbidden          = [ "paths": ("..", "~"), "files": (".conf") ]
    .allowed            = [ "paths": (), "files": () ]
    .logger             = "myLogger"
}
`

var responseCodes = `{
    "200": {"message": "OK"},
    "400": {"message": "Bad Request"},
    "403": {"message": "Forbidden"},
    "404": {"message": "Not Found"},
    "418": {"message": "I'm a teapot"},
    "500": {"message": "Internal Server Error"},
    "501": {"message": "Not Implemented"},
    "505": {"message": "HTTP Version Not Supported"}
}`

var mimeTypes = `{
    "html": "text/html",
    "css":  "text/css",
    "js":   "text/javascript",
    "txt":  "text/plain",
    "json": "application/json",
    "png":  "image/png"
}`

// myLogger prints events to stdout with a prefix.
type myLogger struct{}

func (l *myLogger) Log(v ...any)            { fmt.Print(append([]any{"[example] "}, v...)...) }
func (l *myLogger) Logln(v ...any)          { fmt.Println(append([]any{"[example]"}, v...)...) }
func (l *myLogger) Logf(f string, v ...any) { fmt.Printf("[example] "+f, v...) }
func (l *myLogger) Close()                  {}
