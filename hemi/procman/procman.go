// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Procman package runs the server as a single foreground process.

package procman

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hexinfra/minirox/hemi"
	"github.com/hexinfra/minirox/hemi/library/system"
)

// Opts
type Opts struct {
	ProgramName  string // "minirox"
	ProgramTitle string // "Minirox"
	DebugLevel   int
}

const usage = `
%s (%s)
================================================================================

  %s [ACTION] [OPTIONS]

ACTION
------

  serve        # start the server. this is the default action
  check        # dry run to check config and tables
  help         # show this message
  version      # show version info

  Only one action is allowed at a time.
  If ACTION is not specified, the default action is "serve".

OPTIONS
-------

  -debug  <level>   # debug level (default: %d. min: 0, max: 3)
  -config <config>  # path to config file (default: conf/%s.conf)
  -port   <port>    # listen on this port instead of the configured one (1-32719)
  -top    <path>    # top directory of the program files
  -log    <path>    # log directory to use
  -tmp    <path>    # tmp directory to use
  -var    <path>    # var directory to use

  "-debug" applies to all actions.
  Other options apply to "serve" and "check" only.

`

const maxPort = 32719

var (
	debugLevel int
	configFile string
	portNumber int
	topDir     string
	logDir     string
	tmpDir     string
	varDir     string
)

// Main is main() for the program.
func Main(opts *Opts) {
	if !system.Check() {
		hemi.EnvExitln("current platform (os + arch) is not supported.")
	}

	program := opts.ProgramName
	flag.Usage = func() {
		fmt.Printf(usage, opts.ProgramTitle, hemi.Version, program, opts.DebugLevel, program)
	}
	flag.IntVar(&debugLevel, "debug", opts.DebugLevel, "")
	flag.StringVar(&configFile, "config", "", "")
	flag.IntVar(&portNumber, "port", 0, "")
	flag.StringVar(&topDir, "top", "", "")
	flag.StringVar(&logDir, "log", "", "")
	flag.StringVar(&tmpDir, "tmp", "", "")
	flag.StringVar(&varDir, "var", "", "")
	action := "serve"
	if len(os.Args) > 1 && os.Args[1] != "" && os.Args[1][0] != '-' {
		action = os.Args[1]
		flag.CommandLine.Parse(os.Args[2:])
	} else {
		flag.Parse()
	}

	switch action {
	case "help":
		flag.Usage()
	case "version":
		fmt.Println(hemi.Version)
	case "serve", "check":
		hemi.SetDebugLevel(int32(debugLevel))
		if portNumber != 0 && !validPort(portNumber) {
			hemi.UseExitf("-port must be in range 1-%d\n", maxPort)
		}
		setDirs()

		base, file := getConfig(program)
		policy, tables, err := load(base, file, portNumber)
		if err != nil {
			hemi.UseExitln(err.Error())
		}
		for _, warning := range policy.Warnings() {
			fmt.Fprintf(os.Stderr, "[WARN] %s\n", warning)
		}
		if action == "check" { // dry run
			fmt.Println("PASS")
			return
		}
		if err := serve(policy, tables); err != nil {
			hemi.EnvExitln(err.Error())
		}
	default:
		fmt.Printf("unknown action: %s\n", action)
		flag.Usage()
		os.Exit(hemi.CodeUse)
	}
}

func validPort(port int) bool { return port > 0 && port <= maxPort }

func setDirs() {
	if topDir == "" {
		topDir = system.ExeDir
	} else { // topDir is specified.
		dir, err := filepath.Abs(topDir)
		if err != nil {
			hemi.EnvExitln(err.Error())
		}
		topDir = dir
	}
	topDir = filepath.ToSlash(topDir)
	hemi.SetTopDir(topDir)
	if err := os.Chdir(topDir); err != nil { // relative paths in config are relative to topDir
		hemi.EnvExitln(err.Error())
	}
	setDir := func(pDir *string, name string, set func(string)) {
		if dir := *pDir; dir == "" {
			*pDir = topDir + "/" + name
		} else if !filepath.IsAbs(dir) {
			*pDir = topDir + "/" + dir
		}
		*pDir = filepath.ToSlash(*pDir)
		set(*pDir)
	}
	setDir(&logDir, "log", hemi.SetLogDir)
	setDir(&tmpDir, "tmp", hemi.SetTmpDir)
	setDir(&varDir, "var", hemi.SetVarDir)
}

func getConfig(program string) (base string, file string) {
	if configFile == "" {
		base = topDir
		file = "conf/" + program + ".conf"
	} else if filepath.IsAbs(configFile) { // /path/to/file.conf
		base = filepath.Dir(configFile)
		file = filepath.Base(configFile)
	} else { // path/to/file.conf
		base = topDir
		file = configFile
	}
	base = strings.TrimRight(filepath.ToSlash(base), "/") + "/"
	return
}

// load parses the config and loads the tables it names. port overrides the configured port if it's not 0.
func load(configBase string, configFile string, port int) (*hemi.Policy, *hemi.Tables, error) {
	policy, err := hemi.PolicyFromFile(configBase, configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config %s%s: %w", configBase, configFile, err)
	}
	if port != 0 {
		if !validPort(port) {
			return nil, nil, fmt.Errorf("port %d is out of range 1-%d", port, maxPort)
		}
		policy = policy.WithPort(uint16(port))
	}
	if info, err := os.Stat(policy.ContentRoot()); err != nil {
		return nil, nil, fmt.Errorf("contentRoot: %w", err)
	} else if !info.IsDir() {
		return nil, nil, errors.New("contentRoot is not a directory")
	}
	tables, err := hemi.LoadTables(policy.ResponseCodesFile(), policy.MimeTypesFile())
	if err != nil {
		return nil, nil, err
	}
	return policy, tables, nil
}

// serve runs the server until SIGINT or SIGTERM.
func serve(policy *hemi.Policy, tables *hemi.Tables) error {
	logger, err := hemi.NewLogger(policy.LoggerSign(), policy.LogConfig())
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := hemi.NewServer(policy, tables, logger)
	if err := server.Open(); err != nil {
		return err
	}
	if hemi.DebugLevel() >= 1 {
		hemi.Printf("%s serving %s at %s\n", policy.ServerName(), policy.ContentRoot(), server.Addr())
	}
	return server.Serve(ctx)
}
