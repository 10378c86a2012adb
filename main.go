// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Minirox, a minimal static content server.

package main

import (
	"github.com/hexinfra/minirox/hemi/procman"
)

func main() {
	procman.Main(&procman.Opts{
		ProgramName:  "minirox",
		ProgramTitle: "Minirox",
		DebugLevel:   0,
	})
}
