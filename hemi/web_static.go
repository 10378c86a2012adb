// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Static content resolution. Text files are served as they are, other files are gzipped.

package hemi

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"
)

const staticIndexFile = "index.html"

var errInvalidText = errors.New("text file is not valid utf-8")

// Resolve reads the content denoted by path, which is a file path or a directory path under the content root.
// Binary content is gzip compressed. file is the resolved file path.
func Resolve(path string, policy *Policy) (content []byte, isBinary bool, file string, err error) {
	if file, err = resolveFile(path, policy); err != nil {
		return nil, false, "", err
	}
	if isBinary = !webTextExts[fileExt(file)]; isBinary {
		var buffer bytes.Buffer
		if err = gzipFile(file, &buffer); err != nil {
			return nil, false, "", err
		}
		return buffer.Bytes(), true, file, nil
	}
	if content, err = readText(file); err != nil {
		return nil, false, "", err
	}
	return content, false, file, nil
}

// Sizeof reports the length of what Resolve would return for path. It fails where Resolve fails.
func Sizeof(path string, policy *Policy) (size int64, isBinary bool, file string, err error) {
	if file, err = resolveFile(path, policy); err != nil {
		return 0, false, "", err
	}
	if isBinary = !webTextExts[fileExt(file)]; isBinary {
		var counter byteCounter
		if err = gzipFile(file, &counter); err != nil {
			return 0, false, "", err
		}
		return int64(counter), true, file, nil
	}
	content, err := readText(file)
	if err != nil {
		return 0, false, "", err
	}
	return int64(len(content)), false, file, nil
}

// readText reads a text file which must be valid utf-8.
func readText(file string) ([]byte, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s: %w", file, errInvalidText)
	}
	return content, nil
}

// resolveFile maps path to a regular file. Directories resolve to one of their servable files,
// which are the regular files passing the forbidden and allowed file rules.
func resolveFile(path string, policy *Policy) (string, error) {
	if !strings.HasSuffix(path, "/") {
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return path, nil
		}
		path += "/"
	}
	entries, err := os.ReadDir(path) // sorted by name
	if err != nil {
		return "", err
	}
	allowed, forbidden := policy.AllowedFiles(), policy.ForbiddenFiles()
	var matches []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if hasAnySuffix(name, forbidden) {
			continue
		}
		if len(allowed) == 0 || hasAnySuffix(name, allowed) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no servable file in %s: %w", path, fs.ErrNotExist)
	case 1:
		return path + matches[0], nil
	}
	for _, name := range matches {
		if name == staticIndexFile {
			return path + name, nil
		}
	}
	return path + matches[0], nil
}

func gzipFile(file string, w io.Writer) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	gz := gzip.NewWriter(w)
	if _, err := io.Copy(gz, f); err != nil {
		return err
	}
	return gz.Close()
}

// byteCounter counts bytes written to it.
type byteCounter int64

func (c *byteCounter) Write(p []byte) (int, error) {
	*c += byteCounter(len(p))
	return len(p), nil
}
