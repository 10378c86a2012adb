// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Lookup tables for status messages and mime types. They are loaded once at startup.

package hemi

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Tables
type Tables struct {
	messages  map[int]string    // 200 -> "OK", ...
	mimeTypes map[string]string // "html" -> "text/html", ...
}

// LoadTables loads the response codes table and the mime types table.
//
// The response codes file is a JSON object keyed by code: {"200": {"message": "OK"}, ...}.
// The mime types file is a JSON object keyed by extension without dot: {"html": "text/html", ...}.
func LoadTables(responseCodesFile string, mimeTypesFile string) (*Tables, error) {
	codesData, err := os.ReadFile(responseCodesFile)
	if err != nil {
		return nil, fmt.Errorf("load response codes: %w", err)
	}
	mimeData, err := os.ReadFile(mimeTypesFile)
	if err != nil {
		return nil, fmt.Errorf("load mime types: %w", err)
	}
	return NewTables(codesData, mimeData)
}

// NewTables parses the two tables from their JSON texts.
func NewTables(responseCodes []byte, mimeTypes []byte) (*Tables, error) {
	var codes map[string]struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(responseCodes, &codes); err != nil {
		return nil, fmt.Errorf("parse response codes: %w", err)
	}
	t := &Tables{
		messages: make(map[int]string, len(codes)),
	}
	for key, entry := range codes {
		code, err := strconv.Atoi(key)
		if err != nil || code < 100 || code > 999 {
			return nil, fmt.Errorf("parse response codes: bad status code %q", key)
		}
		t.messages[code] = entry.Message
	}
	if err := json.Unmarshal(mimeTypes, &t.mimeTypes); err != nil {
		return nil, fmt.Errorf("parse mime types: %w", err)
	}
	if t.mimeTypes == nil {
		t.mimeTypes = make(map[string]string)
	}
	return t, nil
}

// StatusMessage returns the message of a status code.
func (t *Tables) StatusMessage(code int) (message string, ok bool) {
	message, ok = t.messages[code]
	return
}

// MimeType returns the mime type of an extension without dot.
func (t *Tables) MimeType(ext string) (mimeType string, ok bool) {
	mimeType, ok = t.mimeTypes[ext]
	return
}

// reason is StatusMessage with a built-in fallback. It never fails.
func (t *Tables) reason(code int) string {
	if message, ok := t.StatusMessage(code); ok {
		return message
	}
	if message, ok := webReasons[code]; ok {
		return message
	}
	return "Unknown"
}
