// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/surveyor/internal/session"
)

// JSONExporter writes the session in its persisted shape so the file can be
// read back with encoding/json into a session.Session. Only IncludeErrors is
// honored.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

func (e *JSONExporter) Export(sess *session.Session) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	out := sess.Clone()
	out.Messages = visibleMessages(out.Messages, e.options)
	return json.MarshalIndent(out, "", "  ")
}

func (e *JSONExporter) FileExtension() string {
	return ".json"
}
