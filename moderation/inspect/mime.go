// Copyright 2024 The Matrix.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package inspect holds the content inspectors used by moderation rules.
// Inspectors are stateless apart from their configuration and are safe
// for concurrent use.
package inspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"github.com/opentracing/opentracing-go"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

// sniffLen is the number of leading bytes examined. Both filetype and
// http.DetectContentType need far less than this.
const sniffLen = 8192

// Sniffer determines the media type of an upload from its leading bytes.
// The declared content type and the file name are never consulted.
type Sniffer struct{}

func NewSniffer() *Sniffer {
	return &Sniffer{}
}

// SniffMIMEType implements api.MIMESniffer. If the upload cannot be read
// the type is "unknown/unknown" and an *api.InspectionFault is returned.
func (s *Sniffer) SniffMIMEType(ctx context.Context, upload *api.MediaUpload) (string, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "SniffMIMEType")
	defer span.Finish()

	if upload.Data != nil {
		return Sniff(upload.Data), nil
	}
	if upload.Path == "" {
		return api.SniffUnknown, &api.InspectionFault{Err: errors.New("upload has no path or data")}
	}
	head, err := readHead(upload.Path)
	if err != nil {
		return api.SniffUnknown, &api.InspectionFault{Path: upload.Path, Err: err}
	}
	return Sniff(head), nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck
	var buf bytes.Buffer
	if _, err = io.CopyN(&buf, f, sniffLen); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// Sniff returns the normalised media type of data. Magic numbers known
// to filetype take precedence over the WHATWG sniffing algorithm.
func Sniff(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return NormaliseMIMEType(kind.MIME.Value)
	}
	return NormaliseMIMEType(http.DetectContentType(data))
}

// NormaliseMIMEType lower-cases a media type and strips its parameters.
func NormaliseMIMEType(t string) string {
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		mediaType, _, _ = strings.Cut(t, ";")
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" {
		return api.SniffUnknown
	}
	return mediaType
}
