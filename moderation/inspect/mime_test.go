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

package inspect

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "png", data: pngBytes(t), want: "image/png"},
		{name: "gif", data: []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"), want: "image/gif"},
		{name: "pdf", data: []byte("%PDF-1.4\n%...."), want: "application/pdf"},
		{name: "plain text has parameters stripped", data: []byte("just some text"), want: "text/plain"},
		{name: "html", data: []byte("<html><body>hi</body></html>"), want: "text/html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.data))
		})
	}
}

func TestSnifferIgnoresDeclaredType(t *testing.T) {
	s := NewSniffer()
	got, err := s.SniffMIMEType(context.Background(), &api.MediaUpload{
		Data:         []byte("hello, this is not a picture"),
		DeclaredType: "image/png",
		UploadName:   "cat.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", got)
}

func TestSnifferReadsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(path, pngBytes(t), 0o600))

	got, err := NewSniffer().SniffMIMEType(context.Background(), &api.MediaUpload{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)
}

func TestSnifferReadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")
	got, err := NewSniffer().SniffMIMEType(context.Background(), &api.MediaUpload{Path: path})
	assert.Equal(t, api.SniffUnknown, got)
	var fault *api.InspectionFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, path, fault.Path)

	got, err = NewSniffer().SniffMIMEType(context.Background(), &api.MediaUpload{})
	assert.Equal(t, api.SniffUnknown, got)
	assert.ErrorAs(t, err, &fault)
}

func TestNormaliseMIMEType(t *testing.T) {
	assert.Equal(t, "text/plain", NormaliseMIMEType("Text/Plain; charset=utf-8"))
	assert.Equal(t, "image/png", NormaliseMIMEType(" IMAGE/PNG "))
	assert.Equal(t, api.SniffUnknown, NormaliseMIMEType(""))
}
