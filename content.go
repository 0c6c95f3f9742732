// Copyright (c) 2023 The Filecast Authors. All rights reserved.
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

package filecast

import (
	"github.com/filecast/filecast/pkg/logging"
	bbPool "github.com/filecast/filecast/pkg/pool/bytebuffer"
)

// loadContent reads the file at path from disk, never from a cache, and returns it in a pooled buffer.
// Any failure to read the file yields FileNotFoundMessage instead.
func loadContent(path string, logger logging.Logger) *bbPool.ByteBuffer {
	bb, err := bbPool.ReadFile(path)
	if err != nil {
		logger.Warnf("failed to read %q, serving %q instead: %v", path, FileNotFoundMessage, err)
		return bbPool.FromString(FileNotFoundMessage)
	}
	return bb
}
