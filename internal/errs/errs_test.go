// Copyright 2026 The OpenTrusty Authors
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

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errRoleMissing = New(KindNotFound, "role not found")

func TestWrap_PreservesKind(t *testing.T) {
	err := Wrap("authz.RoleService.Get", errRoleMissing)

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, errors.Is(err, errRoleMissing))
	assert.Equal(t, "authz.RoleService.Get: role not found", err.Error())
	assert.Equal(t, "role not found", Message(err))
}

func TestWrap_UnclassifiedBecomesInternal(t *testing.T) {
	raw := fmt.Errorf("connection reset")
	err := Wrap("postgres.RoleRepository.Create", raw)

	assert.Equal(t, KindInternal, KindOf(err))
	assert.True(t, errors.Is(err, raw))
	assert.Equal(t, "internal error", Message(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindValidation, KindOf(Validation("op", "name is required")))
	assert.True(t, Is(fmt.Errorf("outer: %w", errRoleMissing), KindNotFound))
	assert.Nil(t, Wrap("op", nil))
}
