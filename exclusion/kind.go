/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package exclusion

import "github.com/tomoncle/excludable/types"

// Kind is the persisted kind of an exclusion record.
type Kind string

const (
	// KindExclude marks a subject, or every subject of a type when the
	// subject id is the wildcard, as excluded.
	KindExclude Kind = "exclude"
	// KindInclude carves a single subject out of a wildcard exclusion.
	KindInclude Kind = "include"
)

var _ types.BaseEnum = KindExclude

func (k Kind) IsValid() bool {
	return k == KindExclude || k == KindInclude
}

func (k Kind) Number() int {
	switch k {
	case KindExclude:
		return 0
	case KindInclude:
		return 1
	default:
		return types.IllegalValue
	}
}

func (k Kind) String() string {
	return string(k)
}

func (k Kind) Name() string {
	if !k.IsValid() {
		return types.IllegalName
	}
	return string(k)
}

func (k Kind) Desc() string {
	switch k {
	case KindExclude:
		return "subject is hidden from default queries"
	case KindInclude:
		return "subject is an exception to a wildcard exclusion"
	default:
		return types.IllegalDesc
	}
}
