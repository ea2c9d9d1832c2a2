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

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrInvalidSubject is returned when a subject has no usable type or id.
var ErrInvalidSubject = errors.New("exclusion: invalid subject")

// Subject is implemented by any model that can be excluded. SubjectType must
// not depend on field values: it is called on zero values to resolve the type
// tag of a model.
type Subject interface {
	SubjectType() string
	SubjectID() string
}

// BeforeExcludeHook may be implemented by a subject to veto its own exclusion.
type BeforeExcludeHook interface {
	BeforeExclude(ctx context.Context) bool
}

// AfterExcludedHook may be implemented by a subject to observe its exclusion.
// It is only called when a new exclusion record was created.
type AfterExcludedHook interface {
	AfterExcluded(ctx context.Context)
}

// Ref is a bare (type, id) reference usable wherever a Subject is expected.
type Ref struct {
	Type string
	ID   string
}

// NewRef builds a reference from a string, integer or fmt.Stringer
// identifier. Any other value yields an empty id, which is rejected as an
// invalid subject on use.
func NewRef(subjectType string, id any) Ref {
	s, _ := identifierString(id)
	return Ref{Type: subjectType, ID: s}
}

func (r Ref) SubjectType() string { return r.Type }

func (r Ref) SubjectID() string { return r.ID }

func (r Ref) String() string { return r.Type + ":" + r.ID }

func validateType(subjectType string) error {
	if strings.TrimSpace(subjectType) == "" {
		return fmt.Errorf("%w: empty subject type", ErrInvalidSubject)
	}
	return nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty subject id", ErrInvalidSubject)
	}
	if id == Wildcard {
		return fmt.Errorf("%w: subject id collides with wildcard %q", ErrInvalidSubject, Wildcard)
	}
	return nil
}

func resolveSubject(s Subject) (Ref, error) {
	if isNil(s) {
		return Ref{}, fmt.Errorf("%w: nil subject", ErrInvalidSubject)
	}
	ref := Ref{Type: s.SubjectType(), ID: s.SubjectID()}
	if err := validateType(ref.Type); err != nil {
		return Ref{}, err
	}
	if err := validateID(ref.ID); err != nil {
		return Ref{}, fmt.Errorf("%s: %w", ref.Type, err)
	}
	return ref, nil
}

// resolveExceptions reduces exceptions to a de-duplicated, ordered list of
// identifiers. An exception is a Subject, a model value whose pointer is a
// Subject, or a string, integer or fmt.Stringer identifier. Anything else, and
// subjects of another type, are rejected.
func resolveExceptions(subjectType string, exceptions []any) ([]string, error) {
	ids := make([]string, 0, len(exceptions))
	seen := make(map[string]struct{}, len(exceptions))
	for _, exception := range exceptions {
		id, err := exceptionID(subjectType, exception)
		if err != nil {
			return nil, err
		}
		if err := validateID(id); err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func exceptionID(subjectType string, exception any) (string, error) {
	if isNil(exception) {
		return "", fmt.Errorf("%w: nil exception", ErrInvalidSubject)
	}
	s, ok := exception.(Subject)
	if !ok {
		s, ok = addressableSubject(exception)
	}
	if ok {
		if t := s.SubjectType(); t != subjectType {
			return "", fmt.Errorf("%w: exception of type %q for %q", ErrInvalidSubject, t, subjectType)
		}
		return s.SubjectID(), nil
	}
	if id, ok := identifierString(exception); ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: unsupported exception %T", ErrInvalidSubject, exception)
}

// addressableSubject copies a model passed by value when its pointer
// implements Subject.
func addressableSubject(v any) (Subject, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return nil, false
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	s, ok := ptr.Interface().(Subject)
	return s, ok
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func identifierString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, true
	case int:
		return strconv.Itoa(id), true
	case int8:
		return strconv.FormatInt(int64(id), 10), true
	case int16:
		return strconv.FormatInt(int64(id), 10), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint:
		return strconv.FormatUint(uint64(id), 10), true
	case uint8:
		return strconv.FormatUint(uint64(id), 10), true
	case uint16:
		return strconv.FormatUint(uint64(id), 10), true
	case uint32:
		return strconv.FormatUint(uint64(id), 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	case fmt.Stringer:
		if isNil(id) {
			return "", false
		}
		return id.String(), true
	}
	return "", false
}
