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

package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
)

var mysqlErrorNumbers = map[uint16]SQLError{
	1091: NoIndexErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1060: ExistColumnErr,
	1146: NoTableErr,
	1050: ExistTableErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
}

// messagePatterns match postgres and sqlite error texts. Every fragment of a
// pattern must be present, and patterns are tried in order.
var messagePatterns = []struct {
	code      SQLError
	fragments []string
}{
	{DuplicateKeyErr, []string{"sqlstate 23505"}},
	{DuplicateKeyErr, []string{"duplicate key value"}},
	{DuplicateKeyErr, []string{"unique constraint failed"}},
	{NotNullViolationErr, []string{"sqlstate 23502"}},
	{NotNullViolationErr, []string{"not-null constraint"}},
	{NotNullViolationErr, []string{"not null constraint failed"}},
	{ForeignKeyViolationErr, []string{"sqlstate 23503"}},
	{ForeignKeyViolationErr, []string{"foreign key constraint failed"}},
	{CheckConstraintViolationErr, []string{"sqlstate 23514"}},
	{CheckConstraintViolationErr, []string{"check constraint"}},
	{DataTruncatedErr, []string{"sqlstate 22001"}},
	{NoColumnErr, []string{"sqlstate 42703"}},
	{NoColumnErr, []string{"no such column"}},
	{NoTableErr, []string{"sqlstate 42p01"}},
	{NoTableErr, []string{"no such table"}},
	{NoIndexErr, []string{"no such index"}},
	{ExistIndexErr, []string{"index", "already exists"}},
	{ExistTableErr, []string{"table", "already exists"}},
	{ExistTableErr, []string{"relation", "already exists"}},
}

// IsSqlError classifies a driver error. The boolean is false when err is nil
// or does not look like a database error.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if code, ok := mysqlErrorNumbers[mysqlErr.Number]; ok {
			return true, code
		}
		return true, UnknownErr
	}
	s := strings.ToLower(err.Error())
	for _, pattern := range messagePatterns {
		if containsAll(s, pattern.fragments) {
			return true, pattern.code
		}
	}
	return false, UnknownErr
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	is, code := IsSqlError(err)
	return is && code == DuplicateKeyErr
}

func containsAll(s string, fragments []string) bool {
	for _, fragment := range fragments {
		if !strings.Contains(s, fragment) {
			return false
		}
	}
	return true
}
