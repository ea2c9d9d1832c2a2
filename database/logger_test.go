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
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/tomoncle/excludable/utils"
)

func TestDefaultLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := utils.NewLogger("database-test")
	l.SetOutput(&buf)
	l.SetFormatter(&utils.Log4jFormatter{LoggerName: "database-test"})

	logger := NewDefaultLogger(l)
	logger.SetLevel(LogLevelInfo)
	logger.Debug("hidden")
	logger.Info("Subject excluded", "subject", "article:1", 42, "dropped", "dangling")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Subject excluded subject=article:1")
	assert.NotContains(t, out, "dangling")

	logger.SetLevel(LogLevelError)
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())
}

func TestGetLoggerIsStable(t *testing.T) {
	first := GetLogger()
	InitLogger(NewDefaultLogger(utils.NewLogger("ignored")))
	assert.Same(t, first, GetLogger(), "InitLogger does not replace an installed logger")
}
