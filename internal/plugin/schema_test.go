// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	schema := string(data)
	assert.Contains(t, schema, SchemaID())
	assert.Contains(t, schema, `"name"`)
	assert.Contains(t, schema, `"version"`)
	assert.Contains(t, schema, `"dynamic-load"`)
}

func TestValidateSchema(t *testing.T) {
	t.Cleanup(ResetSchemaCache)

	valid := []byte("name: mailer\nversion: 1.0.0\ndepends:\n  - core@1.0.0\n")
	assert.NoError(t, ValidateSchema(valid))
}

func TestValidateSchema_Errors(t *testing.T) {
	t.Cleanup(ResetSchemaCache)

	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"invalid yaml", "name: [unclosed"},
		{"missing name", "version: 1.0.0"},
		{"depends not a list", "name: mailer\nversion: 1.0.0\ndepends: core@1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateSchema([]byte(tt.data)))
		})
	}
}
