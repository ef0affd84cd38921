// Copyright 2025 AdMesh
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

package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLAgentSource_ListInternalAgents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"slug", "name"}).
		AddRow("pub-a", "Publisher A").
		AddRow("pub-b", "Publisher B")
	mock.ExpectQuery(`SELECT slug, name FROM tenants WHERE active = true`).
		WillReturnRows(rows)

	source := NewSQLAgentSource(db)
	agents, err := source.ListInternalAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "pub-a", agents[0].Slug)
	assert.Equal(t, "Publisher B", agents[1].Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAgentSource_ListInternalAgentsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT slug, name FROM tenants`).
		WillReturnError(errors.New("connection reset"))

	source := NewSQLAgentSource(db)
	_, err = source.ListInternalAgents(context.Background())
	assert.ErrorContains(t, err, "failed to query tenants")
}

func TestSQLAgentSource_ListExternalAgents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "url", "enabled"}).
		AddRow("partner-x", "https://partner-x.example/rank", true).
		AddRow("partner-y", "https://partner-y.example/rank", false)
	mock.ExpectQuery(`SELECT name, url, enabled FROM external_agents`).
		WillReturnRows(rows)

	source := NewSQLAgentSource(db)
	agents, err := source.ListExternalAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.True(t, agents[0].Enabled)
	assert.False(t, agents[1].Enabled)
	assert.Equal(t, "https://partner-x.example/rank", agents[0].URL)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAgentSource_ListExternalAgentsScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "url", "enabled"}).
		AddRow("partner-x", "https://partner-x.example/rank", "not-a-bool")
	mock.ExpectQuery(`SELECT name, url, enabled FROM external_agents`).
		WillReturnRows(rows)

	source := NewSQLAgentSource(db)
	_, err = source.ListExternalAgents(context.Background())
	assert.ErrorContains(t, err, "failed to scan external agent row")
}
