// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package services contains the business logic behind the HTTP handlers.
// This file defines the BigQuery archive for successful analyses.
package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// BigQueryArchive streams archive rows into one table.
type BigQueryArchive struct {
	Client      *bigquery.Client
	DatasetName string
	TableName   string
}

// NewBigQueryArchive creates an archive for dataset.table.
func NewBigQueryArchive(client *bigquery.Client, dataset, table string) *BigQueryArchive {
	return &BigQueryArchive{Client: client, DatasetName: dataset, TableName: table}
}

// GetFQN returns the `project.dataset.table` name of the archive table.
func (a *BigQueryArchive) GetFQN() string {
	fqn := a.Client.Dataset(a.DatasetName).Table(a.TableName).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// Archive inserts row. The row id doubles as the insert id, so a retried
// insert does not duplicate the row.
func (a *BigQueryArchive) Archive(ctx context.Context, row *model.ArchivedAnalysis) error {
	inserter := a.Client.Dataset(a.DatasetName).Table(a.TableName).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("bigquery insert into %s failed for analysis %s: %w", a.GetFQN(), row.Id, err)
	}
	return nil
}

// Probe reads the dataset metadata. It is used by the health check.
func (a *BigQueryArchive) Probe(ctx context.Context) error {
	if _, err := a.Client.Dataset(a.DatasetName).Metadata(ctx); err != nil {
		return fmt.Errorf("bigquery dataset %s is not reachable: %w", a.DatasetName, err)
	}
	return nil
}
