// Copyright 2025 UMH Systems GmbH
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

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/sheetstore"
	"github.com/rentalhub/rental-core/pkg/tools/safejson"
	"github.com/rentalhub/rental-core/pkg/version"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "rental-core",
		Short: "Rental management backend on a spreadsheet document store",
		Long: `rental-core stores buildings, rooms, tenants, contracts and invoices as
documents in the worksheets of one spreadsheet, one worksheet per collection.

It serves the collections over a REST API and offers the same operations
from the command line.

Examples:
  # Serve the REST API
  rental-core serve --config /data/config.yaml

  # List available rooms on the second floor or above
  rental-core find rooms --filter '{"status":"available","floor":{"$gte":2}}'

  # Create a tenant
  rental-core create tenants '{"name":"Nguyen Van A","phone":"0912345678"}'`,
		Version:       version.GetAppVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", a.configPath, "Path to the YAML config file")
	root.SetOut(a.out)

	root.AddCommand(
		newServeCmd(a),
		newConfigCmd(a),
		newFindCmd(a),
		newGetCmd(a),
		newCountCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newAggregateCmd(a),
	)

	return root
}

// withCollection loads the config, opens the store and hands the named
// collection to fn.
func (a *app) withCollection(cmd *cobra.Command, name string, fn func(*sheetstore.Collection) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	store, err := a.openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	return fn(store.Collection(name))
}

func (a *app) print(v interface{}) error {
	data, err := safejson.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	_, err = fmt.Fprintln(a.out, string(data))

	return err
}

func parseFilter(raw string) (persistence.Filter, error) {
	if raw == "" {
		return nil, nil
	}

	var filter persistence.Filter
	if err := safejson.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, fmt.Errorf("%w: %w", persistence.ErrInvalidFilter, err)
	}

	return filter, nil
}

func parseDocument(raw string) (persistence.Document, error) {
	var doc persistence.Document
	if err := safejson.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("document is not valid JSON: %w", err)
	}

	if doc == nil {
		return nil, errors.New("document must be a JSON object")
	}

	return doc, nil
}

func newFindCmd(a *app) *cobra.Command {
	var (
		filter string
		sortBy string
		limit  int
		skip   int
	)

	cmd := &cobra.Command{
		Use:   "find <collection>",
		Short: "List the documents of a collection that match a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(filter)
			if err != nil {
				return err
			}

			return a.withCollection(cmd, args[0], func(coll *sheetstore.Collection) error {
				var docs []persistence.Document

				if sortBy == "" && limit < 0 && skip == 0 {
					docs, err = coll.Find(cmd.Context(), f)
				} else {
					docs, err = coll.Aggregate(cmd.Context(), persistence.ListPipeline(f, sortBy, skip, limit))
				}

				if err != nil {
					return err
				}

				return a.print(docs)
			})
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Filter as a JSON object")
	cmd.Flags().StringVarP(&sortBy, "sort", "s", "", "Sort field, prefix with - for descending")
	cmd.Flags().IntVarP(&limit, "limit", "l", -1, "Maximum number of documents, negative for all")
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of documents to skip")

	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Print one document by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCollection(cmd, args[0], func(coll *sheetstore.Collection) error {
				doc, err := coll.FindByID(cmd.Context(), args[1])
				if err != nil {
					return err
				}

				if doc == nil {
					return fmt.Errorf("%w: %s/%s", persistence.ErrNotFound, args[0], args[1])
				}

				return a.print(doc)
			})
		},
	}
}

func newCountCmd(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the documents that match a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(filter)
			if err != nil {
				return err
			}

			return a.withCollection(cmd, args[0], func(coll *sheetstore.Collection) error {
				n, err := coll.CountDocuments(cmd.Context(), f)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(a.out, n)

				return err
			})
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Filter as a JSON object")

	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <collection> <json>",
		Short: "Insert a document and print it with its id and timestamps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := parseDocument(args[1])
			if err != nil {
				return err
			}

			return a.withCollection(cmd, args[0], func(coll *sheetstore.Collection) error {
				created, err := coll.Create(cmd.Context(), doc)
				if err != nil {
					return err
				}

				return a.print(created)
			})
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <collection> <id> <json>",
		Short: "Apply a partial update to a document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseDocument(args[2])
			if err != nil {
				return err
			}

			return a.withCollection(cmd, args[0], func(coll *sheetstore.Collection) error {
				updated, err := coll.UpdateByID(cmd.Context(), args[1], patch)
				if err != nil {
					return err
				}

				if updated == nil {
					return fmt.Errorf("%w: %s/%s", persistence.ErrNotFound, args[0], args[1])
				}

				return a.print(updated)
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a document by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCollection(cmd, args[0], func(coll *sheetstore.Collection) error {
				deleted, err := coll.DeleteByID(cmd.Context(), args[1])
				if err != nil {
					return err
				}

				if !deleted {
					return fmt.Errorf("%w: %s/%s", persistence.ErrNotFound, args[0], args[1])
				}

				_, err = fmt.Fprintf(a.out, "deleted %s/%s\n", args[0], args[1])

				return err
			})
		},
	}
}

func newAggregateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <collection> <pipeline-json>",
		Short: "Run an aggregation pipeline ($match, $sort, $skip, $limit)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pipeline persistence.Pipeline
			if err := safejson.Unmarshal([]byte(args[1]), &pipeline); err != nil {
				return fmt.Errorf("%w: %w", persistence.ErrInvalidPipeline, err)
			}

			return a.withCollection(cmd, args[0], func(coll *sheetstore.Collection) error {
				docs, err := coll.Aggregate(cmd.Context(), pipeline)
				if err != nil {
					return err
				}

				return a.print(docs)
			})
		},
	}
}
