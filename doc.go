// Package docstore_toolkit provides a set of building blocks for
// document-oriented backend services on MongoDB: a generic data access
// layer, an operator-string query builder, and an HTTP service exposing
// CRUD, search, bulk, analysis and maintenance operations.
//
// Overview:
//
// 1. mongodb:
//   - Client with runtime collection switching and health probes.
//   - Store, a schema-free data access layer over bson.M documents with
//     automatic created_at/updated_at stamping.
//   - Query builder translating operator strings (eq, gte, contains,
//     in, ...) into MongoDB filters, with skip/limit pagination.
//   - MockStore with injectable function fields for tests.
//
// 2. pkg/config:
//   - Environment loading via "env" and "envDefault" struct tags, with
//     typed errors and validation.
//
// 3. pkg/transport:
//   - HTTP server on gorilla/mux with correlation IDs, API key auth,
//     CORS and latency metrics.
//
// Supporting packages cover analysis pipelines (pkg/analysis), JSON,
// CSV and XLSX export (pkg/export), Redis response caching (pkg/cache)
// and collection backups (pkg/backup).
//
// Quick start:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/rs/zerolog"
//
//		"github.com/raywall/docstore-toolkit/mongodb"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		client := mongodb.NewClient(mongodb.ClientConfig{
//			URI:        "mongodb://localhost:27017",
//			Database:   "app",
//			Collection: "items",
//		}, zerolog.Nop())
//		if err := client.Connect(ctx); err != nil {
//			log.Fatal(err)
//		}
//		defer client.Disconnect(ctx)
//
//		store := mongodb.NewStore(client, zerolog.Nop())
//		doc, err := store.Insert(ctx, mongodb.Document{"name": "widget"})
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Println("created", doc["_id"])
//	}
package docstore_toolkit
