// Package core provides the CSV loading logic of the lending migration backend.
//
// This package contains the domain logic for turning uploaded CSV files into
// freshly created staging tables, independent of any transport layer. It is
// used by the web handlers, the lendctl CLI, and tests without modification.
//
// # Architecture
//
// The package is organized leaf-first:
//
//   - Tokenizer: [SplitLine] splits one physical line into fields using
//     double quotes as the only quoting character.
//   - Sanitizer: [Sanitizer] maps file names and header text to identifiers
//     and cleans cell values before they are bound.
//   - Schema: [SchemaBuilder] derives a [TableSchema] from a header row. The
//     schema renders the DROP, CREATE and INSERT statements.
//   - Loader: [BatchLoader] runs every file of a request inside a single
//     transaction, queuing inserts on a pgx.Batch.
//   - Writer: [CSVWriter] serializes rows with the escaping rules the
//     tokenizer reads back.
//
// # Upload Flow
//
//  1. Client calls [Service.Upload] with one or more [UploadedFile] values
//  2. Each reader is wrapped with BOM skipping and UTF-8 sanitization
//  3. The header line becomes a [TableSchema]; the table is dropped and created
//  4. Data lines are bound positionally and flushed every BatchSize rows
//  5. The transaction commits once after the last file, or rolls back entirely
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each error category has a code for support reference:
//
//   - DB001-DB007: Database errors (missing tables, syntax, connections)
//   - FILE001-FILE006: File errors (size, encoding, empty files, headers)
//   - JOB001-JOB005: Job errors (busy, cancelled, timeout, external jar, segments)
//   - CFG001-CFG003: Configuration errors (scripts, queries, properties)
package core
