// Package main hosts the auditor entrypoint.
//
// Usage:
//
//	auditor [-config path] [input-file]
//
// The input is a CSV, TSV or Excel sheet with at least a business-name
// column; website and city columns are detected by header name. When the
// input argument is omitted, input.default_path is used.
//
// Architecture overview:
//   - Input: internal/input loads the sheet (UTF-8, Windows-1252 or Latin-1
//     text, or .xlsx), detects columns and numbers rows from 1. Row numbers
//     are the identity used by checkpoints and resume.
//   - Scheduler: internal/scheduler screens records, splits them into batches
//     and runs each batch on its own Chrome process with a fixed number of
//     tabs. Every business gets a place-search lookup (internal/presence) and,
//     when it has a website, a quality audit (internal/quality), and is then
//     classified by internal/qualify.
//   - Persistence: checkpoints go to output.dir and, when configured, to a GCS
//     bucket and a Postgres table. The final flush writes the result files
//     (qualified, active online, inactive, closed, low priority, failed).
//   - Progress: events flow through a non-blocking internal/progress Hub to
//     zap logs, Prometheus, the Postgres runs table and a Pub/Sub lead topic.
//   - Ops server: when metrics.addr is set, internal/api serves /healthz,
//     /readyz, /metrics and read-only run progress.
//
// Operational notes:
//   - SIGINT or SIGTERM stops the run after the businesses in flight; the
//     accumulated outcomes are flushed as an aborted checkpoint. Running the
//     same command again resumes from output.dir/latest.json unless
//     audit.resume is false.
//   - Configuration comes from an optional YAML file plus AUDITOR_* env vars,
//     e.g. AUDITOR_AUDIT_CONCURRENCY=3 or AUDITOR_DB_DSN.
//   - AUDITOR_PUBSUB_DRY_RUN=true keeps leads in memory and logs the most
//     recent ones at shutdown instead of publishing them.
//   - Exit status is 0 when the run completed or was interrupted, 1 when it
//     could not start or the final checkpoint failed.
package main
