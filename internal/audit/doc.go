// Package audit holds the domain types shared by every stage of a web presence
// audit: input records, probe findings, quality reports, presence results and
// the categorized outcomes the scheduler collects. It must not import browser
// drivers, storage clients or other infrastructure.
package audit
