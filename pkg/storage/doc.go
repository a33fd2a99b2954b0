/*
Package storage implements BerylDB's Physical Store: one bbolt file per
logical database, bucketed by type-tag, with a bloom filter guarding every
lookup, grounded on the bucket-per-entity bbolt usage in the teacher's
storage layer.

# Architecture

	┌──────────────────── PHYSICAL STORE ───────────────────────┐
	│                                                             │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Database                       │          │
	│  │  - File: <dataDir>/<name>.beryl             │          │
	│  │  - Format: bbolt B+tree with MVCC           │          │
	│  │  - One bucket per type-tag                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ KEY     (plain keys)       │             │          │
	│  │  │ MAP     (hash values)      │             │          │
	│  │  │ VECTOR  (ordered lists)    │             │          │
	│  │  │ MMAP    (multimaps)        │             │          │
	│  │  │ GEO     (geo points)       │             │          │
	│  │  │ LIST    (reserved)         │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Bloom Filter                      │          │
	│  │  - one per Database, over physical keys      │          │
	│  │  - consulted before every Get (not Scan)     │          │
	│  │  - negative result skips bbolt entirely      │          │
	│  └────────────────────────────────────────────┘            │
	└─────────────────────────────────────────────────────────────┘

# Why a bucket per type-tag instead of a byte-prefix scan

The Key Encoder already embeds the type-tag as a field of the physical key,
but storing each tag in its own bbolt bucket means a type-scoped scan (the
common case — every iterator command operates on one logical type) walks
only that bucket's cursor, with no risk of a prefix match aliasing another
type's rows. The tag field in the encoded key is therefore redundant inside
a single bucket; it is kept anyway so a decoded key is self-describing once
read out of any bucket, and so Decode doesn't need a second input.

# Bloom filter accounting

The filter is warmed from on-disk keys on open (warmBloom) and updated on
every Put — there is no remove, since a standard (non-counting) bloom
filter cannot un-add a key safely. A stale positive after a delete costs
one extra bbolt lookup that itself reports "not found"; this is the
accepted false-positive cost documented on beryldb_bloom_false_positives_total.

# Concurrency

bbolt itself provides the thread-safety spec.md requires of the Physical
Store: any number of concurrent View transactions, one Update transaction
at a time. Database.Scan takes a VisitFunc the caller can make return false
at any point — this is how query iterators implement CheckIterator
cancellation without the storage layer needing to know about Users,
Queries, or the Flusher.

# Drain semantics

MarkClosing/Track/Drain implement the DB Manager's teardown contract: the
event loop calls MarkClosing then Drain while workers that began a Query
before the flag flipped call Track/untrack around their Run(), so Delete
waits for every such worker to finish before closing the underlying file.
*/
package storage
