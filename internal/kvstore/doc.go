// Package kvstore provides a Badger-backed quad store that implements the
// same dataset contract as the SQLite store.
//
// Every quad is written under four index orders, each with a one-byte
// prefix:
//
//	0x01 SPOG   0x02 POSG   0x03 OSPG   0x04 GSPO
//
// A key is the prefix followed by the four term keys (ir.Term.Key) in the
// index's order, each preceded by its uvarint length. Values are empty.
// A scan picks the index whose order puts the most bound positions first,
// seeks to that prefix, and checks the remaining positions per key.
//
// Reads go through a Snapshot, a read-only Badger transaction, so one query
// sees one consistent version of the data.
package kvstore
