// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quota

import "sort"

// Less orders two records for Store.Sort.
type Less func(a, b *Record) bool

func ByUID(a, b *Record) bool          { return a.UID < b.UID }
func ByUIDReverse(a, b *Record) bool   { return a.UID > b.UID }
func ByBytes(a, b *Record) bool        { return a.Bytes.Used < b.Bytes.Used }
func ByBytesReverse(a, b *Record) bool { return a.Bytes.Used > b.Bytes.Used }
func ByFiles(a, b *Record) bool        { return a.Files.Used < b.Files.Used }
func ByFilesReverse(a, b *Record) bool { return a.Files.Used > b.Files.Used }

// Comparator picks the ordering used by repquota: by uid unless space or
// files is set.
func Comparator(reverse, space, files bool) Less {
	switch {
	case space && reverse:
		return ByBytesReverse
	case space:
		return ByBytes
	case files && reverse:
		return ByFilesReverse
	case files:
		return ByFiles
	case reverse:
		return ByUIDReverse
	default:
		return ByUID
	}
}

// Store is an ordered collection of records. It is not safe for
// concurrent use; scans append from a single goroutine.
type Store struct {
	records []*Record
}

func NewStore() *Store {
	return &Store{}
}

// Insert appends r. Callers that need one record per uid check ContainsUID first.
func (s *Store) Insert(r *Record) {
	s.records = append(s.records, r)
}

func (s *Store) ContainsUID(uid uint32) bool {
	for _, r := range s.records {
		if r.UID == uid {
			return true
		}
	}
	return false
}

func (s *Store) Len() int {
	return len(s.records)
}

// Sort orders the store with a stable sort, so ties keep insertion order.
func (s *Store) Sort(less Less) {
	sort.SliceStable(s.records, func(i, j int) bool {
		return less(s.records[i], s.records[j])
	})
}

// ForEach calls fn on each record in order and stops at the first error.
func (s *Store) ForEach(fn func(r *Record) error) error {
	for _, r := range s.records {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Records returns a copy of the record slice in current order.
func (s *Store) Records() []*Record {
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Reset drops all records.
func (s *Store) Reset() {
	s.records = nil
}
