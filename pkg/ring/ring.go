// Package ring implements the consistent-hashing ownership rule spec.md §8
// assigns work by, grounded exactly on original_source's
// worker/workers.py:_belongs_to_worker. Each member is placed on a ring at
// MD5(member_id); a resource belongs to the first member whose hash is >=
// the resource's hash, wrapping around to the smallest hash if none
// qualifies. Ties on hash are broken by member id, matching Python's tuple
// sort on (hash, id).
package ring

import (
	"bytes"
	"crypto/md5"
	"sort"
)

// digest is a raw 16-byte MD5 sum, compared lexicographically. Comparing
// the raw bytes big-endian is equivalent to comparing the arbitrary
// precision integers Python builds via int(hexdigest, 16): the hex string
// preserves byte order, so byte-wise comparison and numeric comparison
// agree.
type digest [md5.Size]byte

func hash(key string) digest {
	return md5.Sum([]byte(key))
}

func (d digest) less(other digest) bool {
	return bytes.Compare(d[:], other[:]) < 0
}

type member struct {
	hash digest
	id   string
}

// ring is a sorted snapshot of member hashes, ready for ownership lookups.
type ring struct {
	members []member
}

// build hashes every id and sorts by (hash, id), mirroring the Python
// ring's tuple sort.
func build(ids []string) ring {
	members := make([]member, len(ids))
	for i, id := range ids {
		members[i] = member{hash: hash(id), id: id}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].hash != members[j].hash {
			return members[i].hash.less(members[j].hash)
		}
		return members[i].id < members[j].id
	})
	return ring{members: members}
}

// owner returns the id of the member that owns resourceID.
func (r ring) owner(resourceID string) string {
	return r.ownerForHash(hash(resourceID))
}

// ownerForHash returns the id of the member that owns a resource whose
// hash is resourceHash: the first member whose hash is >= resourceHash,
// wrapping to the member with the smallest hash if none qualifies.
// ownerForHash panics if members is empty; callers must never build a
// ring with zero members.
func (r ring) ownerForHash(resourceHash digest) string {
	for _, m := range r.members {
		if !m.hash.less(resourceHash) {
			return m.id
		}
	}
	return r.members[0].id
}

// OwnerOf returns which member of memberIDs owns resourceID. memberIDs
// must be non-empty.
func OwnerOf(memberIDs []string, resourceID string) string {
	return build(memberIDs).owner(resourceID)
}

// BelongsTo reports whether resourceID is owned by memberID under the
// ring formed by memberIDs (which must include memberID itself).
func BelongsTo(memberID string, memberIDs []string, resourceID string) bool {
	return OwnerOf(memberIDs, resourceID) == memberID
}
