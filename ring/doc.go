// Package ring provides a fixed-capacity ring of slots keyed by sequence
// number.
//
// Slot sequence maps to index sequence mod capacity. A single writer stores
// slots with Set, in any order; readers only see a sequence once every lower
// sequence has been stored, as reported by Sequence and Wait. The consumer
// calls Release after draining, and Set refuses sequences that would overwrite
// slots not yet released.
package ring
