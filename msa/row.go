// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package msa

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/simd"
	"github.com/grailbio/hts/sam"
)

// Gap is the character emitted for reference positions without a query base.
const Gap = '-'

// RowStatus describes the data-quality issues found while projecting a row.
type RowStatus struct {
	// Truncated is set when the start position or the reference-consuming
	// edits ran past the end of the reference. Output past the end is dropped.
	Truncated bool
	// ShortQuery is set when a match run needed more query bases than the
	// record holds. The missing bases are emitted as gaps.
	ShortQuery bool
}

// ProjectRow appends the projection of an aligned query onto a reference of
// length refLen to dst, and returns the extended slice. Exactly refLen bytes
// are appended.
//
// pos is the 0-based reference position of the first aligned base, and must
// be nonnegative. Match operations (M, = and X) copy query bases, deletions
// emit gaps, and insertions and clips only advance the query cursor. Positions
// before pos and after the last reference-consuming edit are filled with
// gaps.
func ProjectRow(dst []byte, pos int, edits sam.Cigar, seq string, refLen int) ([]byte, RowStatus) {
	if pos < 0 {
		log.Panicf("msa: negative alignment position %d", pos)
	}
	var st RowStatus
	row := dst
	rpos := pos
	if rpos > refLen {
		rpos = refLen
		st.Truncated = true
	}
	row = appendGaps(row, rpos)
	qpos := 0
	for _, op := range edits {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			emit := n
			if rpos+emit > refLen {
				emit = refLen - rpos
				st.Truncated = true
			}
			avail := len(seq) - qpos
			if avail < 0 {
				avail = 0
			}
			if avail > emit {
				avail = emit
			}
			if avail < emit {
				st.ShortQuery = true
			}
			if avail > 0 {
				row = append(row, seq[qpos:qpos+avail]...)
			}
			row = appendGaps(row, emit-avail)
			qpos += n
			rpos += emit
		case sam.CigarDeletion:
			emit := n
			if rpos+emit > refLen {
				emit = refLen - rpos
				st.Truncated = true
			}
			row = appendGaps(row, emit)
			rpos += emit
		default:
			// Insertions and clips.
			qpos += n
		}
	}
	return appendGaps(row, refLen-rpos), st
}

func appendGaps(dst []byte, n int) []byte {
	if n <= 0 {
		return dst
	}
	start := len(dst)
	if cap(dst)-start < n {
		grown := make([]byte, start, 2*cap(dst)+n)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:start+n]
	simd.Memset8(dst[start:], Gap)
	return dst
}
