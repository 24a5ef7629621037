// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package bitrw

import (
	"math/bits"

	"github.com/q191201771/lalflv/pkg/base"
)

// <ISO-14496-10.pdf>, <9.1 Parsing process for Exp-Golomb codes>
//
// leadingZeroBits = -1
// for( b = 0; !b; leadingZeroBits++ )
//     b = read_bits( 1 )
// codeNum = 2^leadingZeroBits − 1 + read_bits( leadingZeroBits )

// 前缀0的个数上限，用于限制畸形输入
const maxLeadingZeroBits = 32

// ReadUe 读取ue(v)
func (br *BitReader) ReadUe() (uint32, error) {
	leadingZeroBits := uint(0)
	for {
		b, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		leadingZeroBits++
		if leadingZeroBits >= maxLeadingZeroBits {
			return 0, base.ErrGolomb
		}
	}
	if leadingZeroBits == 0 {
		return 0, nil
	}
	suffix, err := br.ReadBits(leadingZeroBits)
	if err != nil {
		return 0, err
	}
	return (1<<leadingZeroBits - 1) + suffix, nil
}

// ReadSe 读取se(v)
//
// <9.1.1 Mapping process for signed Exp-Golomb codes>
// codeNum 1 2 3 4 5 ...
// value   1 -1 2 -2 3 ...
func (br *BitReader) ReadSe() (int32, error) {
	r, err := br.ReadUe()
	if err != nil {
		return 0, err
	}
	v := int64(r)
	if v&1 == 1 {
		return int32((v + 1) / 2), nil
	}
	return int32(-(v / 2)), nil
}

// WriteUe 写入ue(v)
func (bw *BitWriter) WriteUe(v uint32) {
	codeNum := uint64(v) + 1
	length := uint(bits.Len64(codeNum))

	// 前缀 length-1 个0
	bw.WriteBits(length-1, 0)

	// codeNum本身，最多33位
	if length > 32 {
		bw.WriteBits(length-32, uint32(codeNum>>32))
		bw.WriteBits(32, uint32(codeNum))
		return
	}
	bw.WriteBits(length, uint32(codeNum))
}

// WriteSe 写入se(v)
func (bw *BitWriter) WriteSe(v int32) {
	if v > 0 {
		bw.WriteUe(uint32(2*int64(v) - 1))
		return
	}
	bw.WriteUe(uint32(-2 * int64(v)))
}

// UeBitLength ue(v)编码后的bit长度，用于写入前计算buffer大小
func UeBitLength(v uint32) uint {
	return 2*uint(bits.Len64(uint64(v)+1)) - 1
}

// SeBitLength se(v)编码后的bit长度
func SeBitLength(v int32) uint {
	if v > 0 {
		return UeBitLength(uint32(2*int64(v) - 1))
	}
	return UeBitLength(uint32(-2 * int64(v)))
}
